// Package transcribe talks to the external transcription service that turns
// audio and video sources into text. The service is slow and unreliable;
// callers submit a job, then poll until it reports ready or failed.
package transcribe
