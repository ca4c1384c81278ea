package transcribe

import "context"

// Status is the lifecycle state an external transcription job reports.
type Status string

const (
	// StatusPending means the external job is still running.
	StatusPending Status = "pending"
	// StatusReady means the transcript is available.
	StatusReady Status = "ready"
	// StatusFailed means the external job failed permanently.
	StatusFailed Status = "failed"
)

// PollResult is one observation of an external transcription job.
type PollResult struct {
	Status  Status
	Text    string // transcript, set when Status is StatusReady
	Message string // failure detail, set when Status is StatusFailed
}

// Client submits transcription jobs and polls their progress.
// Implementations classify faults: network and server errors are transient,
// rejections of the request itself are permanent.
type Client interface {
	// SubmitJob asks the service to transcribe sourceRef and returns the
	// external job identifier.
	SubmitJob(ctx context.Context, sourceRef string) (string, error)

	// PollJob reports the current state of an external job. A pending
	// result is not an error.
	PollJob(ctx context.Context, externalID string) (*PollResult, error)
}
