// Copyright 2026 Quarry Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidJob indicates a Job failed validation.
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidConcept indicates a Concept failed validation.
	ErrInvalidConcept = errors.New("invalid concept")

	// ErrEmptySourceRef indicates the SourceRef field is empty.
	ErrEmptySourceRef = errors.New("source ref cannot be empty")

	// ErrEmptyText indicates chunk text is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyLabel indicates the concept Label field is empty.
	ErrEmptyLabel = errors.New("concept label cannot be empty")

	// ErrIncompleteTriple indicates a relation concept with a missing
	// subject, predicate or object.
	ErrIncompleteTriple = errors.New("relation triple is incomplete")

	// ErrInvalidJobState indicates an unknown JobState value.
	ErrInvalidJobState = errors.New("invalid job state")

	// ErrVectorLength indicates an embedding vector of the wrong dimension.
	ErrVectorLength = errors.New("vector length does not match model dimension")

	// ErrCancelled indicates a job was cancelled at a checkpoint.
	ErrCancelled = errors.New("job cancelled")
)

// TransientError marks a failure worth retrying with backoff: a network
// blip, a momentarily unavailable store, an external job still pending.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix: malformed
// source content, an unsupported source type, a model rejecting input.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// DegradedError marks a best-effort enrichment failure. Core retrieval
// stays usable; the job surfaces as INDEXED_DEGRADED rather than FAILED.
type DegradedError struct {
	Err error
}

func (e *DegradedError) Error() string { return "degraded: " + e.Err.Error() }
func (e *DegradedError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as a PermanentError. Returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Degraded wraps err as a DegradedError. Returns nil for a nil err.
func Degraded(err error) error {
	if err == nil {
		return nil
	}
	return &DegradedError{Err: err}
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is classified as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsDegraded reports whether err is classified as degraded.
func IsDegraded(err error) bool {
	var de *DegradedError
	return errors.As(err, &de)
}
