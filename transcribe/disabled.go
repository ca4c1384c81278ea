package transcribe

import (
	"context"
	"errors"

	"github.com/quarryhq/quarry/core"
)

// ErrDisabled is returned by the disabled client for every operation.
var ErrDisabled = errors.New("transcription service not configured")

// NewDisabledClient returns a Client that rejects every submission. It is
// the default when no transcription service is configured; local file
// ingestion keeps working, URL sources fail permanently.
func NewDisabledClient() Client {
	return &disabledClient{}
}

type disabledClient struct{}

func (d *disabledClient) SubmitJob(ctx context.Context, sourceRef string) (string, error) {
	return "", core.Permanent(ErrDisabled)
}

func (d *disabledClient) PollJob(ctx context.Context, externalID string) (*PollResult, error) {
	return nil, core.Permanent(ErrDisabled)
}
