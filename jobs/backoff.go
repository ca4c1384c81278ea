package jobs

import (
	"math/rand"
	"time"
)

// pollDelay computes the wait before poll number n (0-based) of an external
// transcription job: exponential growth from base, capped at max, with
// ±20% jitter so a fleet of workers doesn't poll in lockstep.
func pollDelay(n int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < n && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}

	jitter := time.Duration(rand.Int63n(int64(delay)/5+1)) - delay/10
	delay += jitter
	if delay < base {
		delay = base
	}
	return delay
}
