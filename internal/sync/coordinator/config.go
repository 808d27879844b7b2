package coordinator

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// jitterFraction is the maximum relative offset (±10%) applied to the sync interval
	jitterFraction = 0.1

	// initialRetryInterval is the first delay after a failed cycle
	initialRetryInterval = time.Second
)

// jitter returns interval shifted by a random offset of up to ±10%, so the
// nodes of a cluster do not hit the primary at the same instant
func jitter(interval time.Duration) time.Duration {
	maxOffset := time.Duration(float64(interval) * jitterFraction)
	if maxOffset <= 0 {
		return interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*maxOffset))) - maxOffset
	return interval + offset
}

// newRetryBackOff returns the delays used after failed cycles. They grow
// exponentially and never exceed the regular interval.
func newRetryBackOff(interval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(initialRetryInterval, interval)
	b.MaxInterval = interval
	b.Reset()
	return b
}
