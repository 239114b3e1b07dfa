package redish

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the policy used to compute the delay before a
// transaction is retried.
type RetryPolicy int

const (
	// RetryPredictable waits exactly the retry delay.
	RetryPredictable RetryPolicy = iota

	// RetryRandomized waits a random duration between 10% and 100% of the
	// retry delay, so that concurrent clients retrying the same
	// transaction do not collide again.
	RetryRandomized
)

func (p RetryPolicy) String() string {
	switch p {
	case RetryPredictable:
		return "predictable"
	case RetryRandomized:
		return "randomized"
	default:
		return "unknown"
	}
}

// BackOff returns the backoff.BackOff implementing the policy for the
// provided delay.
func (p RetryPolicy) BackOff(delay time.Duration) backoff.BackOff {
	if p == RetryRandomized {
		return &JitterBackOff{Delay: delay}
	}
	return backoff.NewConstantBackOff(delay)
}

// a *rand.Rand is not safe for concurrent access
var rnd = struct {
	sync.Mutex
	*rand.Rand
}{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}

// JitterBackOff is a backoff.BackOff that returns a random duration
// between 10% and 100% of Delay, uniformly distributed.
type JitterBackOff struct {
	Delay time.Duration

	// Rand is the source of randomness. If nil, a package-level source
	// seeded with the current time is used. It is not safe for concurrent
	// use, like the rand.Rand it holds.
	Rand *rand.Rand
}

// NextBackOff returns the duration to wait before the next retry.
func (b *JitterBackOff) NextBackOff() time.Duration {
	var f float64
	if b.Rand != nil {
		f = b.Rand.Float64()
	} else {
		rnd.Lock()
		f = rnd.Float64()
		rnd.Unlock()
	}
	return time.Duration(float64(b.Delay) * (f*0.9 + 0.1))
}

// Reset is a no-op, the delays are independent.
func (b *JitterBackOff) Reset() {}
