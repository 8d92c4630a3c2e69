package pool

import "time"

// Breaker counts decoder initialization failures and trips into degraded mode once
// threshold failures land within window. It stays tripped until [Breaker.Reset].
type Breaker struct {
	threshold int
	window    time.Duration
	failures  []time.Time
	degraded  bool
	now       func() time.Time
}

// NewBreaker returns a breaker. A threshold below one trips on the first failure and
// a zero window counts every failure since the last reset.
func NewBreaker(threshold int, window time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, window: window, now: time.Now}
}

// Record notes a failure and reports whether this failure tripped the breaker.
func (b *Breaker) Record() bool {
	now := b.now()
	b.failures = append(b.failures, now)
	if b.window > 0 {
		cutoff := now.Add(-b.window)
		i := 0
		for i < len(b.failures) && b.failures[i].Before(cutoff) {
			i++
		}
		b.failures = b.failures[i:]
	}

	if b.degraded || len(b.failures) < b.threshold {
		return false
	}
	b.degraded = true
	return true
}

func (b *Breaker) Degraded() bool { return b.degraded }

// Failures returns the failures currently inside the window.
func (b *Breaker) Failures() int { return len(b.failures) }

// Reset clears degraded mode and the failure history.
func (b *Breaker) Reset() {
	b.failures = nil
	b.degraded = false
}
