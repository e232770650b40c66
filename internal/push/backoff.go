package push

import "time"

// Backoff decides how long to wait before reconnect attempt n. The
// first failed attempt asks for Next(1).
type Backoff interface {
	Next(attempt int) time.Duration
}

// FixedBackoff waits the same delay between every reconnect attempt.
type FixedBackoff struct {
	Delay time.Duration
}

func (b FixedBackoff) Next(int) time.Duration { return b.Delay }

// ExponentialBackoff doubles the delay on each consecutive failure,
// capped at Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b ExponentialBackoff) Next(attempt int) time.Duration {
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}
