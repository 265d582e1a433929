package timeutil

import "time"

// Backoff is an exponential delay that starts at Initial, doubles on every
// consecutive failure and is capped at Max. The zero value is not usable; use
// NewBackoff.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	next time.Duration
}

// NewBackoff returns a Backoff starting at initial and capped at max.
func NewBackoff(initial, max time.Duration) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{Initial: initial, Max: max, next: initial}
}

// Next returns the delay to wait before the next attempt and doubles the
// following one.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.Max {
		b.next = b.Max
	}
	return d
}

// Reset restarts the sequence at Initial after a success.
func (b *Backoff) Reset() {
	b.next = b.Initial
}
