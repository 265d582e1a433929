package encoder

import (
	"context"
	"fmt"
	"sync/atomic"
)

// TickSource produces the cumulative left/right tick counts published on the
// encoder telemetry stream. Real and Synthetic are the two implementations.
type TickSource interface {
	// Ticks returns the current counts. Safe from any goroutine.
	Ticks() (left, right int64)
}

// FormatTicks renders counts in the encoder telemetry wire format
// "L:<int>,R:<int>".
func FormatTicks(left, right int64) string {
	return fmt.Sprintf("L:%d,R:%d", left, right)
}

// Real reports the positions of two hardware-backed decoders.
type Real struct {
	Left  *Decoder
	Right *Decoder
}

// NewReal pairs the two wheel decoders.
func NewReal(left, right *Decoder) *Real {
	return &Real{Left: left, Right: right}
}

func (r *Real) Ticks() (int64, int64) {
	return r.Left.Ticks(), r.Right.Ticks()
}

// Synthetic is a stand-in counter for degraded or test configurations where
// no encoder hardware is wired. Each Advance adds Step to both wheels.
type Synthetic struct {
	Step  int64
	left  atomic.Int64
	right atomic.Int64
}

// NewSynthetic returns a counter advancing by step per tick.
func NewSynthetic(step int64) *Synthetic {
	return &Synthetic{Step: step}
}

// Advance moves both wheels forward by one step.
func (s *Synthetic) Advance() {
	s.left.Add(s.Step)
	s.right.Add(s.Step)
}

func (s *Synthetic) Ticks() (int64, int64) {
	return s.left.Load(), s.right.Load()
}

// EdgeReader delivers level changes of an encoder's channel A.
type EdgeReader interface {
	// WaitEdge blocks until the line changes level and returns the new level.
	WaitEdge(ctx context.Context) (int, error)
}

// LevelReader samples the instantaneous level of an encoder's channel B.
type LevelReader interface {
	Level() (int, error)
}

// Watch services one wheel: every channel A transition is fed to dec along
// with the channel B level sampled right after it. Watch is the decoder's
// single writer and returns nil when ctx is cancelled. onTick, if non-nil, is
// called after each counted tick from the same goroutine.
func Watch(ctx context.Context, a EdgeReader, b LevelReader, dec *Decoder, onTick func(WheelState)) error {
	for {
		level, err := a.WaitEdge(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to wait for channel A edge: %w", err)
		}

		bLevel, err := b.Level()
		if err != nil {
			return fmt.Errorf("failed to read channel B level: %w", err)
		}

		if dec.Update(level, bLevel) && onTick != nil {
			onTick(dec.State())
		}
	}
}
