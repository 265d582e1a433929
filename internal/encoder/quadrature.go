// Package encoder decodes quadrature wheel encoders into signed tick counts
// and distance, and produces the encoder telemetry counters.
//
// Only rising edges of channel A are decoded (single-edge mode): half the
// available resolution, full direction discrimination. The sign convention is
// fixed: channel B high when A rises means the wheel turned Forward and the
// position increments. A mirror-mounted encoder is handled by the wheel's
// Geometry.Reversed flag, never by changing the decoding rule.
package encoder

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Direction is the rotation sense recorded at the most recent tick.
type Direction bool

const (
	Forward  Direction = true
	Backward Direction = false
)

func (d Direction) String() string {
	if d == Forward {
		return "Forward"
	}
	return "Backward"
}

// Geometry describes one wheel and its encoder disc.
type Geometry struct {
	DiameterCM   float64
	PulsesPerRev int
	// Reversed negates every tick for an encoder mounted mirror-wise.
	Reversed bool
}

// DistancePerPulseCM is the wheel travel represented by one tick.
func (g Geometry) DistancePerPulseCM() float64 {
	if g.PulsesPerRev <= 0 {
		return 0
	}
	return math.Pi * g.DiameterCM / float64(g.PulsesPerRev)
}

// WheelState is the decoded state of one wheel.
type WheelState struct {
	Position   int64
	Direction  Direction
	LastA      int
	DistanceCM float64
}

func (s WheelState) String() string {
	return fmt.Sprintf("Direction: %s, Position: %d, Distance: %.3f cm", s.Direction, s.Position, s.DistanceCM)
}

// Decoder is the quadrature state machine for one wheel. It is not safe for
// concurrent use: exactly one goroutine, the one servicing that wheel's
// channel A transitions, may call Update. Other goroutines observe progress
// only through Ticks.
type Decoder struct {
	geometry Geometry
	perPulse float64
	state    WheelState
	counter  *atomic.Int64
}

// NewDecoder returns a decoder at position zero. The initial A level is 1, as
// on a pulled-up line, so the first tick needs a preceding low.
func NewDecoder(g Geometry) *Decoder {
	return &Decoder{
		geometry: g,
		perPulse: g.DistancePerPulseCM(),
		state:    WheelState{Direction: Forward, LastA: 1},
		counter:  new(atomic.Int64),
	}
}

// Update feeds one channel A level change together with the level of channel
// B sampled at that moment. Any non-zero level is treated as 1. It reports
// whether a tick was counted.
func (d *Decoder) Update(a, b int) bool {
	a, b = logical(a), logical(b)

	rising := d.state.LastA == 0 && a == 1
	d.state.LastA = a
	if !rising {
		return false
	}

	step := int64(-1)
	d.state.Direction = Backward
	if b == 1 {
		step = 1
		d.state.Direction = Forward
	}
	if d.geometry.Reversed {
		step = -step
		d.state.Direction = !d.state.Direction
	}

	d.state.Position += step
	d.state.DistanceCM = float64(d.state.Position) * d.perPulse
	d.counter.Store(d.state.Position)
	return true
}

// State returns a copy of the decoder state. Like Update it must only be
// called from the decoder's owning goroutine.
func (d *Decoder) State() WheelState {
	return d.state
}

// Geometry returns the geometry the decoder was built with.
func (d *Decoder) Geometry() Geometry {
	return d.geometry
}

// Ticks returns the latest published position. Safe from any goroutine.
func (d *Decoder) Ticks() int64 {
	return d.counter.Load()
}

func logical(level int) int {
	if level != 0 {
		return 1
	}
	return 0
}
