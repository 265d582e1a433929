package encoder

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGeometry = Geometry{DiameterCM: 6.8, PulsesPerRev: 397}

// primed returns a decoder whose last A level is 0, ready for a rising edge.
func primed(g Geometry) *Decoder {
	d := NewDecoder(g)
	d.Update(0, 0)
	return d
}

func TestDistancePerPulse(t *testing.T) {
	assert.InDelta(t, math.Pi*6.8/397, testGeometry.DistancePerPulseCM(), 1e-12)
	assert.Zero(t, Geometry{DiameterCM: 5}.DistancePerPulseCM())
}

func TestDecoder_ForwardTwice(t *testing.T) {
	d := primed(testGeometry)

	require.True(t, d.Update(1, 1))
	assert.Equal(t, Forward, d.State().Direction)

	assert.False(t, d.Update(0, 0), "falling edge must not tick")
	assert.False(t, d.Update(0, 1), "falling edge must not tick whatever B is")

	require.True(t, d.Update(1, 1))
	s := d.State()
	assert.EqualValues(t, 2, s.Position)
	assert.Equal(t, Forward, s.Direction)
	assert.InDelta(t, 2*testGeometry.DistancePerPulseCM(), s.DistanceCM, 1e-12)
	assert.EqualValues(t, 2, d.Ticks())
}

func TestDecoder_Backward(t *testing.T) {
	d := primed(testGeometry)

	require.True(t, d.Update(1, 0))
	s := d.State()
	assert.EqualValues(t, -1, s.Position)
	assert.Equal(t, Backward, s.Direction)
	assert.InDelta(t, -testGeometry.DistancePerPulseCM(), s.DistanceCM, 1e-12)
}

func TestDecoder_InitialLevelHigh(t *testing.T) {
	d := NewDecoder(testGeometry)

	// A already high at start: a repeated high is not an edge.
	assert.False(t, d.Update(1, 1))
	assert.EqualValues(t, 0, d.State().Position)
}

func TestDecoder_NonRisingTransitions(t *testing.T) {
	tests := []struct {
		name  string
		lastA int
		newA  int
	}{
		{"falling", 1, 0},
		{"repeat low", 0, 0},
		{"repeat high", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, b := range []int{0, 1} {
				d := NewDecoder(testGeometry)
				d.Update(tt.lastA, 0) // establishes LastA (1→1 or 1→0, no tick)
				require.EqualValues(t, 0, d.State().Position)

				assert.False(t, d.Update(tt.newA, b))
				assert.EqualValues(t, 0, d.State().Position)
				assert.Equal(t, tt.newA, d.State().LastA)
			}
		})
	}
}

func TestDecoder_NonZeroIsHigh(t *testing.T) {
	d := primed(testGeometry)
	require.True(t, d.Update(7, -3))
	assert.EqualValues(t, 1, d.State().Position)
	assert.Equal(t, 1, d.State().LastA)
}

func TestDecoder_Reversed(t *testing.T) {
	g := testGeometry
	g.Reversed = true
	d := primed(g)

	require.True(t, d.Update(1, 1))
	assert.EqualValues(t, -1, d.State().Position)
	assert.Equal(t, Backward, d.State().Direction)
}

// Property: position moves by exactly ±1 on a 0→1 transition of A and is
// unchanged otherwise, and distance always equals position × per-pulse.
func TestDecoder_RandomSequenceInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	d := NewDecoder(testGeometry)
	perPulse := testGeometry.DistancePerPulseCM()

	for i := 0; i < 10000; i++ {
		before := d.State()
		a, b := rng.Intn(2), rng.Intn(2)

		ticked := d.Update(a, b)
		after := d.State()

		if before.LastA == 0 && a == 1 {
			require.True(t, ticked, "step %d: rising edge not counted", i)
			want := int64(-1)
			if b == 1 {
				want = 1
			}
			require.Equal(t, before.Position+want, after.Position, "step %d", i)
		} else {
			require.False(t, ticked, "step %d", i)
			require.Equal(t, before.Position, after.Position, "step %d", i)
		}
		require.Equal(t, float64(after.Position)*perPulse, after.DistanceCM, "step %d", i)
		require.Equal(t, after.Position, d.Ticks())
	}
}

func TestWheelState_String(t *testing.T) {
	s := WheelState{Position: 3, Direction: Forward, DistanceCM: 0.5}
	assert.Equal(t, "Direction: Forward, Position: 3, Distance: 0.500 cm", s.String())
}
