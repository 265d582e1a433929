// Package actuator drives the wheel motors. The sink is a single-writer
// resource: only the bridge's command intake goroutine calls it, so no
// implementation here takes a lock around motor state.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/rover.bridge/internal/monitoring"
	"github.com/banshee-data/rover.bridge/internal/serialmux"
)

// Motor indices on the controller board.
const (
	MotorLeft  = 1
	MotorRight = 2
)

// ErrClosed is returned once a sink has been stopped and closed.
var ErrClosed = errors.New("actuator closed")

// Sink accepts per-motor speed commands. Implementations must return an error
// rather than block indefinitely when the hardware is unreachable, so the
// intake loop keeps draining commands.
type Sink interface {
	// SetMotorSpeed sets one motor's signed speed in controller units.
	SetMotorSpeed(motor int, speed int) error
	// Stop brings every motor to zero.
	Stop() error
	// Close releases the hardware handle.
	Close() error
}

// DefaultMaxSpeed is the speed limit of the PiCar-X class controller.
const DefaultMaxSpeed = 100

// ToSpeed converts a velocity to the controller's integer convention by
// truncating toward zero, saturating at ±max. The limit is applied before the
// conversion so out-of-range values keep their sign. NaN maps to 0.
func ToSpeed(v float64, max int) int {
	limit := float64(max)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= limit:
		return max
	case v <= -limit:
		return -max
	}
	return int(v)
}

// Clamp limits speed to ±max.
func Clamp(speed, max int) int {
	if speed > max {
		return max
	}
	if speed < -max {
		return -max
	}
	return speed
}

// SerialSink drives a motor controller board over a line-oriented serial
// protocol: "M<motor> <speed>" sets a motor, "S" stops both. Lines echoed by
// the board are logged by Monitor.
type SerialSink struct {
	mux      serialmux.SerialMuxInterface
	maxSpeed int
	logf     func(string, ...interface{})

	closeOnce sync.Once
	closeErr  error
}

// NewSerialSink wraps an open serial mux. maxSpeed clamps every command.
func NewSerialSink(mux serialmux.SerialMuxInterface, maxSpeed int) *SerialSink {
	return &SerialSink{
		mux:      mux,
		maxSpeed: maxSpeed,
		logf:     monitoring.Prefixed("[ACTUATOR]"),
	}
}

// OpenSerialSink opens the controller board at path.
func OpenSerialSink(path string, opts serialmux.PortOptions, maxSpeed int) (*SerialSink, error) {
	mux, err := serialmux.NewRealSerialMux(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open motor controller %s: %w", path, err)
	}
	return NewSerialSink(mux, maxSpeed), nil
}

func (s *SerialSink) SetMotorSpeed(motor int, speed int) error {
	cmd := fmt.Sprintf("M%d %d", motor, Clamp(speed, s.maxSpeed))
	if err := s.mux.SendCommand(cmd); err != nil {
		return fmt.Errorf("failed to set motor %d: %w", motor, err)
	}
	return nil
}

func (s *SerialSink) Stop() error {
	if err := s.mux.SendCommand("S"); err != nil {
		return fmt.Errorf("failed to stop motors: %w", err)
	}
	return nil
}

// Monitor logs controller responses until ctx is cancelled or the port
// closes. It never writes to the port.
func (s *SerialSink) Monitor(ctx context.Context) error {
	id, lines := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	errc := make(chan error, 1)
	go func() { errc <- s.mux.Monitor(ctx) }()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			s.logf("controller: %s", line)
		case err := <-errc:
			return err
		}
	}
}

// Close closes the serial port once.
func (s *SerialSink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.mux.Close()
	})
	return s.closeErr
}

// Mux exposes the underlying serial mux for admin routes.
func (s *SerialSink) Mux() serialmux.SerialMuxInterface {
	return s.mux
}

// DisabledSink accepts and discards commands when no motor hardware is
// attached, recording only the last speeds for diagnostics.
type DisabledSink struct {
	Speeds map[int]int
	Stops  int
}

func NewDisabledSink() *DisabledSink {
	return &DisabledSink{Speeds: make(map[int]int)}
}

func (d *DisabledSink) SetMotorSpeed(motor int, speed int) error {
	d.Speeds[motor] = speed
	return nil
}

func (d *DisabledSink) Stop() error {
	d.Stops++
	for m := range d.Speeds {
		d.Speeds[m] = 0
	}
	return nil
}

func (d *DisabledSink) Close() error { return nil }
