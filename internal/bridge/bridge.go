// Package bridge supervises the control node's four streams: motion command
// intake driving the actuator sink, and the inertial, range-scan and encoder
// telemetry publishers. Each stream runs in its own goroutine under one
// context; a failing stream never stops its siblings.
package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/rover.bridge/internal/actuator"
	"github.com/banshee-data/rover.bridge/internal/encoder"
	"github.com/banshee-data/rover.bridge/internal/journal"
	"github.com/banshee-data/rover.bridge/internal/monitoring"
	"github.com/banshee-data/rover.bridge/internal/telemetry"
	"github.com/banshee-data/rover.bridge/internal/timeutil"
	"github.com/banshee-data/rover.bridge/internal/transport"
)

// Stream names used for stats and logs.
const (
	StreamMotion   = "motion"
	StreamInertial = "imu"
	StreamLidar    = "lidar"
	StreamEncoder  = "encoder"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultPollInterval     = 50 * time.Millisecond
	DefaultInertialInterval = 100 * time.Millisecond
	DefaultEncoderInterval  = 100 * time.Millisecond
	DefaultBackoffInitial   = 100 * time.Millisecond
	DefaultBackoffMax       = 5 * time.Second
	DefaultStatsInterval    = time.Minute
)

// InertialSource yields one inertial sample per call.
type InertialSource interface {
	Read() (telemetry.InertialSample, error)
	Close() error
}

// ScanSource yields one full range-scan rotation per call.
type ScanSource interface {
	ReadScan() (telemetry.RangeScan, error)
	Close() error
}

// Publisher sends one stream's datagrams.
type Publisher interface {
	Send(payload []byte) error
	Close() error
}

// Wheel is one hardware encoder serviced in real encoder mode. A and B are
// closed when the watcher exits if they implement io.Closer.
type Wheel struct {
	Name    string
	A       encoder.EdgeReader
	B       encoder.LevelReader
	Decoder *encoder.Decoder
}

// Options wires the bridge. Commands, Sink, Ticks and EncoderOut are
// required; a nil Inertial or Scans source disables that stream.
type Options struct {
	Commands transport.UDPSocket
	Sink     actuator.Sink
	// MaxSpeed saturates command velocities before they reach Sink.
	MaxSpeed int

	Inertial    InertialSource
	InertialOut Publisher
	Scans       ScanSource
	ScanOut     Publisher
	Ticks       encoder.TickSource
	EncoderOut  Publisher
	Wheels      []Wheel

	PollInterval     time.Duration
	InertialInterval time.Duration
	EncoderInterval  time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	StatsInterval    time.Duration

	Clock   timeutil.Clock
	Stats   *monitoring.Registry
	Journal *journal.Journal
}

// Bridge runs the streams described by Options.
type Bridge struct {
	opts Options
}

var (
	errNoCommands = errors.New("bridge: command socket is required")
	errNoSink     = errors.New("bridge: actuator sink is required")
	errNoTicks    = errors.New("bridge: encoder tick source and publisher are required")
	errNoOutput   = errors.New("bridge: enabled source has no publisher")
)

// New validates opts and fills in defaults.
func New(opts Options) (*Bridge, error) {
	if opts.Commands == nil {
		return nil, errNoCommands
	}
	if opts.Sink == nil {
		return nil, errNoSink
	}
	if opts.Ticks == nil || opts.EncoderOut == nil {
		return nil, errNoTicks
	}
	if (opts.Inertial != nil && opts.InertialOut == nil) || (opts.Scans != nil && opts.ScanOut == nil) {
		return nil, errNoOutput
	}

	setDefault(&opts.PollInterval, DefaultPollInterval)
	setDefault(&opts.InertialInterval, DefaultInertialInterval)
	setDefault(&opts.EncoderInterval, DefaultEncoderInterval)
	setDefault(&opts.BackoffInitial, DefaultBackoffInitial)
	setDefault(&opts.BackoffMax, DefaultBackoffMax)
	setDefault(&opts.StatsInterval, DefaultStatsInterval)
	if opts.MaxSpeed <= 0 {
		opts.MaxSpeed = actuator.DefaultMaxSpeed
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Stats == nil {
		opts.Stats = monitoring.NewRegistry()
	}
	return &Bridge{opts: opts}, nil
}

func setDefault(d *time.Duration, v time.Duration) {
	if *d <= 0 {
		*d = v
	}
}

// Stats returns the per-stream counters.
func (b *Bridge) Stats() *monitoring.Registry {
	return b.opts.Stats
}

// Run starts every stream and blocks until ctx is cancelled and all of them
// have shut down. Shutdown order: intake exits and stops the motors, every
// telemetry stream exits and releases its source, then each socket is closed
// once and the sink is closed.
func (b *Bridge) Run(ctx context.Context) error {
	o := b.opts

	intakeDone := make(chan struct{})
	go func() {
		defer close(intakeDone)
		b.runIntake(ctx)
	}()

	var wg sync.WaitGroup
	spawn := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}

	if o.Inertial != nil {
		spawn(b.runInertial)
	}
	if o.Scans != nil {
		spawn(b.runLidar)
	}
	spawn(b.runEncoder)
	for _, w := range o.Wheels {
		w := w
		spawn(func(ctx context.Context) { b.runWheel(ctx, w) })
	}
	if m, ok := o.Sink.(interface{ Monitor(context.Context) error }); ok {
		spawn(func(ctx context.Context) {
			if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("[ACTUATOR] monitor exited: %v", err)
			}
		})
	}
	spawn(b.runStats)

	<-intakeDone
	wg.Wait()

	closeQuietly("motion socket", o.Commands)
	if o.InertialOut != nil {
		closeQuietly("imu socket", o.InertialOut)
	}
	if o.ScanOut != nil {
		closeQuietly("lidar socket", o.ScanOut)
	}
	closeQuietly("encoder socket", o.EncoderOut)
	closeQuietly("actuator", o.Sink)

	o.Stats.LogStats()
	return nil
}

func closeQuietly(what string, c io.Closer) {
	if err := c.Close(); err != nil {
		monitoring.Logf("failed to close %s: %v", what, err)
	}
}

func (b *Bridge) runStats(ctx context.Context) {
	ticker := b.opts.Clock.NewTicker(b.opts.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			b.opts.Stats.LogStats()
		}
	}
}

// terminal reports whether a source error means the source is gone for good.
func terminal(err error) bool {
	return errors.Is(err, telemetry.ErrSourceClosed) || errors.Is(err, io.EOF)
}
