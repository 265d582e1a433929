package bridge

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/banshee-data/rover.bridge/internal/actuator"
	"github.com/banshee-data/rover.bridge/internal/command"
	"github.com/banshee-data/rover.bridge/internal/monitoring"
	"github.com/banshee-data/rover.bridge/internal/timeutil"
	"github.com/banshee-data/rover.bridge/internal/transport"
)

// maxCommandSize bounds a motion datagram; longer datagrams are truncated.
const maxCommandSize = 128

var motionLogf = monitoring.Prefixed("[MOTION]")

// runIntake receives motion commands and applies them to the sink. It is the
// sink's only caller and issues exactly one Stop on the way out.
func (b *Bridge) runIntake(ctx context.Context) {
	o := b.opts
	stats := o.Stats.Stream(StreamMotion)
	motionLogf("listening for commands on %s", o.Commands.LocalAddr())

	defer func() {
		if err := o.Sink.Stop(); err != nil {
			motionLogf("failed to stop motors: %v", err)
		}
		motionLogf("stopped")
	}()

	in := &intake{sink: o.Sink, maxSpeed: o.MaxSpeed, stats: stats, journal: o.Journal}
	backoff := timeutil.NewBackoff(o.PollInterval, o.BackoffMax)
	buf := make([]byte, maxCommandSize)

	for ctx.Err() == nil {
		if err := o.Commands.SetReadDeadline(time.Now().Add(o.PollInterval)); err != nil {
			motionLogf("failed to set read deadline: %v", err)
		}
		n, _, err := o.Commands.ReadFromUDP(buf)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			stats.AddReadError()
			d := backoff.Next()
			motionLogf("receive failed, retrying in %v: %v", d, err)
			timeutil.Wait(ctx, o.Clock, d)
			continue
		}
		backoff.Reset()
		stats.AddReceived()
		in.apply(string(buf[:n]))
	}
}

// intake holds the last applied command so only changes are logged.
type intake struct {
	sink     actuator.Sink
	maxSpeed int
	stats    *monitoring.StreamStats
	journal  interface {
		RecordCommand(command.MotorCommand)
		RecordParseFailure(string, error)
	}

	last    command.MotorCommand
	hasLast bool
}

// apply parses message and drives both motors. A malformed message still
// applies whatever was resolved before the bad token.
func (in *intake) apply(message string) {
	cmd, err := command.Parse(message)
	if err != nil {
		in.stats.AddParseFailure()
		motionLogf("parse error in %q: %v", message, err)
		in.journal.RecordParseFailure(message, err)
	}

	if !in.hasLast || cmd != in.last {
		motionLogf("received %q: right=%v left=%v", message, cmd.Right, cmd.Left)
		in.journal.RecordCommand(cmd)
		in.last = cmd
		in.hasLast = true
	}

	if err := in.sink.SetMotorSpeed(actuator.MotorLeft, actuator.ToSpeed(cmd.Left, in.maxSpeed)); err != nil {
		motionLogf("failed to set left motor: %v", err)
	}
	if err := in.sink.SetMotorSpeed(actuator.MotorRight, actuator.ToSpeed(cmd.Right, in.maxSpeed)); err != nil {
		motionLogf("failed to set right motor: %v", err)
	}
}
