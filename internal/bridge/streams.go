package bridge

import (
	"context"
	"errors"
	"io"

	"github.com/banshee-data/rover.bridge/internal/encoder"
	"github.com/banshee-data/rover.bridge/internal/monitoring"
	"github.com/banshee-data/rover.bridge/internal/rangescan"
	"github.com/banshee-data/rover.bridge/internal/telemetry"
	"github.com/banshee-data/rover.bridge/internal/timeutil"
)

var (
	imuLogf     = monitoring.Prefixed("[IMU]")
	lidarLogf   = monitoring.Prefixed("[LIDAR]")
	encoderLogf = monitoring.Prefixed("[ENCODER]")
)

// encoderJournalEvery is how many encoder datagrams pass between journaled
// snapshots.
const encoderJournalEvery = 10

// runInertial reads, encodes and sends one sample per pacing period.
func (b *Bridge) runInertial(ctx context.Context) {
	o := b.opts
	stats := o.Stats.Stream(StreamInertial)
	backoff := timeutil.NewBackoff(o.BackoffInitial, o.BackoffMax)
	defer closeQuietly("imu", o.Inertial)
	imuLogf("streaming samples every %v", o.InertialInterval)

	for ctx.Err() == nil {
		sample, err := o.Inertial.Read()
		if err != nil {
			stats.AddReadError()
			if terminal(err) {
				imuLogf("source closed, stream stopping: %v", err)
				return
			}
			d := backoff.Next()
			imuLogf("read failed, retrying in %v: %v", d, err)
			timeutil.Wait(ctx, o.Clock, d)
			continue
		}
		backoff.Reset()

		payload, err := telemetry.EncodeInertial(sample)
		if err != nil {
			imuLogf("failed to encode sample: %v", err)
		} else if err := o.InertialOut.Send(payload); err != nil {
			imuLogf("%v", err)
		}
		timeutil.Wait(ctx, o.Clock, o.InertialInterval)
	}
}

// runLidar forwards every full rotation as it arrives; the device sets the
// cadence.
func (b *Bridge) runLidar(ctx context.Context) {
	o := b.opts
	stats := o.Stats.Stream(StreamLidar)
	backoff := timeutil.NewBackoff(o.BackoffInitial, o.BackoffMax)
	defer closeQuietly("lidar", o.Scans)
	lidarLogf("streaming scans")

	for ctx.Err() == nil {
		scan, err := o.Scans.ReadScan()
		if err != nil {
			if errors.Is(err, rangescan.ErrReadTimeout) {
				continue
			}
			stats.AddReadError()
			if terminal(err) {
				lidarLogf("source closed, stream stopping: %v", err)
				return
			}
			d := backoff.Next()
			lidarLogf("scan failed, retrying in %v: %v", d, err)
			timeutil.Wait(ctx, o.Clock, d)
			continue
		}
		backoff.Reset()

		payload, err := telemetry.EncodeScan(scan)
		if err != nil {
			lidarLogf("failed to encode scan: %v", err)
			continue
		}
		if err := o.ScanOut.Send(payload); err != nil {
			lidarLogf("%v", err)
		}
		o.Journal.RecordScan(scan)
	}
}

// advancer is implemented by tick sources that move on the publish clock.
type advancer interface {
	Advance()
}

// runEncoder publishes cumulative tick counts every encoder interval.
func (b *Bridge) runEncoder(ctx context.Context) {
	o := b.opts
	ticker := o.Clock.NewTicker(o.EncoderInterval)
	defer ticker.Stop()
	encoderLogf("sending ticks every %v", o.EncoderInterval)

	adv, synthetic := o.Ticks.(advancer)
	var sent int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		if synthetic {
			adv.Advance()
		}
		left, right := o.Ticks.Ticks()
		if err := o.EncoderOut.Send([]byte(encoder.FormatTicks(left, right))); err != nil {
			encoderLogf("%v", err)
		}
		sent++
		if sent%encoderJournalEvery == 0 {
			o.Journal.RecordEncoder(left, right)
		}
	}
}

// runWheel feeds one hardware encoder's edges into its decoder until ctx is
// cancelled or the lines fail.
func (b *Bridge) runWheel(ctx context.Context, w Wheel) {
	defer func() {
		for _, r := range []interface{}{w.A, w.B} {
			if c, ok := r.(io.Closer); ok {
				closeQuietly(w.Name+" encoder line", c)
			}
		}
	}()
	encoderLogf("watching %s wheel", w.Name)
	if err := encoder.Watch(ctx, w.A, w.B, w.Decoder, nil); err != nil {
		encoderLogf("%s wheel stopped: %v", w.Name, err)
	}
}
