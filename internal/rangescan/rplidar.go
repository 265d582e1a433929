// Package rangescan reads full-rotation scans from an RPLidar A1/A2 over a
// serial line.
package rangescan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rover.bridge/internal/serialmux"
	"github.com/banshee-data/rover.bridge/internal/telemetry"
)

const (
	syncByte      = 0xA5
	cmdScan       = 0x20
	cmdStop       = 0x25
	nodeSize      = 5
	descriptorLen = 7

	// DefaultReadTimeout bounds each serial read so a stalled device still
	// lets the stream observe shutdown.
	DefaultReadTimeout = 500 * time.Millisecond

	// MinScanLen drops rotations with fewer usable points than this.
	MinScanLen = 5
)

var scanDescriptor = []byte{0xA5, 0x5A, 0x05, 0x00, 0x00, 0x40, 0x81}

// ErrReadTimeout is returned when the device produced no bytes within the
// read timeout. It is transient.
var ErrReadTimeout = errors.New("lidar read timeout")

// ErrBadDescriptor is returned by Start when the scan response header does
// not match.
var ErrBadDescriptor = errors.New("unexpected scan descriptor")

// dtrSetter is implemented by go.bug.st/serial ports. On the RPLidar A1 USB
// adapter DTR gates the motor (low = spinning).
type dtrSetter interface {
	SetDTR(dtr bool) error
}

// RPLidar decodes the standard scan stream. ReadScan is called from one
// goroutine; Close may be called from another.
type RPLidar struct {
	port serialmux.SerialPorter

	closed   atomic.Bool
	stopOnce sync.Once

	node    [nodeSize]byte
	have    int
	scan    telemetry.RangeScan
	resyncs int
}

// Open opens path through opener and wraps it. The port is given a read
// timeout when it supports one.
func Open(opener serialmux.SerialPortOpener, path string, opts serialmux.PortOptions) (*RPLidar, error) {
	port, err := opener(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open lidar %s: %w", path, err)
	}
	if tp, ok := port.(serialmux.TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(DefaultReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set lidar read timeout: %w", err)
		}
	}
	return New(port), nil
}

// New wraps an already open port.
func New(port serialmux.SerialPorter) *RPLidar {
	return &RPLidar{port: port}
}

// Start spins up the motor, requests a scan and checks the response
// descriptor.
func (l *RPLidar) Start() error {
	if d, ok := l.port.(dtrSetter); ok {
		if err := d.SetDTR(false); err != nil {
			return fmt.Errorf("failed to start lidar motor: %w", err)
		}
	}
	if _, err := l.port.Write([]byte{syncByte, cmdScan}); err != nil {
		return l.wrapErr("failed to request scan", err)
	}

	desc := make([]byte, descriptorLen)
	for got := 0; got < descriptorLen; {
		n, err := l.port.Read(desc[got:])
		got += n
		if err != nil {
			return l.wrapErr("failed to read scan descriptor", err)
		}
		if n == 0 {
			return fmt.Errorf("failed to read scan descriptor: %w", ErrReadTimeout)
		}
	}
	if !bytes.Equal(desc, scanDescriptor) {
		return fmt.Errorf("%w: % X", ErrBadDescriptor, desc)
	}

	l.have = 0
	l.scan = nil
	return nil
}

// ReadScan blocks until one full rotation has been collected. A rotation
// ends when the next node carries the start flag. Zero-distance points are
// dropped.
func (l *RPLidar) ReadScan() (telemetry.RangeScan, error) {
	for {
		if l.closed.Load() {
			return nil, telemetry.ErrSourceClosed
		}
		if err := l.fillNode(); err != nil {
			return nil, err
		}

		start, p, ok := decodeNode(l.node)
		if !ok {
			// drop one byte and try to realign on the next
			copy(l.node[:], l.node[1:])
			l.have = nodeSize - 1
			l.resyncs++
			continue
		}
		l.have = 0

		if start && len(l.scan) > 0 {
			done := l.scan
			l.scan = nil
			if p.Distance > 0 {
				l.scan = append(l.scan, p)
			}
			if len(done) >= MinScanLen {
				return done, nil
			}
			continue
		}
		if p.Distance > 0 {
			l.scan = append(l.scan, p)
		}
	}
}

// Resyncs reports how many bytes were skipped to regain node alignment.
func (l *RPLidar) Resyncs() int {
	return l.resyncs
}

func (l *RPLidar) fillNode() error {
	for l.have < nodeSize {
		n, err := l.port.Read(l.node[l.have:])
		l.have += n
		if err != nil {
			return l.wrapErr("failed to read scan node", err)
		}
		if n == 0 {
			return ErrReadTimeout
		}
	}
	return nil
}

func (l *RPLidar) wrapErr(msg string, err error) error {
	if l.closed.Load() {
		return telemetry.ErrSourceClosed
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", msg, io.EOF)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// decodeNode parses one 5-byte measurement node.
func decodeNode(b [nodeSize]byte) (start bool, p telemetry.ScanPoint, ok bool) {
	s := b[0]&0x01 != 0
	notS := b[0]&0x02 != 0
	if s == notS || b[1]&0x01 == 0 {
		return false, p, false
	}
	angleQ6 := uint16(b[2])<<7 | uint16(b[1])>>1
	distQ2 := uint16(b[4])<<8 | uint16(b[3])
	p.Angle = float64(angleQ6) / 64.0
	p.Distance = float64(distQ2) / 4.0
	return s, p, true
}

// Close stops the scan and the motor, then releases the port. It is safe to
// call more than once and from a goroutine other than the reader.
func (l *RPLidar) Close() error {
	var err error
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		if _, werr := l.port.Write([]byte{syncByte, cmdStop}); werr != nil {
			err = fmt.Errorf("failed to stop scan: %w", werr)
		}
		if d, ok := l.port.(dtrSetter); ok {
			_ = d.SetDTR(true)
		}
		if cerr := l.port.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close lidar port: %w", cerr)
		}
	})
	return err
}
