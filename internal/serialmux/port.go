package serialmux

import (
	"io"
	"time"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter extends SerialPorter with timeout capabilities.
// go.bug.st/serial ports implement it; byte-oriented readers such as the
// lidar driver rely on it so a stalled device cannot block shutdown forever.
type TimeoutSerialPorter interface {
	SerialPorter
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// SerialPortOpener opens the device at path with the given options. Drivers
// take an opener rather than calling serial.Open so tests can substitute a
// TestableSerialPort.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)
