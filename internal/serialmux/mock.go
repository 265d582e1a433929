package serialmux

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by TestableSerialPort once Close has been called.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort implements TimeoutSerialPorter with configurable
// behaviour for testing. It provides fine-grained control over reads, writes,
// errors, and latency.
type TestableSerialPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by every Write call while set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// Closed indicates whether Close was called
	Closed bool

	// CloseCalls counts Close invocations
	CloseCalls int

	// ReadTimeout is the current read timeout
	ReadTimeout time.Duration

	// BlockReads causes Read to block until data is added, the read timeout
	// elapses, or Close is called
	BlockReads bool

	// readCond is used to signal blocked readers
	readCond *sync.Cond
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

// Read reads from the read buffer, optionally simulating errors. With
// BlockReads set and a ReadTimeout configured, an empty buffer yields (0, nil)
// after the timeout, as go.bug.st/serial does.
func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, ErrPortClosed
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		var timedOut bool
		if t.ReadTimeout > 0 {
			timer := time.AfterFunc(t.ReadTimeout, func() {
				t.mu.Lock()
				timedOut = true
				t.mu.Unlock()
				t.readCond.Broadcast()
			})
			defer timer.Stop()
		}
		for !t.Closed && t.ReadBuffer.Len() == 0 && !timedOut {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, ErrPortClosed
		}
		if t.ReadBuffer.Len() == 0 {
			return 0, nil
		}
	}

	n, err = t.ReadBuffer.Read(p)
	if err != nil && !t.BlockReads {
		return n, err
	}
	return n, nil
}

// Write writes to the write buffer, optionally simulating errors.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, ErrPortClosed
	}
	if t.WriteError != nil {
		return 0, t.WriteError
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.CloseCalls++
	t.readCond.Broadcast()

	return t.CloseError
}

// SetReadTimeout implements TimeoutSerialPorter.
func (t *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadTimeout = timeout
	return nil
}

// SetWriteError makes subsequent writes fail with err (nil clears it).
func (t *TestableSerialPort) SetWriteError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WriteError = err
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// GetWrittenData returns a copy of all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return bytes.Clone(t.WriteBuffer.Bytes())
}

// IsClosed reports whether Close has been called.
func (t *TestableSerialPort) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Closed
}

// MockOpener returns a SerialPortOpener that hands out port (or err) and
// records the paths it was asked to open.
func MockOpener(port SerialPorter, err error) (SerialPortOpener, *[]string) {
	var mu sync.Mutex
	paths := []string{}
	return func(path string, opts PortOptions) (SerialPorter, error) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, path)
		if err != nil {
			return nil, err
		}
		return port, nil
	}, &paths
}
