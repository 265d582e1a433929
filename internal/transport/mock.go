package transport

import (
	"bytes"
	"net"
	"sync"
	"time"
)

// MockUDPSocket implements UDPSocket for testing. Reads are served from
// queued packets; with none queued a read waits for the deadline (or a new
// packet, or Close) and then reports a timeout.
type MockUDPSocket struct {
	mu   sync.Mutex
	cond *sync.Cond

	packets      [][]byte
	deadline     time.Time
	closed       bool
	closeCalls   int
	readError    error
	LocalAddress *net.UDPAddr
}

// NewMockUDPSocket creates a MockUDPSocket preloaded with packets.
func NewMockUDPSocket(packets ...[]byte) *MockUDPSocket {
	m := &MockUDPSocket{
		packets: packets,
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("127.0.0.1"),
			Port: 8100,
		},
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Push queues a packet and wakes a waiting reader.
func (m *MockUDPSocket) Push(packet []byte) {
	m.mu.Lock()
	m.packets = append(m.packets, packet)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// FailNextRead makes the next read return err.
func (m *MockUDPSocket) FailNextRead(err error) {
	m.mu.Lock()
	m.readError = err
	m.mu.Unlock()
	m.cond.Broadcast()
}

// ReadFromUDP returns the next queued packet.
func (m *MockUDPSocket) ReadFromUDP(b []byte) (int, *net.UDPAddr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var timedOut bool
	if !m.deadline.IsZero() {
		timer := time.AfterFunc(time.Until(m.deadline), func() {
			m.mu.Lock()
			timedOut = true
			m.mu.Unlock()
			m.cond.Broadcast()
		})
		defer timer.Stop()
	}

	for {
		switch {
		case m.closed:
			return 0, nil, net.ErrClosed
		case m.readError != nil:
			err := m.readError
			m.readError = nil
			return 0, nil, err
		case len(m.packets) > 0:
			pkt := m.packets[0]
			m.packets = m.packets[1:]
			return copy(b, pkt), &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 40000}, nil
		case timedOut || m.deadline.IsZero():
			return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: &timeoutError{}}
		}
		m.cond.Wait()
	}
}

// SetReadDeadline records the deadline for subsequent reads.
func (m *MockUDPSocket) SetReadDeadline(t time.Time) error {
	m.mu.Lock()
	m.deadline = t
	m.mu.Unlock()
	return nil
}

// Close marks the socket closed and wakes readers.
func (m *MockUDPSocket) Close() error {
	m.mu.Lock()
	m.closed = true
	m.closeCalls++
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}

// CloseCalls reports how many times Close was called.
func (m *MockUDPSocket) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// LocalAddr returns the mock local address.
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockConn implements DatagramConn for testing.
type MockConn struct {
	mu         sync.Mutex
	written    [][]byte
	writeError error
	closeCalls int
	// OnWrite, when set, is called after each successful write.
	OnWrite func(b []byte)
	// OnClose, when set, is called from Close.
	OnClose func()
}

// NewMockConn creates an empty MockConn.
func NewMockConn() *MockConn {
	return &MockConn{}
}

// Write records b, or fails while a write error is set.
func (c *MockConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	if c.writeError != nil {
		err := c.writeError
		c.mu.Unlock()
		return 0, err
	}
	c.written = append(c.written, bytes.Clone(b))
	hook := c.OnWrite
	c.mu.Unlock()
	if hook != nil {
		hook(b)
	}
	return len(b), nil
}

// SetWriteError makes every Write fail with err until cleared with nil.
func (c *MockConn) SetWriteError(err error) {
	c.mu.Lock()
	c.writeError = err
	c.mu.Unlock()
}

// Written returns a copy of the datagrams written so far.
func (c *MockConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// Close records the call.
func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	hook := c.OnClose
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

// CloseCalls reports how many times Close was called.
func (c *MockConn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// timeoutError implements net.Error for timeout simulation.
type timeoutError struct{}

func (e *timeoutError) Error() string   { return "i/o timeout" }
func (e *timeoutError) Timeout() bool   { return true }
func (e *timeoutError) Temporary() bool { return true }
