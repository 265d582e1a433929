package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/rover.bridge/internal/monitoring"
)

// ErrWriteFailed marks every error returned by Publisher.Send.
var ErrWriteFailed = errors.New("datagram write failed")

// SendError reports a failed datagram for one stream.
type SendError struct {
	Stream string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Stream, ErrWriteFailed, e.Err)
}

func (e *SendError) Is(target error) bool { return target == ErrWriteFailed }

func (e *SendError) Unwrap() error { return e.Err }

// Publisher sends one telemetry stream's datagrams. Send is synchronous and
// never retried; a failure is counted and handed back to the stream.
type Publisher struct {
	name  string
	conn  DatagramConn
	stats *monitoring.StreamStats

	closeOnce sync.Once
	closeErr  error
}

// NewPublisher wraps conn. stats may be nil.
func NewPublisher(name string, conn DatagramConn, stats *monitoring.StreamStats) *Publisher {
	return &Publisher{name: name, conn: conn, stats: stats}
}

// DialPublisher dials addr and wraps the connection.
func DialPublisher(name, addr string, stats *monitoring.StreamStats) (*Publisher, error) {
	conn, err := Dial(addr)
	if err != nil {
		return nil, err
	}
	return NewPublisher(name, conn, stats), nil
}

// Name returns the stream name.
func (p *Publisher) Name() string { return p.name }

// Send writes payload as a single datagram.
func (p *Publisher) Send(payload []byte) error {
	n, err := p.conn.Write(payload)
	if err != nil {
		if p.stats != nil {
			p.stats.AddSendError()
		}
		return &SendError{Stream: p.name, Err: err}
	}
	if p.stats != nil {
		p.stats.AddSent(n)
	}
	return nil
}

// Close closes the underlying socket once; later calls return the first
// result.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}
