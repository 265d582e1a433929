package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// StreamStats tracks datagram and fault counters for one bridge stream.
// All methods are safe for concurrent use.
type StreamStats struct {
	name string

	mu         sync.Mutex
	sent       int64
	bytes      int64
	received   int64
	sendErrors int64
	readErrors int64
	parseFails int64
	lastReset  time.Time
}

// StreamCounters is a point-in-time copy of a stream's counters.
type StreamCounters struct {
	Stream     string        `json:"stream"`
	Sent       int64         `json:"sent"`
	Bytes      int64         `json:"bytes"`
	Received   int64         `json:"received"`
	SendErrors int64         `json:"send_errors"`
	ReadErrors int64         `json:"read_errors"`
	ParseFails int64         `json:"parse_failures"`
	Window     time.Duration `json:"window_ns"`
}

// NewStreamStats returns zeroed counters for the named stream.
func NewStreamStats(name string) *StreamStats {
	return &StreamStats{name: name, lastReset: time.Now()}
}

// Name returns the stream name the counters belong to.
func (s *StreamStats) Name() string { return s.name }

// AddSent records one outbound datagram of n bytes.
func (s *StreamStats) AddSent(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	s.bytes += int64(n)
}

// AddReceived records one inbound datagram.
func (s *StreamStats) AddReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received++
}

func (s *StreamStats) AddSendError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErrors++
}

func (s *StreamStats) AddReadError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErrors++
}

func (s *StreamStats) AddParseFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parseFails++
}

// Snapshot returns the counters accumulated since the last reset.
func (s *StreamStats) Snapshot() StreamCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countersLocked(time.Now())
}

// GetAndReset returns the counters accumulated since the previous reset and
// zeroes them.
func (s *StreamStats) GetAndReset() StreamCounters {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c := s.countersLocked(now)
	s.sent, s.bytes, s.received = 0, 0, 0
	s.sendErrors, s.readErrors, s.parseFails = 0, 0, 0
	s.lastReset = now
	return c
}

func (s *StreamStats) countersLocked(now time.Time) StreamCounters {
	return StreamCounters{
		Stream:     s.name,
		Sent:       s.sent,
		Bytes:      s.bytes,
		Received:   s.received,
		SendErrors: s.sendErrors,
		ReadErrors: s.readErrors,
		ParseFails: s.parseFails,
		Window:     now.Sub(s.lastReset),
	}
}

// String formats the counters for a log line.
func (c StreamCounters) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: sent=%d (%d bytes)", c.Stream, c.Sent, c.Bytes)
	if c.Received > 0 {
		fmt.Fprintf(&b, " received=%d", c.Received)
	}
	if c.SendErrors > 0 || c.ReadErrors > 0 || c.ParseFails > 0 {
		fmt.Fprintf(&b, " send_err=%d read_err=%d parse_fail=%d", c.SendErrors, c.ReadErrors, c.ParseFails)
	}
	fmt.Fprintf(&b, " over %v", c.Window.Round(time.Millisecond))
	return b.String()
}

// Registry collects the stats of every stream in the bridge.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*StreamStats
	totals  map[string]StreamCounters
}

func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[string]*StreamStats),
		totals:  make(map[string]StreamCounters),
	}
}

// Stream returns the stats for name, creating them on first use.
func (r *Registry) Stream(name string) *StreamStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.streams[name]; ok {
		return s
	}
	s := NewStreamStats(name)
	r.streams[name] = s
	return s
}

// LogStats logs and resets every stream's interval counters, folding them into
// the lifetime totals.
func (r *Registry) LogStats() {
	for _, c := range r.drain() {
		Logf("[STATS] %s", c)
	}
}

func (r *Registry) drain() []StreamCounters {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]StreamCounters, 0, len(r.streams))
	for _, name := range r.namesLocked() {
		c := r.streams[name].GetAndReset()
		t := r.totals[name]
		t.Stream = name
		t.Sent += c.Sent
		t.Bytes += c.Bytes
		t.Received += c.Received
		t.SendErrors += c.SendErrors
		t.ReadErrors += c.ReadErrors
		t.ParseFails += c.ParseFails
		t.Window += c.Window
		r.totals[name] = t
		out = append(out, c)
	}
	return out
}

// Totals returns lifetime counters per stream, including the interval not yet
// drained by LogStats.
func (r *Registry) Totals() []StreamCounters {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]StreamCounters, 0, len(r.streams))
	for _, name := range r.namesLocked() {
		c := r.streams[name].Snapshot()
		t := r.totals[name]
		c.Sent += t.Sent
		c.Bytes += t.Bytes
		c.Received += t.Received
		c.SendErrors += t.SendErrors
		c.ReadErrors += t.ReadErrors
		c.ParseFails += t.ParseFails
		c.Window += t.Window
		out = append(out, c)
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.streams))
	for name := range r.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
