package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamStats_Counts(t *testing.T) {
	s := NewStreamStats("imu")
	s.AddSent(120)
	s.AddSent(80)
	s.AddSendError()
	s.AddReadError()

	c := s.Snapshot()
	assert.Equal(t, "imu", c.Stream)
	assert.EqualValues(t, 2, c.Sent)
	assert.EqualValues(t, 200, c.Bytes)
	assert.EqualValues(t, 1, c.SendErrors)
	assert.EqualValues(t, 1, c.ReadErrors)

	reset := s.GetAndReset()
	assert.EqualValues(t, 2, reset.Sent)
	assert.Zero(t, s.Snapshot().Sent)
}

func TestStreamStats_Concurrent(t *testing.T) {
	s := NewStreamStats("encoder")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.AddSent(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 800, s.Snapshot().Sent)
}

func TestStreamCounters_String(t *testing.T) {
	c := StreamCounters{Stream: "lidar", Sent: 3, Bytes: 90}
	assert.True(t, strings.HasPrefix(c.String(), "lidar: sent=3 (90 bytes)"))
	assert.NotContains(t, c.String(), "send_err")

	c.ReadErrors = 2
	assert.Contains(t, c.String(), "read_err=2")
}

func TestRegistry_TotalsSurviveLogStats(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})

	r := NewRegistry()
	r.Stream("motion").AddReceived()
	r.Stream("imu").AddSent(10)
	assert.Same(t, r.Stream("imu"), r.Stream("imu"))

	r.LogStats()
	assert.Len(t, lines, 2)

	r.Stream("imu").AddSent(5)
	totals := r.Totals()
	require.Len(t, totals, 2)
	// names are sorted
	assert.Equal(t, "imu", totals[0].Stream)
	assert.EqualValues(t, 2, totals[0].Sent)
	assert.EqualValues(t, 15, totals[0].Bytes)
	assert.EqualValues(t, 1, totals[1].Received)
}

func TestRegistry_AdminRoutes(t *testing.T) {
	r := NewRegistry()
	r.Stream("lidar").AddSent(42)

	mux := http.NewServeMux()
	r.AttachAdminRoutes(mux)

	// tsweb only allows debug access from loopback
	req := httptest.NewRequest(http.MethodGet, "/debug/streams", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stream": "lidar"`)
	assert.Contains(t, rec.Body.String(), `"bytes": 42`)
}
