// Package journal keeps an optional sqlite record of a bridge run: applied
// motor commands, parse failures, encoder snapshots and scan summaries.
// Recording never blocks the caller; entries go through a bounded queue and
// are dropped when it is full.
package journal

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/rover.bridge/internal/command"
	"github.com/banshee-data/rover.bridge/internal/monitoring"
	"github.com/banshee-data/rover.bridge/internal/telemetry"
)

// DefaultQueueSize is used when Options.QueueSize is zero.
const DefaultQueueSize = 256

var logf = monitoring.Prefixed("[JOURNAL]")

// Options describe the run being journaled.
type Options struct {
	QueueSize   int
	Version     string
	EncoderMode string
}

type entry struct {
	query string
	args  []interface{}
}

// Journal is a run journal. A nil *Journal is valid and records nothing.
type Journal struct {
	db    *sql.DB
	path  string
	runID uuid.UUID

	queue   chan entry
	dropped atomic.Int64
	closed  atomic.Bool

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	started   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the journal database at path, migrates it and
// records a new run. Call Start to begin writing queued entries.
func Open(path string, opts Options) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal pragmas: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	// one writer at a time; admin queries queue behind it
	db.SetMaxOpenConns(1)

	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	j := &Journal{
		db:    db,
		path:  path,
		runID: uuid.New(),
		queue: make(chan entry, size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	if _, err := db.Exec(
		`INSERT INTO runs (run_id, version, encoder_mode, started_at) VALUES (?, ?, ?, ?)`,
		j.runID.String(), opts.Version, opts.EncoderMode, unixSeconds(time.Now()),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return j, nil
}

// RunID identifies this process's run.
func (j *Journal) RunID() uuid.UUID {
	if j == nil {
		return uuid.Nil
	}
	return j.runID
}

// DB exposes the underlying handle for queries.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// Start launches the writer goroutine.
func (j *Journal) Start() {
	if j == nil {
		return
	}
	j.startOnce.Do(func() {
		j.started.Store(true)
		go j.loop()
	})
}

func (j *Journal) loop() {
	defer close(j.done)
	for {
		select {
		case e := <-j.queue:
			j.write(e)
		case <-j.stop:
			j.drain()
			return
		}
	}
}

func (j *Journal) drain() {
	for {
		select {
		case e := <-j.queue:
			j.write(e)
		default:
			return
		}
	}
}

func (j *Journal) write(e entry) {
	if _, err := j.db.Exec(e.query, e.args...); err != nil {
		logf("write failed: %v", err)
	}
}

func (j *Journal) enqueue(query string, args ...interface{}) {
	if j == nil {
		return
	}
	if j.closed.Load() {
		j.dropped.Add(1)
		return
	}
	select {
	case j.queue <- entry{query: query, args: args}:
	default:
		j.dropped.Add(1)
	}
}

// Dropped reports how many entries were discarded because the queue was
// full or the journal closed.
func (j *Journal) Dropped() int64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}

// RecordCommand journals a motor command that changed the applied speeds.
func (j *Journal) RecordCommand(cmd command.MotorCommand) {
	j.enqueue(
		`INSERT INTO motor_commands (run_id, right_speed, left_speed, recorded_at) VALUES (?, ?, ?, ?)`,
		j.RunID().String(), cmd.Right, cmd.Left, unixSeconds(time.Now()),
	)
}

// RecordParseFailure journals a malformed motion message.
func (j *Journal) RecordParseFailure(message string, err error) {
	j.enqueue(
		`INSERT INTO parse_failures (run_id, message, error, recorded_at) VALUES (?, ?, ?, ?)`,
		j.RunID().String(), message, fmt.Sprint(err), unixSeconds(time.Now()),
	)
}

// RecordEncoder journals a tick snapshot.
func (j *Journal) RecordEncoder(left, right int64) {
	j.enqueue(
		`INSERT INTO encoder_snapshots (run_id, left_ticks, right_ticks, recorded_at) VALUES (?, ?, ?, ?)`,
		j.RunID().String(), left, right, unixSeconds(time.Now()),
	)
}

// RecordScan journals the summary of one rotation.
func (j *Journal) RecordScan(scan telemetry.RangeScan) {
	if j == nil {
		return
	}
	s := SummariseScan(scan)
	j.enqueue(
		`INSERT INTO scan_summaries (run_id, points, min_distance, max_distance, mean_distance, stddev_distance, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.runID.String(), s.Points, s.Min, s.Max, s.Mean, s.StdDev, unixSeconds(time.Now()),
	)
}

// Close flushes queued entries, stamps the run's stop time and closes the
// database. Entries recorded after Close are dropped.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		if j.started.Load() {
			close(j.stop)
			<-j.done
		} else {
			j.drain()
		}
		if _, err := j.db.Exec(
			`UPDATE runs SET stopped_at = ?, dropped_entries = ? WHERE run_id = ?`,
			unixSeconds(time.Now()), j.dropped.Load(), j.runID.String(),
		); err != nil {
			logf("failed to stamp run end: %v", err)
		}
		j.closeErr = j.db.Close()
	})
	return j.closeErr
}

// AttachAdminRoutes mounts a tailsql console over the journal on the debug
// mux.
func (j *Journal) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+j.path, j.db, &tailsql.DBOptions{
		Label: "Bridge journal",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
