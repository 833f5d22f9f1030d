// Package sessionlog persists rowing sessions and periodic samples to a
// local SQLite database: one sessions row per workout, one samples row per
// interval-gated telemetry snapshot.
package sessionlog

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/elp3dr/wrowfusion/internal/rower"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_time TEXT NOT NULL,
	end_time TEXT,
	completed INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL REFERENCES sessions(id),
	timestamp TEXT NOT NULL,
	stroke_rate REAL,
	heart_rate INTEGER,
	pace_secs REAL,
	distance_m REAL,
	elapsed_secs REAL,
	power_watts INTEGER
);
`

// Config controls whether and how often samples are recorded.
type Config struct {
	Enabled    bool
	Path       string
	IntervalMs int
}

// Logger owns the SQLite connection and the current session, if any.
type Logger struct {
	mu        sync.Mutex
	db        *sql.DB
	enabled   bool
	interval  time.Duration
	lastWrite time.Time

	currentSessionID int64
	haveSession      bool
}

// New opens (creating if necessary) the SQLite database at cfg.Path and
// ensures its schema exists. If cfg.Enabled is false, New still opens the
// database (so Enable can be toggled live) but Record is a no-op until
// enabled.
func New(cfg Config) *Logger {
	l := &Logger{enabled: cfg.Enabled}
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = 1000
	}
	l.interval = time.Duration(cfg.IntervalMs) * time.Millisecond

	if cfg.Path == "" {
		log.Printf("[sessionlog] no path configured, logging disabled")
		return l
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		log.Printf("[sessionlog] open %s: %v", cfg.Path, err)
		return l
	}
	if _, err := db.Exec(schema); err != nil {
		log.Printf("[sessionlog] create schema: %v", err)
		db.Close()
		return l
	}
	l.db = db
	return l
}

// SetEnabled toggles whether Record actually writes samples.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// startSessionLocked inserts a new sessions row and remembers its id. Must
// be called with l.mu held.
func (l *Logger) startSessionLocked() error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := l.db.Exec(`INSERT INTO sessions (start_time) VALUES (?)`, now)
	if err != nil {
		return fmt.Errorf("sessionlog: start session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sessionlog: session id: %w", err)
	}
	l.currentSessionID = id
	l.haveSession = true
	return nil
}

// EndSession closes out the current session, if one is open, recording its
// end time and whether it completed.
func (l *Logger) EndSession(completed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.haveSession || l.db == nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := l.db.Exec(
		`UPDATE sessions SET end_time = ?, completed = ? WHERE id = ?`,
		now, boolToInt(completed), l.currentSessionID,
	); err != nil {
		log.Printf("[sessionlog] end session: %v", err)
	}
	l.haveSession = false
}

// Record writes one sample row for the current session, auto-starting a
// session if none is open yet, gated by the configured sample interval so a
// 200ms telemetry tick doesn't produce a row-per-tick unless IntervalMs is
// that small.
func (l *Logger) Record(snap rower.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || l.db == nil {
		return
	}
	if snap.IsZeroed {
		return
	}
	if !l.lastWrite.IsZero() && time.Since(l.lastWrite) < l.interval {
		return
	}
	l.lastWrite = time.Now()

	if !l.haveSession {
		if err := l.startSessionLocked(); err != nil {
			log.Printf("[sessionlog] %v", err)
			return
		}
	}

	_, err := l.db.Exec(`
		INSERT INTO samples
		(session_id, timestamp, stroke_rate, heart_rate, pace_secs, distance_m, elapsed_secs, power_watts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.currentSessionID,
		snap.At.UTC().Format(time.RFC3339Nano),
		snap.StrokeRate,
		snap.HeartRateBPM,
		snap.Pace500m.Seconds(),
		snap.DistanceMeters,
		snap.ElapsedTime.Seconds(),
		snap.InstWatts,
	)
	if err != nil {
		log.Printf("[sessionlog] insert sample: %v", err)
	}
}

// Close ends any open session and closes the database.
func (l *Logger) Close() error {
	l.EndSession(true)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
