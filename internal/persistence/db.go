// Package persistence stores run telemetry in SQLite: snapshots of the
// person's state, the decision trail, and the event log, keyed by run.
// Snapshots are zstd-compressed JSON so long batch runs stay small.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/lifesim/internal/decision"
	"github.com/talgya/lifesim/internal/engine"
)

// DB wraps a SQLite connection for run telemetry.
type DB struct {
	conn    *sqlx.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := initPragmas(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pragmas: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	db := &DB{conn: conn, encoder: enc, decoder: dec}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.encoder.Close()
	db.decoder.Close()
	return db.conn.Close()
}

func initPragmas(conn *sqlx.DB) error {
	// WAL suits the append-style write pattern; the busy timeout covers
	// the API reading history while the tick loop saves.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		catalog_digest TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		state BLOB NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		activity_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		score REAL NOT NULL,
		critical INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_run_tick ON decisions(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun registers a new run and returns its id.
func (db *DB) CreateRun(seed int64, catalogDigest string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, started_at, seed, catalog_digest) VALUES (?, ?, ?, ?)",
		id, time.Now().UTC().Format(time.RFC3339), seed, catalogDigest,
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	slog.Info("run registered", "run_id", id, "seed", seed)
	return id, nil
}

// SaveSnapshot stores a compressed status snapshot for a tick. Saving
// the same tick twice replaces the earlier snapshot.
func (db *DB) SaveSnapshot(runID string, status engine.Status) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	blob := db.encoder.EncodeAll(raw, nil)

	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO snapshots (run_id, tick, state) VALUES (?, ?, ?)",
		runID, status.Tick, blob,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot tick %d: %w", status.Tick, err)
	}
	return nil
}

// LoadSnapshot reads back one snapshot.
func (db *DB) LoadSnapshot(runID string, tick uint64) (engine.Status, error) {
	var blob []byte
	err := db.conn.Get(&blob,
		"SELECT state FROM snapshots WHERE run_id = ? AND tick = ?", runID, tick)
	if err != nil {
		return engine.Status{}, fmt.Errorf("load snapshot tick %d: %w", tick, err)
	}

	raw, err := db.decoder.DecodeAll(blob, nil)
	if err != nil {
		return engine.Status{}, fmt.Errorf("decompress snapshot tick %d: %w", tick, err)
	}
	var status engine.Status
	if err := json.Unmarshal(raw, &status); err != nil {
		return engine.Status{}, fmt.Errorf("unmarshal snapshot tick %d: %w", tick, err)
	}
	return status, nil
}

// SnapshotTicks lists the ticks with stored snapshots, ascending.
func (db *DB) SnapshotTicks(runID string) ([]uint64, error) {
	var ticks []uint64
	err := db.conn.Select(&ticks,
		"SELECT tick FROM snapshots WHERE run_id = ? ORDER BY tick", runID)
	return ticks, err
}

// SaveDecisions appends decision records.
func (db *DB) SaveDecisions(runID string, decisions []decision.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range decisions {
		critical := 0
		if d.Critical {
			critical = 1
		}
		_, err := tx.Exec(
			"INSERT INTO decisions (run_id, tick, activity_id, reason, score, critical) VALUES (?, ?, ?, ?, ?, ?)",
			runID, d.Tick, d.ActivityID, d.Reason, d.Score, critical,
		)
		if err != nil {
			return fmt.Errorf("insert decision tick %d: %w", d.Tick, err)
		}
	}
	return tx.Commit()
}

// DecisionRow is a persisted decision record.
type DecisionRow struct {
	Tick       uint64  `db:"tick" json:"tick"`
	ActivityID string  `db:"activity_id" json:"activity_id"`
	Reason     string  `db:"reason" json:"reason"`
	Score      float64 `db:"score" json:"score"`
	Critical   bool    `db:"critical" json:"critical"`
}

// DecisionHistory returns a run's decisions in tick order.
func (db *DB) DecisionHistory(runID string, limit int) ([]DecisionRow, error) {
	var rows []DecisionRow
	err := db.conn.Select(&rows,
		`SELECT tick, activity_id, reason, score, critical FROM decisions
		 WHERE run_id = ? ORDER BY id DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	// Newest-first from the query; flip to tick order for callers.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// SaveEvents appends events to the run's log.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			runID, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentEvents returns the most recent N events for a run, oldest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		`SELECT tick, description, category FROM events
		 WHERE run_id = ? ORDER BY id DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// SaveMeta stores a key-value pair scoped to a run.
func (db *DB) SaveMeta(runID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// GetMeta retrieves a run-scoped metadata value.
func (db *DB) GetMeta(runID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value,
		"SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}

// SaveRunState persists the current simulation state in one call: a
// snapshot, new decision-log entries, new events, and the last tick.
// The run's last_tick meta is a high-water mark: decisions and events
// at or below it were written by an earlier save, so repeated saves
// (daily auto-save, shutdown, on-demand) never duplicate rows.
func (db *DB) SaveRunState(runID string, sim *engine.Simulation) error {
	status := sim.Status()
	if err := db.SaveSnapshot(runID, status); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	var saved uint64
	if v, err := db.GetMeta(runID, "last_tick"); err == nil {
		saved, _ = strconv.ParseUint(v, 10, 64)
	}

	var decisions []decision.Decision
	for _, d := range status.Decisions {
		if d.Tick > saved {
			decisions = append(decisions, d)
		}
	}
	if err := db.SaveDecisions(runID, decisions); err != nil {
		return fmt.Errorf("save decisions: %w", err)
	}

	var events []engine.Event
	for _, e := range sim.Events(0) {
		if e.Tick > saved {
			events = append(events, e)
		}
	}
	if err := db.SaveEvents(runID, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	if err := db.SaveMeta(runID, "last_tick", strconv.FormatUint(status.Tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	slog.Info("run state saved", "run_id", runID, "tick", status.Tick,
		"new_decisions", len(decisions), "new_events", len(events))
	return nil
}
