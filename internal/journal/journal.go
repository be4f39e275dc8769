// Package journal is the external persistence consumer of the engine: it
// subscribes to the combined snapshot stream, records resource and
// pattern state in sqlite, and can rehydrate a fresh engine through the
// public ingest API.
//
// The core never imports this package. Durability is strictly an
// external concern; rehydration goes through RegisterPattern and
// UpdateMetrics like any other metric producer, which means patterns get
// new ids on restart (Rehydrate returns the old→new mapping).
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vitalsim/pulse/internal/engine"
	"github.com/vitalsim/pulse/internal/pattern"
)

const schema = `
CREATE TABLE IF NOT EXISTS resources (
    id TEXT PRIMARY KEY,
    current REAL NOT NULL,
    capacity REAL NOT NULL,
    phase TEXT NOT NULL,
    efficiency REAL NOT NULL,
    development_phase TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS patterns (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    stage INTEGER NOT NULL,
    lifecycle_stage TEXT NOT NULL,
    strength REAL NOT NULL,
    coherence REAL NOT NULL,
    resonance REAL NOT NULL,
    stability REAL NOT NULL,
    adaptability REAL NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transitions (
    pattern_id TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    from_stage TEXT NOT NULL,
    to_stage TEXT NOT NULL,
    trigger_label TEXT NOT NULL,
    PRIMARY KEY (pattern_id, occurred_at, to_stage)
);

CREATE INDEX IF NOT EXISTS idx_transitions_pattern ON transitions(pattern_id);
`

// Journal records engine snapshots in sqlite.
type Journal struct {
	db          *sql.DB
	unsubscribe func()
}

// Open creates or opens a journal database at path.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Attach subscribes the journal to the engine's combined snapshot stream.
// Every published snapshot is recorded. Attach replaces any previous
// subscription.
func (j *Journal) Attach(e *engine.Engine) {
	if j.unsubscribe != nil {
		j.unsubscribe()
	}
	j.unsubscribe = e.ObserveAll().Subscribe(func(s engine.Snapshot) {
		// Journaling failures must never break the publish path.
		_ = j.Record(s)
	})
}

// Record persists one snapshot: latest resource and pattern state plus
// any transitions not yet stored.
func (j *Journal) Record(s engine.Snapshot) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning journal transaction: %w", err)
	}
	defer tx.Rollback()

	for id, res := range s.Resources {
		_, err := tx.Exec(`
			INSERT INTO resources (id, current, capacity, phase, efficiency, development_phase, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current = excluded.current,
				capacity = excluded.capacity,
				phase = excluded.phase,
				efficiency = excluded.efficiency,
				development_phase = excluded.development_phase,
				updated_at = excluded.updated_at`,
			id, res.Current, res.Capacity, string(res.Phase), res.Efficiency,
			string(res.DevelopmentPhase), s.Timestamp.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("recording resource %q: %w", id, err)
		}
	}

	for _, p := range s.Patterns {
		_, err := tx.Exec(`
			INSERT INTO patterns (id, type, stage, lifecycle_stage, strength, coherence, resonance, stability, adaptability, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				stage = excluded.stage,
				lifecycle_stage = excluded.lifecycle_stage,
				strength = excluded.strength,
				coherence = excluded.coherence,
				resonance = excluded.resonance,
				stability = excluded.stability,
				adaptability = excluded.adaptability,
				updated_at = excluded.updated_at`,
			p.ID, string(p.Type), p.Stage, string(p.Lifecycle.Stage),
			p.Metrics.Strength, p.Metrics.Coherence, p.Metrics.Resonance,
			p.Metrics.Stability, p.Metrics.Adaptability, s.Timestamp.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("recording pattern %q: %w", p.ID, err)
		}

		for _, tr := range p.Lifecycle.Transitions {
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO transitions (pattern_id, occurred_at, from_stage, to_stage, trigger_label)
				VALUES (?, ?, ?, ?, ?)`,
				p.ID, tr.Timestamp.UTC().Format(time.RFC3339Nano), string(tr.From), string(tr.To), tr.Trigger)
			if err != nil {
				return fmt.Errorf("recording transition for %q: %w", p.ID, err)
			}
		}
	}

	return tx.Commit()
}

// StoredPattern is one persisted pattern row.
type StoredPattern struct {
	ID             string
	Type           pattern.Type
	Stage          int
	LifecycleStage pattern.Stage
	Metrics        pattern.Metrics
	UpdatedAt      time.Time
}

// Patterns returns all persisted pattern rows.
func (j *Journal) Patterns() ([]StoredPattern, error) {
	rows, err := j.db.Query(`
		SELECT id, type, stage, lifecycle_stage, strength, coherence, resonance, stability, adaptability, updated_at
		FROM patterns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying patterns: %w", err)
	}
	defer rows.Close()

	var out []StoredPattern
	for rows.Next() {
		var p StoredPattern
		var typ, stage, updatedAt string
		if err := rows.Scan(&p.ID, &typ, &p.Stage, &stage,
			&p.Metrics.Strength, &p.Metrics.Coherence, &p.Metrics.Resonance,
			&p.Metrics.Stability, &p.Metrics.Adaptability, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning pattern row: %w", err)
		}
		p.Type = pattern.Type(typ)
		p.LifecycleStage = pattern.Stage(stage)
		if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			p.UpdatedAt = ts
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Transitions returns the persisted transition log for one pattern id,
// oldest first.
func (j *Journal) Transitions(patternID string) ([]pattern.Transition, error) {
	rows, err := j.db.Query(`
		SELECT occurred_at, from_stage, to_stage, trigger_label
		FROM transitions WHERE pattern_id = ? ORDER BY occurred_at`, patternID)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []pattern.Transition
	for rows.Next() {
		var tr pattern.Transition
		var occurredAt, from, to string
		if err := rows.Scan(&occurredAt, &from, &to, &tr.Trigger); err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, occurredAt); err == nil {
			tr.Timestamp = ts
		}
		tr.From = pattern.Stage(from)
		tr.To = pattern.Stage(to)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Rehydrate replays persisted pattern state into an engine through the
// public ingest API. Patterns receive fresh ids; the returned map links
// each stored id to its replacement.
func (j *Journal) Rehydrate(e *engine.Engine) (map[string]string, error) {
	stored, err := j.Patterns()
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]string, len(stored))
	for _, p := range stored {
		newID := e.RegisterPattern(p.Type, nil)
		patch := pattern.MetricsPatch{
			Strength:     &p.Metrics.Strength,
			Coherence:    &p.Metrics.Coherence,
			Resonance:    &p.Metrics.Resonance,
			Stability:    &p.Metrics.Stability,
			Adaptability: &p.Metrics.Adaptability,
		}
		if err := e.UpdateMetrics(newID, patch); err != nil {
			return nil, fmt.Errorf("rehydrating pattern %q: %w", p.ID, err)
		}
		mapping[p.ID] = newID
	}
	return mapping, nil
}

// Detach cancels the journal's stream subscription, if any.
func (j *Journal) Detach() {
	if j.unsubscribe != nil {
		j.unsubscribe()
		j.unsubscribe = nil
	}
}

// Close detaches and closes the database.
func (j *Journal) Close() error {
	j.Detach()
	return j.db.Close()
}
