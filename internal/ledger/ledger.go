// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps an append-only SQLite history of workflow
// transitions and generation runs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/design-engine/internal/metadata"
	"github.com/pdiddy/design-engine/pkg/types"
)

const defaultHistoryLimit = 50

// Ledger manages the history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path and creates the schema
// if it does not exist.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			spec TEXT NOT NULL,
			operation TEXT NOT NULL,
			modules TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			spec TEXT NOT NULL,
			module TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			actor TEXT,
			at TEXT NOT NULL,
			run_id TEXT REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_spec ON transitions(spec, id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_spec ON runs(spec, started_at)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

type runIDKey struct{}

// WithRunID tags transitions recorded under ctx with a run.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run ID ctx was tagged with, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// RecordTransition appends one workflow transition. It satisfies
// metadata.TransitionRecorder.
func (l *Ledger) RecordTransition(ctx context.Context, t metadata.Transition) error {
	var runID sql.NullString
	if id := RunID(ctx); id != "" {
		runID = sql.NullString{String: id, Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO transitions (spec, module, from_state, to_state, actor, at, run_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Spec, string(t.Kind), string(t.From), string(t.To), t.Actor, t.At.UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("recording transition: %w", err)
	}
	return nil
}

// Run is one generation or migration invocation.
type Run struct {
	ID        string             `json:"id" yaml:"id"`
	Spec      string             `json:"spec" yaml:"spec"`
	Operation string             `json:"operation" yaml:"operation"`
	Modules   []types.ModuleKind `json:"modules" yaml:"modules"`
	StartedAt time.Time          `json:"startedAt" yaml:"startedAt"`
	EndedAt   *time.Time         `json:"endedAt,omitempty" yaml:"endedAt,omitempty"`
	Succeeded int                `json:"succeeded" yaml:"succeeded"`
	Failed    int                `json:"failed" yaml:"failed"`
	Skipped   int                `json:"skipped" yaml:"skipped"`
}

// StartRun records the start of a run and returns its generated ID.
func (l *Ledger) StartRun(ctx context.Context, spec, operation string, kinds []types.ModuleKind) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, spec, operation, modules, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, spec, operation, joinKinds(kinds), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	return id, nil
}

// FinishRun stores the outcome counts of a run.
func (l *Ledger) FinishRun(ctx context.Context, id string, succeeded, failed, skipped int) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, succeeded = ?, failed = ?, skipped = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), succeeded, failed, skipped, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run: unknown run %s", id)
	}
	return nil
}

// Entry is one recorded transition.
type Entry struct {
	ID     int64               `json:"id" yaml:"id"`
	Spec   string              `json:"spec" yaml:"spec"`
	Module types.ModuleKind    `json:"module" yaml:"module"`
	From   types.WorkflowState `json:"from" yaml:"from"`
	To     types.WorkflowState `json:"to" yaml:"to"`
	Actor  string              `json:"actor,omitempty" yaml:"actor,omitempty"`
	At     time.Time           `json:"at" yaml:"at"`
	RunID  string              `json:"runId,omitempty" yaml:"runId,omitempty"`
}

// History returns the newest transitions of spec first. limit <= 0 uses
// the default (50).
func (l *Ledger) History(ctx context.Context, spec string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, spec, module, from_state, to_state, COALESCE(actor, ''), at, COALESCE(run_id, '')
		 FROM transitions WHERE spec = ? ORDER BY id DESC LIMIT ?`, spec, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var module, from, to, at string
		if err := rows.Scan(&e.ID, &e.Spec, &module, &from, &to, &e.Actor, &at, &e.RunID); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.Module = types.ModuleKind(module)
		e.From = types.WorkflowState(from)
		e.To = types.WorkflowState(to)
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parsing transition time: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Runs returns the newest runs of spec first.
func (l *Ledger) Runs(ctx context.Context, spec string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, spec, operation, modules, started_at, COALESCE(ended_at, ''), succeeded, failed, skipped
		 FROM runs WHERE spec = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`, spec, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var modules, started, ended string
		if err := rows.Scan(&r.ID, &r.Spec, &r.Operation, &modules, &started, &ended, &r.Succeeded, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning runs: %w", err)
		}
		r.Modules = splitKinds(modules)
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parsing run start: %w", err)
		}
		if ended != "" {
			t, err := time.Parse(time.RFC3339Nano, ended)
			if err != nil {
				return nil, fmt.Errorf("parsing run end: %w", err)
			}
			r.EndedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func joinKinds(kinds []types.ModuleKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func splitKinds(s string) []types.ModuleKind {
	if s == "" {
		return nil
	}
	var kinds []types.ModuleKind
	for _, p := range strings.Split(s, ",") {
		kinds = append(kinds, types.ModuleKind(p))
	}
	return kinds
}
