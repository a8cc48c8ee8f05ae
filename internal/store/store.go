// Package store persists scan records and holds the session roster.
//
// Two backends implement the same Store contract: SQLite (default, single
// station) and Postgres (shared deployments). Scan writes are idempotent
// on the sheet sequence id: a retried write for an already-persisted
// sheet is a no-op, never a duplicate.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/gradebot/sheetscan/internal/model"
)

// ErrWriteFailed wraps backend write errors. The intake loop reports it
// to the operator and keeps running; the in-memory record stays with the
// caller for retry.
var ErrWriteFailed = eris.New("store: write failed")

// Store is the persistence boundary of the scanning pipeline.
type Store interface {
	// InsertScan persists one record, keyed idempotently on
	// rec.Sheet.Seq. Inserting the same sequence twice leaves a single
	// record and returns nil.
	InsertScan(ctx context.Context, rec *model.ScanRecord) error

	// ListScans returns the most recent records, newest first.
	ListScans(ctx context.Context, limit int) ([]model.ScanRecord, error)

	// Roster returns every known identity in load order. Loaded once at
	// startup; the set is fixed for the scanning session.
	Roster(ctx context.Context) ([]model.RosterEntry, error)

	// ImportRoster upserts entries by full name and reports how many
	// rows were written.
	ImportRoster(ctx context.Context, entries []model.RosterEntry) (int, error)

	// MaxSeq returns the highest persisted sheet sequence, zero when
	// empty. The intake machine resumes numbering from here.
	MaxSeq(ctx context.Context) (uint64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the configured backend.
func Open(ctx context.Context, driver, url string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(url)
	case "postgres":
		return NewPostgres(ctx, url)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
