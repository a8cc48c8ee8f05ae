package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gradebot/sheetscan/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool. Meant for deployments
// where several capture stations report into one shared database.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id                    TEXT PRIMARY KEY,
	seq                   BIGINT NOT NULL UNIQUE,
	image_path            TEXT NOT NULL,
	student_id            BIGINT,
	student_name          TEXT,
	ocr_text              TEXT NOT NULL,
	ocr_confidence        DOUBLE PRECISION NOT NULL,
	match_score           DOUBLE PRECISION NOT NULL,
	match_json            JSONB NOT NULL,
	answers_json          JSONB NOT NULL,
	grade_json            JSONB NOT NULL,
	score                 INTEGER NOT NULL,
	percentage            DOUBLE PRECISION NOT NULL,
	unanswered            INTEGER NOT NULL,
	ambiguous             INTEGER NOT NULL,
	extraction_incomplete BOOLEAN NOT NULL DEFAULT FALSE,
	region_out_of_bounds  BOOLEAN NOT NULL DEFAULT FALSE,
	needs_review          BOOLEAN NOT NULL DEFAULT FALSE,
	captured_at           TIMESTAMPTZ NOT NULL,
	scanned_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS roster (
	id        BIGSERIAL PRIMARY KEY,
	full_name TEXT NOT NULL UNIQUE,
	name_key  TEXT NOT NULL,
	role      TEXT NOT NULL DEFAULT 'Student'
);

CREATE INDEX IF NOT EXISTS idx_scans_needs_review ON scans(needs_review);
CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertScan(ctx context.Context, rec *model.ScanRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	matchJSON, answersJSON, gradeJSON, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	var studentID *int64
	var studentName *string
	if rec.Match.Entry != nil {
		studentID = &rec.Match.Entry.ID
		studentName = &rec.Match.Entry.FullName
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO scans (
			id, seq, image_path, student_id, student_name,
			ocr_text, ocr_confidence, match_score,
			match_json, answers_json, grade_json,
			score, percentage, unanswered, ambiguous,
			extraction_incomplete, region_out_of_bounds, needs_review,
			captured_at, scanned_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (seq) DO NOTHING`,
		rec.ID, int64(rec.Sheet.Seq), rec.Sheet.ImagePath, studentID, studentName,
		rec.OCRText, rec.OCRConfidence, rec.Match.Score,
		matchJSON, answersJSON, gradeJSON,
		rec.Grade.Score, rec.Grade.Percentage, rec.Grade.Unanswered, rec.Grade.Ambiguous,
		rec.Flags.ExtractionIncomplete, rec.Flags.RegionOutOfBounds, rec.NeedsReview,
		rec.Sheet.CapturedAt.UTC(), rec.ScannedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(ErrWriteFailed, "postgres: insert scan seq %d: %v", rec.Sheet.Seq, err)
	}
	return nil
}

func (s *PostgresStore) ListScans(ctx context.Context, limit int) ([]model.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, seq, image_path, ocr_text, ocr_confidence,
		       match_json, answers_json, grade_json,
		       extraction_incomplete, region_out_of_bounds, needs_review,
		       captured_at, scanned_at
		FROM scans ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var records []model.ScanRecord
	for rows.Next() {
		var rec model.ScanRecord
		var seq int64
		var matchJSON, answersJSON, gradeJSON string
		if err := rows.Scan(
			&rec.ID, &seq, &rec.Sheet.ImagePath, &rec.OCRText, &rec.OCRConfidence,
			&matchJSON, &answersJSON, &gradeJSON,
			&rec.Flags.ExtractionIncomplete, &rec.Flags.RegionOutOfBounds, &rec.NeedsReview,
			&rec.Sheet.CapturedAt, &rec.ScannedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		rec.Sheet.Seq = uint64(seq)
		if err := decodeRecord(&rec, matchJSON, answersJSON, gradeJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list scans")
}

func (s *PostgresStore) Roster(ctx context.Context) ([]model.RosterEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, full_name, name_key, role FROM roster ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query roster")
	}
	defer rows.Close()

	var entries []model.RosterEntry
	for rows.Next() {
		var e model.RosterEntry
		if err := rows.Scan(&e.ID, &e.FullName, &e.NameKey, &e.Role); err != nil {
			return nil, eris.Wrap(err, "postgres: roster row")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: query roster")
}

func (s *PostgresStore) ImportRoster(ctx context.Context, entries []model.RosterEntry) (int, error) {
	count := 0
	for _, e := range entries {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO roster (full_name, name_key, role) VALUES ($1, $2, $3)
			ON CONFLICT (full_name) DO UPDATE SET name_key = EXCLUDED.name_key, role = EXCLUDED.role`,
			e.FullName, e.NameKey, e.Role,
		); err != nil {
			return count, eris.Wrapf(err, "postgres: import roster entry %q", e.FullName)
		}
		count++
	}
	return count, nil
}

func (s *PostgresStore) MaxSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	err := s.pool.QueryRow(ctx, `SELECT MAX(seq) FROM scans`).Scan(&seq)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: max seq")
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}
