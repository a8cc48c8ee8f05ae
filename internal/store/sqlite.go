package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gradebot/sheetscan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id                    TEXT PRIMARY KEY,
	seq                   INTEGER NOT NULL UNIQUE,
	image_path            TEXT NOT NULL,
	student_id            INTEGER,
	student_name          TEXT,
	ocr_text              TEXT NOT NULL,
	ocr_confidence        REAL NOT NULL,
	match_score           REAL NOT NULL,
	match_json            TEXT NOT NULL,
	answers_json          TEXT NOT NULL,
	grade_json            TEXT NOT NULL,
	score                 INTEGER NOT NULL,
	percentage            REAL NOT NULL,
	unanswered            INTEGER NOT NULL,
	ambiguous             INTEGER NOT NULL,
	extraction_incomplete INTEGER NOT NULL DEFAULT 0,
	region_out_of_bounds  INTEGER NOT NULL DEFAULT 0,
	needs_review          INTEGER NOT NULL DEFAULT 0,
	captured_at           DATETIME NOT NULL,
	scanned_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS roster (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	full_name TEXT NOT NULL UNIQUE,
	name_key  TEXT NOT NULL,
	role      TEXT NOT NULL DEFAULT 'Student'
);

CREATE INDEX IF NOT EXISTS idx_scans_needs_review ON scans(needs_review);
CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scans(scanned_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertScan(ctx context.Context, rec *model.ScanRecord) error {
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

	// ON CONFLICT(seq) DO NOTHING makes retried writes idempotent.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (
			id, seq, image_path, student_id, student_name,
			ocr_text, ocr_confidence, match_score,
			match_json, answers_json, grade_json,
			score, percentage, unanswered, ambiguous,
			extraction_incomplete, region_out_of_bounds, needs_review,
			captured_at, scanned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING`,
		rec.ID, rec.Sheet.Seq, rec.Sheet.ImagePath, studentID, studentName,
		rec.OCRText, rec.OCRConfidence, rec.Match.Score,
		matchJSON, answersJSON, gradeJSON,
		rec.Grade.Score, rec.Grade.Percentage, rec.Grade.Unanswered, rec.Grade.Ambiguous,
		rec.Flags.ExtractionIncomplete, rec.Flags.RegionOutOfBounds, rec.NeedsReview,
		rec.Sheet.CapturedAt.UTC(), rec.ScannedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(ErrWriteFailed, "sqlite: insert scan seq %d: %v", rec.Sheet.Seq, err)
	}
	return nil
}

func (s *SQLiteStore) ListScans(ctx context.Context, limit int) ([]model.ScanRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, image_path, ocr_text, ocr_confidence,
		       match_json, answers_json, grade_json,
		       extraction_incomplete, region_out_of_bounds, needs_review,
		       captured_at, scanned_at
		FROM scans ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var records []model.ScanRecord
	for rows.Next() {
		var rec model.ScanRecord
		var matchJSON, answersJSON, gradeJSON string
		var capturedAt, scannedAt time.Time
		if err := rows.Scan(
			&rec.ID, &rec.Sheet.Seq, &rec.Sheet.ImagePath, &rec.OCRText, &rec.OCRConfidence,
			&matchJSON, &answersJSON, &gradeJSON,
			&rec.Flags.ExtractionIncomplete, &rec.Flags.RegionOutOfBounds, &rec.NeedsReview,
			&capturedAt, &scannedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		if err := decodeRecord(&rec, matchJSON, answersJSON, gradeJSON); err != nil {
			return nil, err
		}
		rec.Sheet.CapturedAt = capturedAt
		rec.ScannedAt = scannedAt
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list scans")
}

func (s *SQLiteStore) Roster(ctx context.Context) ([]model.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, full_name, name_key, role FROM roster ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query roster")
	}
	defer rows.Close()

	var entries []model.RosterEntry
	for rows.Next() {
		var e model.RosterEntry
		if err := rows.Scan(&e.ID, &e.FullName, &e.NameKey, &e.Role); err != nil {
			return nil, eris.Wrap(err, "sqlite: roster row")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: query roster")
}

func (s *SQLiteStore) ImportRoster(ctx context.Context, entries []model.RosterEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin roster import")
	}
	defer tx.Rollback()

	count := 0
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO roster (full_name, name_key, role) VALUES (?, ?, ?)
			ON CONFLICT(full_name) DO UPDATE SET name_key = excluded.name_key, role = excluded.role`,
			e.FullName, e.NameKey, e.Role,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import roster entry %q", e.FullName)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit roster import")
	}
	return count, nil
}

func (s *SQLiteStore) MaxSeq(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM scans`).Scan(&seq)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: max seq")
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// encodeRecord serializes the structured sub-objects stored as JSON
// columns alongside the queryable scalar columns.
func encodeRecord(rec *model.ScanRecord) (matchJSON, answersJSON, gradeJSON string, err error) {
	m, err := json.Marshal(rec.Match)
	if err != nil {
		return "", "", "", eris.Wrap(err, "store: marshal match")
	}
	a, err := json.Marshal(rec.Answers)
	if err != nil {
		return "", "", "", eris.Wrap(err, "store: marshal answers")
	}
	g, err := json.Marshal(rec.Grade)
	if err != nil {
		return "", "", "", eris.Wrap(err, "store: marshal grade")
	}
	return string(m), string(a), string(g), nil
}

func decodeRecord(rec *model.ScanRecord, matchJSON, answersJSON, gradeJSON string) error {
	if err := json.Unmarshal([]byte(matchJSON), &rec.Match); err != nil {
		return eris.Wrap(err, "store: unmarshal match")
	}
	if err := json.Unmarshal([]byte(answersJSON), &rec.Answers); err != nil {
		return eris.Wrap(err, "store: unmarshal answers")
	}
	if err := json.Unmarshal([]byte(gradeJSON), &rec.Grade); err != nil {
		return eris.Wrap(err, "store: unmarshal grade")
	}
	return nil
}
