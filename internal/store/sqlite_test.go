package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebot/sheetscan/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleRecord(seq uint64) *model.ScanRecord {
	entry := model.RosterEntry{ID: 7, FullName: "Jonathan Smith", NameKey: "jonathan smith"}
	return &model.ScanRecord{
		Sheet: model.CapturedSheet{
			Seq:        seq,
			ImagePath:  "scans/scan_000001.png",
			CapturedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		},
		OCRText:       "Jonathan Smith",
		OCRConfidence: 0.91,
		Match:         model.MatchResult{Entry: &entry, Score: 0.95},
		Answers: model.AnswerSet{
			Answers: []model.Answer{model.Choice('A'), model.Unanswered(), model.Ambiguous()},
		},
		Grade: model.GradeReport{
			Score: 1, Total: 3, Graded: 3, Percentage: 33.3,
			Unanswered: 1, Ambiguous: 1,
		},
		ScannedAt: time.Date(2026, 3, 14, 9, 26, 54, 0, time.UTC),
	}
}

func TestSQLiteInsertScanIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord(1)
	require.NoError(t, s.InsertScan(ctx, rec))
	assert.NotEmpty(t, rec.ID, "insert must assign an id")

	// A retried write for the same sheet is a no-op.
	retry := sampleRecord(1)
	retry.OCRText = "different text from a retry"
	require.NoError(t, s.InsertScan(ctx, retry))

	records, err := s.ListScans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Jonathan Smith", records[0].OCRText)
}

func TestSQLiteInsertAndListRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertScan(ctx, sampleRecord(1)))
	require.NoError(t, s.InsertScan(ctx, sampleRecord(2)))

	records, err := s.ListScans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, uint64(2), records[0].Sheet.Seq)
	assert.Equal(t, uint64(1), records[1].Sheet.Seq)

	got := records[1]
	require.NotNil(t, got.Match.Entry)
	assert.Equal(t, int64(7), got.Match.Entry.ID)
	assert.InDelta(t, 0.95, got.Match.Score, 0.0001)
	require.Len(t, got.Answers.Answers, 3)
	assert.Equal(t, "A", got.Answers.Answers[0].String())
	assert.Equal(t, model.AnswerAmbiguous, got.Answers.Answers[2].Kind)
	assert.Equal(t, 1, got.Grade.Score)
	assert.InDelta(t, 33.3, got.Grade.Percentage, 0.0001)
	assert.Equal(t, 2026, got.Sheet.CapturedAt.Year())
}

func TestSQLiteListScansLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, s.InsertScan(ctx, sampleRecord(seq)))
	}

	records, err := s.ListScans(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(5), records[0].Sheet.Seq)
}

func TestSQLiteMaxSeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq, "empty table reports zero")

	require.NoError(t, s.InsertScan(ctx, sampleRecord(3)))
	require.NoError(t, s.InsertScan(ctx, sampleRecord(9)))

	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), seq)
}

func TestSQLiteRosterImportAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.ImportRoster(ctx, []model.RosterEntry{
		{FullName: "Jonathan Smith", NameKey: "jonathan smith", Role: "Student"},
		{FullName: "Jon Smithson", NameKey: "jon smithson", Role: "Student"},
		{FullName: "Maria Garcia", NameKey: "maria garcia", Role: "Auditor"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := s.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Load order is insertion order; identity resolution tie-breaks
	// depend on it.
	assert.Equal(t, "Jonathan Smith", entries[0].FullName)
	assert.Equal(t, "Jon Smithson", entries[1].FullName)
	assert.Equal(t, "Maria Garcia", entries[2].FullName)
}

func TestSQLiteRosterReimportUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ImportRoster(ctx, []model.RosterEntry{
		{FullName: "Maria Garcia", NameKey: "maria garcia", Role: "Student"},
	})
	require.NoError(t, err)

	_, err = s.ImportRoster(ctx, []model.RosterEntry{
		{FullName: "Maria Garcia", NameKey: "maria garcia", Role: "Auditor"},
		{FullName: "New Person", NameKey: "new person", Role: "Student"},
	})
	require.NoError(t, err)

	entries, err := s.Roster(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Auditor", entries[0].Role)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	require.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(context.Background()))
}
