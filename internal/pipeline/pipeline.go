// Package pipeline chains the per-sheet stages: region extraction, mark
// extraction, identity resolution, grading and persistence.
//
// One sheet is processed at a time, synchronously, from inside the
// intake loop's capture callback. No background work survives past a
// sheet; the only calls with externally visible latency are the OCR
// collaborator and the store write, both made inline.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gradebot/sheetscan/internal/config"
	"github.com/gradebot/sheetscan/internal/grading"
	"github.com/gradebot/sheetscan/internal/identity"
	"github.com/gradebot/sheetscan/internal/marks"
	"github.com/gradebot/sheetscan/internal/model"
	"github.com/gradebot/sheetscan/internal/ocr"
	"github.com/gradebot/sheetscan/internal/region"
	"github.com/gradebot/sheetscan/internal/store"
)

// Pipeline processes captured sheets into persisted scan records.
type Pipeline struct {
	regions   *region.Extractor
	marks     *marks.Extractor
	reader    ocr.Reader
	resolver  *identity.Resolver
	answerKey map[int]byte
	store     store.Store
	log       *zap.Logger

	questions     int
	fillThreshold float64
	debugOverlay  bool
}

// New wires the pipeline from configuration and collaborators. The
// roster is read from the store once, here; it stays fixed for the
// session.
func New(ctx context.Context, cfg *config.Config, reader ocr.Reader, st store.Store) (*Pipeline, error) {
	roster, err := st.Roster(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load roster")
	}

	return &Pipeline{
		regions:       region.NewExtractor(cfg.Regions),
		marks:         marks.NewExtractor(cfg.Marks, cfg.Exam.Questions, cfg.Exam.Choices),
		reader:        reader,
		resolver:      identity.NewResolver(cfg.Match, roster),
		answerKey:     cfg.AnswerKeyBytes(),
		store:         st,
		log:           zap.L().Named("pipeline"),
		questions:     cfg.Exam.Questions,
		fillThreshold: cfg.Marks.FillThreshold,
		debugOverlay:  cfg.Marks.DebugOverlay,
	}, nil
}

// ProcessSheet runs the full chain for one captured sheet.
//
// Extraction-quality problems (regions out of bounds, incomplete grids)
// are carried as record flags and still produce a best-effort persisted
// result; only a structurally unusable image or a store failure makes
// ProcessSheet return an error. On a write failure the record is
// returned alongside the error so the caller can retry the idempotent
// insert.
func (p *Pipeline) ProcessSheet(ctx context.Context, sheet model.CapturedSheet, img image.Image) (*model.ScanRecord, error) {
	rec := &model.ScanRecord{
		Sheet:     sheet,
		ScannedAt: time.Now().UTC(),
	}

	regions, err := p.regions.Extract(img)
	if err != nil {
		// Misconfigured crop fractions for this capture resolution:
		// flag it, persist the sheet for audit, answer nothing.
		p.log.Warn("region extraction failed",
			zap.Uint64("seq", sheet.Seq), zap.Error(err))
		rec.Flags.RegionOutOfBounds = true
		rec.Answers = emptyAnswerSet(p.questions)
		rec.Match = model.MatchResult{NeedsReview: true}
	} else {
		answers, err := p.marks.Extract(regions.Grid)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: sheet %d", sheet.Seq)
		}
		rec.Answers = *answers
		rec.Flags.ExtractionIncomplete = answers.Incomplete

		rec.OCRText, rec.OCRConfidence = p.readIdentity(ctx, sheet.Seq, regions.Identity)
		rec.Match = p.resolver.Resolve(rec.OCRText)

		if p.debugOverlay {
			p.writeOverlay(sheet, regions.Grid, answers)
		}
	}

	rec.Grade = grading.Grade(rec.Answers, p.answerKey)
	rec.NeedsReview = rec.Match.NeedsReview

	p.logOutcome(rec)

	if err := p.store.InsertScan(ctx, rec); err != nil {
		// The in-memory record is not lost: hand it back for retry.
		return rec, eris.Wrapf(err, "pipeline: persist sheet %d", sheet.Seq)
	}
	return rec, nil
}

// readIdentity calls the OCR collaborator. An unavailable engine is an
// acquisition error, not fatal: the sheet proceeds with empty text and
// lands in review.
func (p *Pipeline) readIdentity(ctx context.Context, seq uint64, identityRegion image.Image) (string, float64) {
	text, conf, err := p.reader.Read(ctx, identityRegion)
	if err != nil {
		p.log.Warn("identity OCR failed", zap.Uint64("seq", seq), zap.Error(err))
		return "", 0
	}
	return text, conf
}

func (p *Pipeline) writeOverlay(sheet model.CapturedSheet, grid image.Image, answers *model.AnswerSet) {
	overlay := marks.Annotate(grid, answers, p.fillThreshold)
	path := sheet.ImagePath + ".marks.png"
	if err := imaging.Save(overlay, path); err != nil {
		p.log.Warn("overlay write failed", zap.Uint64("seq", sheet.Seq), zap.Error(err))
	}
}

func (p *Pipeline) logOutcome(rec *model.ScanRecord) {
	fields := []zap.Field{
		zap.Uint64("seq", rec.Sheet.Seq),
		zap.Int("score", rec.Grade.Score),
		zap.Int("graded", rec.Grade.Graded),
		zap.Float64("percentage", rec.Grade.Percentage),
		zap.Bool("needs_review", rec.NeedsReview),
		zap.Bool("incomplete", rec.Flags.ExtractionIncomplete),
	}
	if rec.Match.Entry != nil {
		fields = append(fields,
			zap.String("student", rec.Match.Entry.FullName),
			zap.Float64("match_score", rec.Match.Score))
	}
	p.log.Info("sheet processed", fields...)
}

func emptyAnswerSet(questions int) model.AnswerSet {
	set := model.AnswerSet{
		Answers:    make([]model.Answer, questions),
		Incomplete: true,
	}
	for i := range set.Answers {
		set.Answers[i] = model.Unanswered()
	}
	return set
}
