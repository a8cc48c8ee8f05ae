package model

import (
	"fmt"
	"time"
)

// CapturedSheet identifies one physical sheet captured by the intake loop.
//
// Seq is assigned monotonically by the intake state machine; ImagePath is
// the persisted raw capture artifact. A CapturedSheet is created exactly
// once per physical insertion and never mutated afterwards.
type CapturedSheet struct {
	Seq        uint64    `json:"seq"`
	ImagePath  string    `json:"image_path"`
	CapturedAt time.Time `json:"captured_at"`
}

// AnswerKind discriminates the classification of a single question row.
type AnswerKind int

const (
	// AnswerUnanswered means no bubble in the row was filled.
	AnswerUnanswered AnswerKind = iota

	// AnswerChoice means exactly one bubble was filled.
	AnswerChoice

	// AnswerAmbiguous means two or more bubbles were filled. Ambiguous is
	// a terminal state: it is never coerced into a single choice.
	AnswerAmbiguous
)

// Answer is the classified result for one question. Choice is only
// meaningful when Kind is AnswerChoice.
type Answer struct {
	Kind   AnswerKind `json:"kind"`
	Choice byte       `json:"choice,omitempty"`
}

// Choice builds a selected-choice answer for a choice letter ('A'...).
func Choice(letter byte) Answer {
	return Answer{Kind: AnswerChoice, Choice: letter}
}

// Unanswered is the zero-filled row classification.
func Unanswered() Answer { return Answer{Kind: AnswerUnanswered} }

// Ambiguous is the multiple-filled row classification.
func Ambiguous() Answer { return Answer{Kind: AnswerAmbiguous} }

// String renders the answer as "A".."Z", "unanswered" or "ambiguous".
func (a Answer) String() string {
	switch a.Kind {
	case AnswerChoice:
		return string(a.Choice)
	case AnswerAmbiguous:
		return "ambiguous"
	default:
		return "unanswered"
	}
}

// Bubble describes one candidate mark region located in the answer grid.
type Bubble struct {
	CX        float64 `json:"cx"`         // centroid x within the grid crop
	CY        float64 `json:"cy"`         // centroid y within the grid crop
	Area      int     `json:"area"`       // region area in pixels
	FillRatio float64 `json:"fill_ratio"` // dark fraction inside the region
}

// BubbleGroup is the ordered set of candidate bubbles found for one
// question row, left to right.
type BubbleGroup struct {
	Question int      `json:"question"` // 1-based question index
	Bubbles  []Bubble `json:"bubbles"`
}

// AnswerSet is the per-question classification for one sheet.
//
// Answers is indexed by question order (Answers[0] is question 1) and
// always has exactly the configured question count; rows the extractor
// could not recover are present as unanswered. Incomplete is set when the
// recovered row count did not match the configured question count.
type AnswerSet struct {
	Answers    []Answer      `json:"answers"`
	Groups     []BubbleGroup `json:"groups,omitempty"`
	Incomplete bool          `json:"incomplete"`
}

// RosterEntry is one known identity eligible for matching. NameKey holds
// the normalized form of FullName used for similarity scoring.
type RosterEntry struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	NameKey  string `json:"name_key"`
	Role     string `json:"role"`
}

// Suggestion is a ranked roster candidate retained for manual review.
type Suggestion struct {
	EntryID  int64   `json:"entry_id"`
	FullName string  `json:"full_name"`
	Score    float64 `json:"score"`
}

// MatchResult is the outcome of resolving OCR text against the roster.
//
// Either Entry is non-nil with Score at or above the acceptance threshold,
// or Entry is nil, NeedsReview is true and Suggestions carries up to K
// ranked candidates. Absence of a confident match is an ordinary outcome,
// not an error.
type MatchResult struct {
	Entry       *RosterEntry `json:"entry,omitempty"`
	Score       float64      `json:"score"`
	NeedsReview bool         `json:"needs_review"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// QuestionResult is the per-question grading breakdown.
type QuestionResult struct {
	Question int    `json:"question"`
	Given    Answer `json:"given"`
	Expected byte   `json:"expected,omitempty"` // zero when ungraded
	Correct  bool   `json:"correct"`
	Graded   bool   `json:"graded"`
}

// GradeReport is the pure grading output for one AnswerSet.
//
// Graded is the denominator actually used for Percentage: questions with
// no answer-key entry are excluded. Unanswered and Ambiguous both count
// as incorrect but are tracked separately so reporting can distinguish
// "didn't answer" from "extraction was unreliable".
type GradeReport struct {
	Score       int              `json:"score"`
	Total       int              `json:"total"`
	Graded      int              `json:"graded"`
	Percentage  float64          `json:"percentage"`
	Unanswered  int              `json:"unanswered"`
	Ambiguous   int              `json:"ambiguous"`
	PerQuestion []QuestionResult `json:"per_question"`
}

// ScanFlags records extraction-quality conditions surfaced in the record
// rather than aborting the sheet.
type ScanFlags struct {
	ExtractionIncomplete bool `json:"extraction_incomplete"`
	RegionOutOfBounds    bool `json:"region_out_of_bounds"`
}

// ScanRecord is the persisted unit: one per captured sheet, written
// exactly once, keyed idempotently on Sheet.Seq.
type ScanRecord struct {
	ID            string        `json:"id"`
	Sheet         CapturedSheet `json:"sheet"`
	OCRText       string        `json:"ocr_text"`
	OCRConfidence float64       `json:"ocr_confidence"`
	Match         MatchResult   `json:"match"`
	Answers       AnswerSet     `json:"answers"`
	Grade         GradeReport   `json:"grade"`
	Flags         ScanFlags     `json:"flags"`
	NeedsReview   bool          `json:"needs_review"`
	ScannedAt     time.Time     `json:"scanned_at"`
}

// StudentName returns the resolved name or a review placeholder.
func (r *ScanRecord) StudentName() string {
	if r.Match.Entry != nil {
		return r.Match.Entry.FullName
	}
	return fmt.Sprintf("<unresolved seq %d>", r.Sheet.Seq)
}
