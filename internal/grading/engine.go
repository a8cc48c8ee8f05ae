// Package grading scores a classified AnswerSet against the answer key.
// Grading is a pure function: no I/O, no failure modes on well-formed
// inputs.
package grading

import (
	"math"

	"github.com/gradebot/sheetscan/internal/model"
)

// Grade scores answers against key. Questions absent from the key are
// ungraded: excluded from the percentage denominator but still present in
// the per-question breakdown.
//
// Unanswered and ambiguous both score zero but are counted separately so
// downstream reporting can tell "didn't answer" from "extraction was
// unreliable".
func Grade(answers model.AnswerSet, key map[int]byte) model.GradeReport {
	report := model.GradeReport{
		Total:       len(answers.Answers),
		PerQuestion: make([]model.QuestionResult, 0, len(answers.Answers)),
	}

	for i, answer := range answers.Answers {
		question := i + 1
		expected, graded := key[question]

		qr := model.QuestionResult{
			Question: question,
			Given:    answer,
			Graded:   graded,
		}
		if graded {
			qr.Expected = expected
			report.Graded++
		}

		switch answer.Kind {
		case model.AnswerUnanswered:
			report.Unanswered++
		case model.AnswerAmbiguous:
			report.Ambiguous++
		case model.AnswerChoice:
			if graded && answer.Choice == expected {
				qr.Correct = true
				report.Score++
			}
		}

		report.PerQuestion = append(report.PerQuestion, qr)
	}

	if report.Graded > 0 {
		pct := float64(report.Score) / float64(report.Graded) * 100
		report.Percentage = math.Round(pct*10) / 10
	}

	return report
}
