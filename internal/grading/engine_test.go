package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebot/sheetscan/internal/model"
)

func TestGradeSeparatesUnansweredAndAmbiguous(t *testing.T) {
	answers := model.AnswerSet{
		Answers: []model.Answer{
			model.Choice('A'),
			model.Unanswered(),
			model.Ambiguous(),
		},
	}
	key := map[int]byte{1: 'A', 2: 'B', 3: 'C'}

	report := Grade(answers, key)

	assert.Equal(t, 1, report.Score)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Graded)
	assert.Equal(t, 1, report.Unanswered)
	assert.Equal(t, 1, report.Ambiguous)
	assert.InDelta(t, 33.3, report.Percentage, 0.001)
}

func TestGradeExcludesUngradedFromDenominator(t *testing.T) {
	answers := model.AnswerSet{
		Answers: []model.Answer{
			model.Choice('A'),
			model.Choice('B'),
			model.Choice('D'),
			model.Choice('C'),
		},
	}
	// Question 3 has no key entry and must not dilute the percentage.
	key := map[int]byte{1: 'A', 2: 'B', 4: 'C'}

	report := Grade(answers, key)

	assert.Equal(t, 3, report.Score)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.Graded)
	assert.InDelta(t, 100.0, report.Percentage, 0.001)

	require.Len(t, report.PerQuestion, 4)
	assert.False(t, report.PerQuestion[2].Graded)
	assert.False(t, report.PerQuestion[2].Correct)
	assert.True(t, report.PerQuestion[3].Correct)
}

func TestGradeWrongChoiceScoresZero(t *testing.T) {
	answers := model.AnswerSet{
		Answers: []model.Answer{model.Choice('B')},
	}
	report := Grade(answers, map[int]byte{1: 'A'})

	assert.Equal(t, 0, report.Score)
	assert.Equal(t, 0.0, report.Percentage)
	require.Len(t, report.PerQuestion, 1)
	assert.Equal(t, byte('A'), report.PerQuestion[0].Expected)
	assert.False(t, report.PerQuestion[0].Correct)
}

func TestGradeEmptyKeyLeavesPercentageZero(t *testing.T) {
	answers := model.AnswerSet{
		Answers: []model.Answer{model.Choice('A'), model.Choice('B')},
	}
	report := Grade(answers, map[int]byte{})

	assert.Equal(t, 0, report.Graded)
	assert.Equal(t, 0, report.Score)
	assert.Equal(t, 0.0, report.Percentage)
}

func TestGradeAmbiguousNeverScoresEvenWhenKeyMatchesAChoice(t *testing.T) {
	answers := model.AnswerSet{
		Answers: []model.Answer{model.Ambiguous()},
	}
	report := Grade(answers, map[int]byte{1: 'A'})

	assert.Equal(t, 0, report.Score)
	assert.Equal(t, 1, report.Ambiguous)
	assert.Equal(t, 1, report.Graded)
}
