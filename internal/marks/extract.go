package marks

import (
	"image"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/gradebot/sheetscan/internal/config"
	"github.com/gradebot/sheetscan/internal/model"
)

// ErrMalformedImage is returned for inputs the extractor cannot analyze
// at all. Unlike extraction_incomplete this is a hard failure: no partial
// AnswerSet is produced.
var ErrMalformedImage = eris.New("marks: malformed grid image")

// Extractor turns an answer-grid crop into a classified AnswerSet.
type Extractor struct {
	cfg       config.MarksConfig
	questions int
	choices   int
}

// NewExtractor builds an extractor for a grid of questions rows and
// choices columns.
func NewExtractor(cfg config.MarksConfig, questions, choices int) *Extractor {
	return &Extractor{cfg: cfg, questions: questions, choices: choices}
}

// Extract runs the full mark-extraction algorithm on the grid crop.
//
// The returned AnswerSet always has exactly the configured question
// count. A row/column count mismatch sets Incomplete and leaves the
// unrecovered questions unanswered; it is never a hard error.
func (e *Extractor) Extract(grid image.Image) (*model.AnswerSet, error) {
	if grid == nil {
		return nil, ErrMalformedImage
	}
	bounds := grid.Bounds()
	if bounds.Dx() < e.choices || bounds.Dy() < e.questions {
		return nil, eris.Wrapf(ErrMalformedImage, "grid %dx%d smaller than %dx%d layout",
			bounds.Dx(), bounds.Dy(), e.choices, e.questions)
	}

	mask := binarize(grid, e.cfg.BinarizeThreshold)
	candidates := e.filterContours(findContours(mask))
	rows := clusterRows(candidates, e.cfg.RowTolerance)

	set := &model.AnswerSet{
		Answers: make([]model.Answer, e.questions),
	}
	for i := range set.Answers {
		set.Answers[i] = model.Unanswered()
	}

	if len(rows) != e.questions {
		set.Incomplete = true
		if len(rows) > e.questions {
			rows = rows[:e.questions]
		}
	}

	// Rows are already in top-to-bottom order, so assigning them to
	// question indexes in sequence keeps the mapping monotonic.
	for i, row := range rows {
		group := model.BubbleGroup{Question: i + 1}
		for _, c := range row {
			group.Bubbles = append(group.Bubbles, model.Bubble{
				CX:        c.cx,
				CY:        c.cy,
				Area:      c.enclosed,
				FillRatio: c.fillRatio(),
			})
		}
		set.Groups = append(set.Groups, group)
		set.Answers[i] = e.classifyRow(row)

		if len(row) != e.choices {
			set.Incomplete = true
		}
	}

	return set, nil
}

// filterContours applies the area and circularity gates that separate
// bubbles from noise specks, merged blobs, smears and text fragments.
func (e *Extractor) filterContours(all []*contour) []*contour {
	var kept []*contour
	for _, c := range all {
		if c.enclosed < e.cfg.MinArea || c.enclosed > e.cfg.MaxArea {
			continue
		}
		if c.circularity() < e.cfg.CircularityThreshold {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// classifyRow applies the tie policy: zero filled is unanswered, exactly
// one filled is that choice, two or more filled is ambiguous. Ambiguous is
// reported as-is, never resolved by a heuristic tie-break.
func (e *Extractor) classifyRow(row []*contour) model.Answer {
	filled := -1
	count := 0
	for i, c := range row {
		if c.fillRatio() >= e.cfg.FillThreshold {
			count++
			filled = i
		}
	}
	switch {
	case count == 0:
		return model.Unanswered()
	case count == 1:
		return model.Choice(byte('A' + filled))
	default:
		return model.Ambiguous()
	}
}

// clusterRows groups candidates into question rows by y-centroid
// proximity and orders each row left to right by x-centroid. The cluster
// tolerance is proportional to the estimated row height, so the grid
// structure is recovered without absolute pixel coordinates and survives
// minor print or scan skew.
func clusterRows(candidates []*contour, tolerance float64) [][]*contour {
	if len(candidates) == 0 {
		return nil
	}

	rowHeight := estimateRowHeight(candidates)
	maxGap := rowHeight * tolerance
	if maxGap < 1 {
		maxGap = 1
	}

	sorted := make([]*contour, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].cy < sorted[j].cy })

	var rows [][]*contour
	current := []*contour{sorted[0]}
	anchor := sorted[0].cy

	for _, c := range sorted[1:] {
		if c.cy-anchor > maxGap {
			rows = append(rows, current)
			current = nil
		}
		current = append(current, c)
		anchor = c.cy
	}
	rows = append(rows, current)

	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool { return row[i].cx < row[j].cx })
	}
	return rows
}

// estimateRowHeight returns the median bubble height of the candidates.
func estimateRowHeight(candidates []*contour) float64 {
	heights := make([]int, len(candidates))
	for i, c := range candidates {
		heights[i] = c.bounds.Dy()
	}
	sort.Ints(heights)
	return float64(heights[len(heights)/2])
}
