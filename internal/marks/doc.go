// Package marks locates and classifies bubble fills in the answer-grid
// region of a captured sheet.
//
// The extractor binarizes the grid crop, finds closed-contour regions by
// flood fill, filters them by enclosed area and circularity, clusters the
// survivors into question rows by y-centroid, orders each row left to
// right, and classifies every row from per-bubble fill ratios as a choice
// letter, unanswered, or ambiguous. Ambiguous rows are never tie-broken
// into a guess.
//
// All thresholds are configuration: they are tuned per physical setup
// (lighting, ink, print density), not discovered at runtime.
package marks
