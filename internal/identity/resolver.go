package identity

import (
	"sort"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/gradebot/sheetscan/internal/config"
	"github.com/gradebot/sheetscan/internal/model"
)

// Resolver matches normalized OCR text against the roster.
//
// The roster is loaded once at startup and read-only for the session;
// ties at the top score are broken by roster load order, a deliberate
// arbitrary-but-deterministic choice.
type Resolver struct {
	cfg    config.MatchConfig
	roster []model.RosterEntry
}

// NewResolver builds a resolver over the session roster. Entries missing
// a NameKey get one computed from FullName.
func NewResolver(cfg config.MatchConfig, roster []model.RosterEntry) *Resolver {
	entries := make([]model.RosterEntry, len(roster))
	copy(entries, roster)
	for i := range entries {
		if entries[i].NameKey == "" {
			entries[i].NameKey = Normalize(entries[i].FullName)
		}
	}
	return &Resolver{cfg: cfg, roster: entries}
}

// Resolve maps raw OCR text to a MatchResult. It never fails: absence of
// a confident match is a first-class needs-review outcome, not an error.
//
// Normalized text under 2 runes or over the configured max length is
// treated as empty — the OCR collaborator most likely read the wrong
// region (a header, a stray smudge) rather than the name field, and
// scoring the roster against garbage would only produce misleading
// suggestions.
func (r *Resolver) Resolve(rawText string) model.MatchResult {
	key := Normalize(rawText)
	if n := utf8.RuneCountInString(key); n < 2 || (r.cfg.MaxNameLen > 0 && n > r.cfg.MaxNameLen) {
		return model.MatchResult{NeedsReview: true}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(r.roster))
	for i, entry := range r.roster {
		ranked[i] = scored{idx: i, score: levenshtein.Similarity(key, entry.NameKey, nil)}
	}

	// Stable sort keeps roster order among equal scores.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > 0 && ranked[0].score >= r.cfg.Threshold {
		entry := r.roster[ranked[0].idx]
		return model.MatchResult{Entry: &entry, Score: ranked[0].score}
	}

	result := model.MatchResult{NeedsReview: true}
	if len(ranked) > 0 {
		result.Score = ranked[0].score
	}
	k := r.cfg.Suggestions
	if k > len(ranked) {
		k = len(ranked)
	}
	for _, s := range ranked[:k] {
		entry := r.roster[s.idx]
		result.Suggestions = append(result.Suggestions, model.Suggestion{
			EntryID:  entry.ID,
			FullName: entry.FullName,
			Score:    s.score,
		})
	}
	return result
}

// Roster exposes the resolver's session roster, primarily for reporting.
func (r *Resolver) Roster() []model.RosterEntry {
	return r.roster
}
