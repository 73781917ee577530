package savedquery

import (
	"strings"
	"unicode"

	"loginsight-backend/internal/model"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "in": true, "on": true,
	"by": true, "to": true, "and": true, "or": true, "me": true, "show": true, "what": true,
	"is": true, "are": true, "with": true, "last": true, "all": true,
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

// similarity is the Jaccard index of the content words of a and b.
func similarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// pickMostSimilar returns nil when no description shares a content word with
// text. Ties go to the most recently updated query.
func pickMostSimilar(text string, queries []model.SavedQuery) (*model.SavedQuery, float64) {
	want := tokens(text)
	var best *model.SavedQuery
	bestScore := 0.0
	for i := range queries {
		q := &queries[i]
		score := similarity(want, tokens(q.Description))
		if score == 0 {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && q.UpdatedAt.After(best.UpdatedAt)) {
			best, bestScore = q, score
		}
	}
	return best, bestScore
}
