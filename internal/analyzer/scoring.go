package analyzer

import (
	"regexp"
	"strings"
)

// ScoreCategories picks the category whose keywords appear most often in
// text. A category scores one point per distinct keyword found as a
// case-insensitive substring. Ties go to the category declared first, and
// set.Default is returned when nothing scores.
func ScoreCategories(text string, set CategorySet) string {
	lower := strings.ToLower(text)
	best, bestScore := set.Default, 0
	for _, c := range set.Categories {
		if score := keywordHits(lower, c.Keywords); score > bestScore {
			best, bestScore = c.Label, score
		}
	}
	return best
}

// MatchingCategories returns every category with at least one keyword in
// text, in declaration order, or just set.Default when none match.
func MatchingCategories(text string, set CategorySet) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, c := range set.Categories {
		if keywordHits(lower, c.Keywords) > 0 {
			found = append(found, c.Label)
		}
	}
	if len(found) == 0 {
		return []string{set.Default}
	}
	return found
}

// Present returns the terms of vocab that occur in text, in vocabulary order.
// The result is never nil.
func Present(text string, vocab []string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, term := range vocab {
		if strings.Contains(lower, term) {
			found = append(found, term)
		}
	}
	return found
}

// CaptureFirst tries each pattern in order and returns the first non-empty
// trimmed capture.
func CaptureFirst(text string, patterns []*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if s := strings.TrimSpace(m[1]); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// CaptureAll collects every non-empty trimmed capture of every pattern,
// pattern by pattern.
func CaptureAll(text string, patterns []*regexp.Regexp) []string {
	out := []string{}
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if s := strings.TrimSpace(m[1]); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func keywordHits(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

func containsAny(lower string, words []string) bool {
	return keywordHits(lower, words) > 0
}
