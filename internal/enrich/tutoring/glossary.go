package tutoring

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

// definitionPatterns capture "<term> is/are/refers to/is defined as <definition>".
var definitionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^([A-Z][\w\- ]{1,40}?)\s+is defined as\s+(.+)$`),
	regexp.MustCompile(`(?i)^([A-Z][\w\- ]{1,40}?)\s+refers to\s+(.+)$`),
	regexp.MustCompile(`(?i)^([A-Z][\w\- ]{1,40}?)\s+(?:is|are)\s+((?:a|an|the)\s+.+)$`),
}

// buildGlossary harvests term definitions from definition-typed segments,
// deduplicates by normalized term, and cross-links terms that co-occur.
func buildGlossary(segments []domain.Segment) []domain.GlossaryEntry {
	byTerm := map[string]*domain.GlossaryEntry{}
	var order []string

	for _, seg := range segments {
		if seg.Type != domain.SegmentDefinition {
			continue
		}
		for _, sent := range textutil.SplitSentences(seg.Text) {
			term, def := matchDefinition(sent.Text)
			if term == "" {
				continue
			}
			key := textutil.NormalizeTerm(term)
			entry, seen := byTerm[key]
			if !seen {
				entry = &domain.GlossaryEntry{
					Term:          term,
					Definition:    def,
					Pronunciation: pronunciationHint(term),
				}
				byTerm[key] = entry
				order = append(order, key)
			} else if len(def) > len(entry.Definition) {
				// Prefer the fuller definition when a term is defined twice.
				entry.Definition = def
			}
			if !contains(entry.SegmentIDs, seg.ID) {
				entry.SegmentIDs = append(entry.SegmentIDs, seg.ID)
			}
		}
	}

	// Related terms: other glossary terms mentioned inside this definition.
	for _, key := range order {
		entry := byTerm[key]
		defWords := strings.ToLower(entry.Definition)
		for _, otherKey := range order {
			if otherKey == key {
				continue
			}
			if strings.Contains(defWords, otherKey) {
				entry.RelatedTerms = append(entry.RelatedTerms, byTerm[otherKey].Term)
			}
		}
		sort.Strings(entry.RelatedTerms)
	}

	out := make([]domain.GlossaryEntry, 0, len(order))
	for _, key := range order {
		out = append(out, *byTerm[key])
	}
	return out
}

func matchDefinition(sentence string) (term, def string) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sentence), "."))
	for _, re := range definitionPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			term = strings.TrimSpace(m[1])
			def = strings.TrimSpace(m[2])
			if textutil.WordCount(term) <= 5 && textutil.WordCount(def) >= 3 {
				return term, def
			}
		}
	}
	return "", ""
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
