package segment

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

var (
	definitionRe = regexp.MustCompile(`(?i)\b(is defined as|refers to|is called|means that|is a (type|kind|form) of|, known as)\b`)
	exampleRe    = regexp.MustCompile(`(?i)\b(for example|for instance|e\.g\.|consider the|suppose (that|we)|let's work through|worked example)\b`)
	summaryRe    = regexp.MustCompile(`(?i)\b(in summary|to summarize|in conclusion|to recap|key takeaways?)\b`)
	transitionRe = regexp.MustCompile(`(?i)^(now that|next[, ]|moving on|before we|in the (next|previous) section|so far)`)
)

// classify assigns a segment type from lexical cues. First match wins in
// specificity order; everything else is narrative.
func classify(seg *domain.Segment, _ domain.Tunables) {
	text := seg.Text
	switch {
	case summaryRe.MatchString(text):
		seg.Type = domain.SegmentSummary
	case definitionRe.MatchString(text):
		seg.Type = domain.SegmentDefinition
	case exampleRe.MatchString(text):
		seg.Type = domain.SegmentExample
	case transitionRe.MatchString(text) && seg.WordCount < 80:
		seg.Type = domain.SegmentTransition
	default:
		seg.Type = domain.SegmentNarrative
	}
	seg.KeyConcepts = keyConcepts(text, 5)
}

// markCheckpoint marks natural pause points: definitions, worked examples,
// long segments, and high-confidence topic boundaries.
func markCheckpoint(seg *domain.Segment) {
	switch {
	case seg.Type == domain.SegmentDefinition:
		seg.IsCheckpoint = true
		seg.CheckpointType = domain.CheckpointDefinition
	case seg.Type == domain.SegmentExample:
		seg.IsCheckpoint = true
		seg.CheckpointType = domain.CheckpointExample
	case seg.WordCount >= 200:
		seg.IsCheckpoint = true
		seg.CheckpointType = domain.CheckpointLength
	case seg.BoundaryConfidence >= 0.75:
		seg.IsCheckpoint = true
		seg.CheckpointType = domain.CheckpointBoundary
	}
}

var conceptStopwords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "this": {}, "with": {}, "from": {},
	"have": {}, "has": {}, "are": {}, "was": {}, "were": {}, "for": {},
	"not": {}, "but": {}, "its": {}, "can": {}, "will": {}, "into": {},
	"when": {}, "then": {}, "than": {}, "also": {}, "each": {}, "which": {},
	"their": {}, "them": {}, "these": {}, "those": {}, "such": {}, "some": {},
	"more": {}, "most": {}, "other": {}, "about": {}, "between": {},
}

// keyConcepts returns the most frequent content words, longest-first on ties
// so multiword technical terms beat filler.
func keyConcepts(text string, limit int) []string {
	counts := map[string]int{}
	for _, w := range textutil.Words(text) {
		if len(w) < 4 {
			continue
		}
		if _, stop := conceptStopwords[w]; stop {
			continue
		}
		counts[w]++
	}
	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = textutil.NormalizeTerm(strings.TrimSpace(t))
	}
	return out
}
