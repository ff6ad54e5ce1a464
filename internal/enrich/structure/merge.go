package structure

import (
	"sort"

	"github.com/yungbote/curricula-backend/internal/domain"
)

// mergeProposals folds extra candidates into base. Two candidates at the same
// level whose spans overlap by more than the threshold (relative to the
// smaller span) describe the same section: the higher-confidence one wins and
// absorbs the other's rationale.
func mergeProposals(base, extra []*domain.StructureNode, overlapThreshold float64) []*domain.StructureNode {
	out := make([]*domain.StructureNode, len(base))
	copy(out, base)

	for _, cand := range extra {
		merged := false
		for _, existing := range out {
			if existing.Level != cand.Level {
				continue
			}
			ov := existing.Span.Overlap(cand.Span)
			smaller := existing.Span.Len()
			if cand.Span.Len() < smaller {
				smaller = cand.Span.Len()
			}
			if smaller == 0 || float64(ov)/float64(smaller) <= overlapThreshold {
				continue
			}
			if cand.Confidence > existing.Confidence {
				existing.Title = cand.Title
				existing.Confidence = cand.Confidence
				existing.Method = cand.Method
			}
			existing.Rationale = append(existing.Rationale, cand.Rationale...)
			merged = true
			break
		}
		if !merged {
			out = append(out, cand)
		}
	}
	return out
}

// finalize turns a flat candidate list into a tree satisfying the span
// invariants: every child span is contained in its parent, sibling spans are
// disjoint, and siblings are ordered by start offset.
func finalize(text string, flat []*domain.StructureNode) []*domain.StructureNode {
	for _, n := range flat {
		n.Children = nil
		n.Span = clampSpan(n.Span, 0, len(text))
	}
	sort.SliceStable(flat, func(i, j int) bool {
		if flat[i].Level != flat[j].Level {
			return flat[i].Level < flat[j].Level
		}
		return flat[i].Span.Start < flat[j].Span.Start
	})

	var roots []*domain.StructureNode
	for _, n := range flat {
		if n.Span.Len() <= 0 {
			continue
		}
		if n.Level == 0 {
			roots = append(roots, n)
			continue
		}
		parent := deepestContainer(roots, n)
		if parent == nil {
			// Orphan: promote to module so no content is lost.
			n.Level = 0
			n.Type = domain.NodeModule
			roots = append(roots, n)
			continue
		}
		n.Span = clampSpan(n.Span, parent.Span.Start, parent.Span.End)
		n.Level = parent.Level + 1
		n.Type = nodeTypeForLevel(n.Level)
		parent.Children = append(parent.Children, n)
	}

	if len(roots) == 0 {
		return nil
	}
	roots = sortAndDisjoin(roots, 0, len(text))
	for _, r := range roots {
		disjoinTree(r)
	}
	return roots
}

// deepestContainer finds the node whose span contains the candidate's start,
// descending as far as levels allow.
func deepestContainer(roots []*domain.StructureNode, n *domain.StructureNode) *domain.StructureNode {
	var best *domain.StructureNode
	cur := roots
	for {
		var next *domain.StructureNode
		for _, c := range cur {
			if c.Level < n.Level && c.Span.Start <= n.Span.Start && n.Span.Start < c.Span.End {
				next = c
				break
			}
		}
		if next == nil {
			return best
		}
		best = next
		cur = next.Children
	}
}

func disjoinTree(n *domain.StructureNode) {
	if len(n.Children) == 0 {
		return
	}
	n.Children = sortAndDisjoin(n.Children, n.Span.Start, n.Span.End)
	for _, c := range n.Children {
		disjoinTree(c)
	}
}

// sortAndDisjoin orders siblings by start and clips each span so no two
// overlap. On overlap the later sibling keeps its tail; a sibling fully
// swallowed by its predecessor collapses to zero length and is dropped.
func sortAndDisjoin(nodes []*domain.StructureNode, lo, hi int) []*domain.StructureNode {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Span.Start < nodes[j].Span.Start })
	prevEnd := lo
	kept := nodes[:0]
	for _, n := range nodes {
		s := clampSpan(n.Span, lo, hi)
		if s.Start < prevEnd {
			s.Start = prevEnd
		}
		if s.End <= s.Start {
			continue
		}
		n.Span = s
		prevEnd = s.End
		kept = append(kept, n)
	}
	return kept
}

func clampSpan(s domain.Span, lo, hi int) domain.Span {
	if s.Start < lo {
		s.Start = lo
	}
	if s.End > hi {
		s.End = hi
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	return s
}

func overallConfidence(roots []*domain.StructureNode) float64 {
	sum, n := 0.0, 0
	for _, r := range roots {
		r.Walk(func(node *domain.StructureNode, _ int) {
			sum += node.Confidence
			n++
		})
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func dominantMethod(roots []*domain.StructureNode) domain.InferenceMethod {
	counts := map[domain.InferenceMethod]int{}
	for _, r := range roots {
		r.Walk(func(node *domain.StructureNode, _ int) {
			counts[node.Method]++
		})
	}
	best, bestN := domain.InferenceHeuristic, 0
	for _, m := range []domain.InferenceMethod{domain.InferenceExplicit, domain.InferenceHeuristic, domain.InferenceSemantic} {
		if counts[m] > bestN {
			best, bestN = m, counts[m]
		}
	}
	return best
}
