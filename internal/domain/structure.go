package domain

// Span is a half-open [Start,End) byte range into the source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether other lies fully inside s.
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Overlap returns the number of bytes shared by s and other.
func (s Span) Overlap(other Span) int {
	lo := s.Start
	if other.Start > lo {
		lo = other.Start
	}
	hi := s.End
	if other.End < hi {
		hi = other.End
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

type NodeType string

const (
	NodeModule   NodeType = "module"
	NodeTopic    NodeType = "topic"
	NodeSubtopic NodeType = "subtopic"
)

type InferenceMethod string

const (
	InferenceExplicit  InferenceMethod = "explicit"
	InferenceHeuristic InferenceMethod = "heuristic"
	InferenceSemantic  InferenceMethod = "semantic"
)

// StructureNode is one node in the proposed content hierarchy. The tree is
// ownership-exclusive: a node's children belong to it alone, child spans are
// pairwise disjoint and contained in the parent span.
type StructureNode struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Type       NodeType         `json:"type"`
	Level      int              `json:"level"`
	Span       Span             `json:"span"`
	Confidence float64          `json:"confidence"`
	Method     InferenceMethod  `json:"method"`
	Rationale  []string         `json:"rationale,omitempty"`
	Children   []*StructureNode `json:"children,omitempty"`
}

// Walk visits n and every descendant in depth-first order.
func (n *StructureNode) Walk(fn func(node *StructureNode, depth int)) {
	if n == nil {
		return
	}
	var rec func(node *StructureNode, depth int)
	rec = func(node *StructureNode, depth int) {
		fn(node, depth)
		for _, c := range node.Children {
			rec(c, depth+1)
		}
	}
	rec(n, 0)
}

// StructureResult is the inferencer stage output.
type StructureResult struct {
	Roots      []*StructureNode `json:"roots"`
	Confidence float64          `json:"confidence"`
	Method     InferenceMethod  `json:"method"`
	Warnings   []string         `json:"warnings,omitempty"`
}
