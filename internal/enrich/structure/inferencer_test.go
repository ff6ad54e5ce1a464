package structure

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

type failingAI struct{}

func (failingAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", fmt.Errorf("provider down")
}
func (failingAI) GenerateJSON(ctx context.Context, system, user, name string, schema map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("provider down")
}
func (failingAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, fmt.Errorf("provider down")
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func markdownDoc() string {
	var b strings.Builder
	b.WriteString("# Algorithms\n\n")
	b.WriteString("Opening remarks about the course and what it covers in depth.\n\n")
	b.WriteString("## Sorting\n\n")
	b.WriteString(strings.Repeat("Sorting arranges elements into order. ", 20))
	b.WriteString("\n\n## Searching\n\n")
	b.WriteString(strings.Repeat("Searching locates an element in a collection. ", 20))
	b.WriteString("\n\n# Data Structures\n\n")
	b.WriteString(strings.Repeat("Data structures store data for efficient access. ", 20))
	b.WriteString("\n")
	return b.String()
}

func TestInferExplicitHeadings(t *testing.T) {
	text := markdownDoc()
	res, err := Infer(context.Background(), Deps{Log: testLogger(t)}, Input{
		Text:     text,
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if res.Method != domain.InferenceExplicit {
		t.Fatalf("method = %s, want explicit", res.Method)
	}
	if len(res.Roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(res.Roots))
	}
	if res.Roots[0].Title != "Algorithms" || res.Roots[1].Title != "Data Structures" {
		t.Fatalf("root titles = %q, %q", res.Roots[0].Title, res.Roots[1].Title)
	}
	if got := len(res.Roots[0].Children); got != 2 {
		t.Fatalf("Algorithms children = %d, want 2", got)
	}
	if res.Roots[0].Children[0].Type != domain.NodeTopic {
		t.Fatalf("child type = %s, want topic", res.Roots[0].Children[0].Type)
	}
	if res.Confidence < 0.8 {
		t.Fatalf("confidence = %.2f, want >= 0.8 for fully covered explicit headings", res.Confidence)
	}
}

func TestInferSpanInvariants(t *testing.T) {
	text := markdownDoc()
	res, err := Infer(context.Background(), Deps{Log: testLogger(t)}, Input{
		Text:     text,
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	for _, root := range res.Roots {
		root.Walk(func(n *domain.StructureNode, _ int) {
			if n.Span.Start < 0 || n.Span.End > len(text) || n.Span.Len() <= 0 {
				t.Errorf("node %q has invalid span %+v", n.Title, n.Span)
			}
			prevEnd := n.Span.Start
			for _, c := range n.Children {
				if !n.Span.Contains(c.Span) {
					t.Errorf("child %q span %+v escapes parent %q span %+v", c.Title, c.Span, n.Title, n.Span)
				}
				if c.Span.Start < prevEnd {
					t.Errorf("sibling %q overlaps its predecessor", c.Title)
				}
				prevEnd = c.Span.End
			}
		})
	}
}

func TestInferFlatFallback(t *testing.T) {
	// No markers anywhere and a dead model: the stage must still produce a
	// single flat module with a warning instead of failing.
	text := strings.Repeat("plain unstructured prose with no headings at all and lowercase starts. ", 40)
	res, err := Infer(context.Background(), Deps{Log: testLogger(t), AI: failingAI{}}, Input{
		Text:     text,
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(res.Roots) != 1 {
		t.Fatalf("got %d roots, want 1 flat module", len(res.Roots))
	}
	root := res.Roots[0]
	if root.Type != domain.NodeModule || root.Span.Start != 0 || root.Span.End != len(text) {
		t.Fatalf("flat module should cover the whole text, got %+v", root.Span)
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a warning about missing structure")
	}
}

func TestInferEmptyText(t *testing.T) {
	if _, err := Infer(context.Background(), Deps{Log: testLogger(t)}, Input{Text: "   "}); err == nil {
		t.Fatalf("expected error for empty text")
	}
}

func TestMergeProposalsOverlap(t *testing.T) {
	a := &domain.StructureNode{ID: "a", Title: "Intro", Level: 0, Span: domain.Span{Start: 0, End: 100}, Confidence: 0.6, Method: domain.InferenceHeuristic}
	b := &domain.StructureNode{ID: "b", Title: "Introduction", Level: 0, Span: domain.Span{Start: 10, End: 95}, Confidence: 0.9, Method: domain.InferenceExplicit}
	out := mergeProposals([]*domain.StructureNode{a}, []*domain.StructureNode{b}, 0.5)
	if len(out) != 1 {
		t.Fatalf("got %d candidates, want 1 merged", len(out))
	}
	if out[0].Title != "Introduction" || out[0].Confidence != 0.9 {
		t.Fatalf("higher-confidence candidate should win: %+v", out[0])
	}

	c := &domain.StructureNode{ID: "c", Title: "Summary", Level: 0, Span: domain.Span{Start: 200, End: 300}, Confidence: 0.7}
	out = mergeProposals(out, []*domain.StructureNode{c}, 0.5)
	if len(out) != 2 {
		t.Fatalf("disjoint candidate should append, got %d", len(out))
	}
}

func TestTemplateApplyRelabels(t *testing.T) {
	tpl := &DomainTemplate{
		Name: "math",
		Sections: []TemplateSection{
			{Label: "Worked Examples", Order: 1, Patterns: []string{"example"}},
			{Label: "Theory", Order: 0, Patterns: []string{"theory", "background"}},
		},
	}
	nodes := []*domain.StructureNode{
		{ID: "1", Title: "Examples and exercises", Level: 0, Span: domain.Span{Start: 0, End: 50}},
		{ID: "2", Title: "Background", Level: 0, Span: domain.Span{Start: 50, End: 100}},
		{ID: "3", Title: "Something else", Level: 0, Span: domain.Span{Start: 100, End: 150}},
	}
	out := tpl.Apply(nodes)
	if out[0].Title != "Theory" || out[1].Title != "Worked Examples" {
		t.Fatalf("template ordering/relabel wrong: %q, %q", out[0].Title, out[1].Title)
	}
	if len(out) != 3 {
		t.Fatalf("template must never drop sections, got %d", len(out))
	}
}
