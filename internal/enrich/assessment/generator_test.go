package assessment

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

type scriptedAI struct {
	items []map[string]any
	err   error
}

func (s *scriptedAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", s.err
}
func (s *scriptedAI) GenerateJSON(ctx context.Context, system, user, name string, schema map[string]any) (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	raw := make([]any, len(s.items))
	for i, it := range s.items {
		raw[i] = it
	}
	return map[string]any{"items": raw}, nil
}
func (s *scriptedAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, s.err
}

func photosynthesisSegment() domain.Segment {
	text := "Photosynthesis converts light energy into chemical energy in the chloroplast. " +
		"The process requires sunlight, water, and carbon dioxide to proceed. " +
		"Plants store the resulting glucose for later use during cellular respiration."
	return domain.Segment{
		ID:        "seg1",
		NodeID:    "node1",
		Text:      text,
		Type:      domain.SegmentNarrative,
		WordCount: len(strings.Fields(text)),
	}
}

func TestTemplateQuestionsFromRoles(t *testing.T) {
	items := templateQuestions(photosynthesisSegment())
	if len(items) == 0 {
		t.Fatalf("expected template items from role-bearing sentences")
	}
	for _, it := range items {
		if it.Type != domain.AssessmentFreeText {
			t.Errorf("template item type = %s, want free_text", it.Type)
		}
		if it.ExpectedAnswer == "" {
			t.Errorf("template item %q has no expected answer", it.Prompt)
		}
	}
}

func TestGenerateValidatesAnswerability(t *testing.T) {
	seg := photosynthesisSegment()
	ai := &scriptedAI{items: []map[string]any{
		{
			"type": "single_choice", "prompt": "Where does photosynthesis convert light energy?",
			"choices": []any{
				map[string]any{"text": "In the chloroplast", "correct": true},
				map[string]any{"text": "In the nucleus", "correct": false},
			},
			"bloom": "remember", "difficulty": "intro",
		},
		{
			// Nothing in the segment supports this; it must be discarded.
			"type": "free_text", "prompt": "Describe the Krebs cycle intermediates",
			"expected_answer": "citrate isocitrate ketoglutarate succinate fumarate malate oxaloacetate",
			"bloom":           "understand", "difficulty": "core",
		},
	}}
	out, err := Generate(context.Background(), Deps{Log: testLogger(t), AI: ai}, Input{
		Segments: []domain.Segment{seg},
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, it := range out {
		if strings.Contains(it.Prompt, "Krebs") && !it.Flagged {
			t.Errorf("unsupported item survived validation unflagged: %q (answerability %.2f)", it.Prompt, it.Answerability)
		}
		if it.SegmentID != "seg1" {
			t.Errorf("item not linked to source segment: %+v", it)
		}
		if it.ID == "" {
			t.Errorf("item missing id")
		}
	}
}

func TestGenerateSurvivesDeadModel(t *testing.T) {
	out, err := Generate(context.Background(), Deps{Log: testLogger(t), AI: &scriptedAI{err: fmt.Errorf("provider down")}}, Input{
		Segments: []domain.Segment{photosynthesisSegment()},
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("a failing model must not fail the stage: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("template generation should still produce items")
	}
}

func TestGenerateSkipsTransitions(t *testing.T) {
	seg := photosynthesisSegment()
	seg.Type = domain.SegmentTransition
	out, err := Generate(context.Background(), Deps{Log: testLogger(t)}, Input{
		Segments: []domain.Segment{seg},
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("transition segments should produce no items, got %d", len(out))
	}
}

func TestGenerateSkipsSummaries(t *testing.T) {
	seg := photosynthesisSegment()
	seg.Type = domain.SegmentSummary
	out, err := Generate(context.Background(), Deps{Log: testLogger(t)}, Input{
		Segments: []domain.Segment{seg},
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("summary segments should produce no items, got %d", len(out))
	}
}

func TestGenerateCarriesSegmentConcepts(t *testing.T) {
	seg := photosynthesisSegment()
	seg.KeyConcepts = []string{"photosynthesis", "chloroplast"}
	out, err := Generate(context.Background(), Deps{Log: testLogger(t)}, Input{
		Segments: []domain.Segment{seg},
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected template items")
	}
	for _, it := range out {
		if len(it.ConceptIDs) != 2 || it.ConceptIDs[0] != "photosynthesis" {
			t.Fatalf("item concepts = %v, want the segment's key concepts", it.ConceptIDs)
		}
	}
}

func TestValidItem(t *testing.T) {
	good := domain.GeneratedAssessment{
		Type: domain.AssessmentSingleChoice, Prompt: "Q?", Bloom: domain.BloomRemember,
		Choices: []domain.AssessmentChoice{{Text: "a", Correct: true}, {Text: "b"}},
	}
	if !validItem(&good) {
		t.Errorf("well-formed single choice rejected")
	}
	good.Choices[1].Correct = true
	if validItem(&good) {
		t.Errorf("single choice with two correct answers accepted")
	}
	ft := domain.GeneratedAssessment{Type: domain.AssessmentFreeText, Prompt: "Q?", Bloom: domain.BloomApply}
	if validItem(&ft) {
		t.Errorf("free text without expected answer accepted")
	}
}

func TestBalanceSpreadsBuckets(t *testing.T) {
	mk := func(typ domain.AssessmentType, bloom domain.BloomLevel, ans float64) domain.GeneratedAssessment {
		return domain.GeneratedAssessment{Type: typ, Bloom: bloom, Answerability: ans}
	}
	items := []domain.GeneratedAssessment{
		mk(domain.AssessmentFreeText, domain.BloomRemember, 0.9),
		mk(domain.AssessmentFreeText, domain.BloomRemember, 0.85),
		mk(domain.AssessmentFreeText, domain.BloomRemember, 0.8),
		mk(domain.AssessmentSingleChoice, domain.BloomApply, 0.7),
		mk(domain.AssessmentFreeText, domain.BloomAnalyze, 0.6),
	}
	out := balance(items, 3)
	if len(out) != 3 {
		t.Fatalf("got %d items, want 3", len(out))
	}
	kinds := map[domain.BloomLevel]bool{}
	for _, it := range out {
		kinds[it.Bloom] = true
	}
	if len(kinds) < 3 {
		t.Fatalf("balance collapsed to %d bloom levels, want one item per bucket", len(kinds))
	}
}
