package objectives

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
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
	objectives []map[string]any
	err        error
}

func (s *scriptedAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", s.err
}
func (s *scriptedAI) GenerateJSON(ctx context.Context, system, user, name string, schema map[string]any) (map[string]any, error) {
	if s.err != nil {
		return nil, s.err
	}
	items := make([]any, len(s.objectives))
	for i, o := range s.objectives {
		items[i] = o
	}
	return map[string]any{"objectives": items}, nil
}
func (s *scriptedAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, s.err
}

func TestClassifyBloom(t *testing.T) {
	cases := []struct {
		statement string
		want      domain.BloomLevel
		verb      string
	}{
		{"List the phases of mitosis", domain.BloomRemember, "list"},
		{"Explain how enzymes lower activation energy", domain.BloomUnderstand, "explain"},
		{"Solve linear equations with one unknown", domain.BloomApply, "solve"},
		{"Compare aerobic and anaerobic respiration", domain.BloomAnalyze, "compare"},
		{"Justify the choice of sorting algorithm", domain.BloomEvaluate, "justify"},
		{"Design an experiment to test the hypothesis", domain.BloomCreate, "design"},
		{"Analyze and list the failure modes", domain.BloomAnalyze, "analyze"},
		{"Become familiar with the toolchain", domain.BloomUnderstand, ""},
	}
	for _, c := range cases {
		got, verb := classifyBloom(c.statement)
		if got != c.want || verb != c.verb {
			t.Errorf("classifyBloom(%q) = (%s, %q), want (%s, %q)", c.statement, got, verb, c.want, c.verb)
		}
	}
}

func TestExtractExplicitStatements(t *testing.T) {
	text := "Welcome to the unit. By the end of this module, students will be able to explain the water cycle in their own words. " +
		"You will learn to identify the three states of water. The rest of the text is ordinary prose."
	objs, err := Extract(context.Background(), Deps{Log: testLogger(t)}, Input{
		Text:     text,
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d objectives, want 2 explicit", len(objs))
	}
	for _, o := range objs {
		if o.Provenance != domain.ObjectiveExtracted {
			t.Errorf("objective %q provenance = %s, want extracted", o.Text, o.Provenance)
		}
		if o.Confidence != 0.9 {
			t.Errorf("explicit objective confidence = %.2f, want 0.9", o.Confidence)
		}
	}
	if objs[0].Bloom != domain.BloomUnderstand {
		t.Errorf("first objective bloom = %s, want understand", objs[0].Bloom)
	}
	if objs[1].Bloom != domain.BloomRemember {
		t.Errorf("second objective bloom = %s, want remember", objs[1].Bloom)
	}
}

func TestExtractSurvivesDeadModel(t *testing.T) {
	text := "By the end of this lesson, you will be able to describe cellular respiration accurately."
	objs, err := Extract(context.Background(), Deps{Log: testLogger(t), AI: &scriptedAI{err: fmt.Errorf("provider down")}}, Input{
		Text:     text,
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("a failing model must not fail the stage: %v", err)
	}
	if len(objs) != 1 {
		t.Fatalf("got %d objectives, want the 1 extracted one", len(objs))
	}
}

func TestExtractSynthesizesPerLeaf(t *testing.T) {
	node := &domain.StructureNode{ID: "leaf", Title: "Photosynthesis", Type: domain.NodeModule, Span: domain.Span{Start: 0, End: 100}}
	ai := &scriptedAI{objectives: []map[string]any{
		{"statement": "Describe the light-dependent reactions", "bloom": "understand", "confidence": 0.8},
		{"statement": "Compute the net ATP yield", "bloom": "nonsense-level", "confidence": 0.7},
	}}
	objs, err := Extract(context.Background(), Deps{Log: testLogger(t), AI: ai}, Input{
		Text:     "Photosynthesis converts light energy into chemical energy stored in glucose molecules.",
		Roots:    []*domain.StructureNode{node},
		Segments: []domain.Segment{{ID: "s1", NodeID: "leaf", Text: "Photosynthesis converts light."}},
		Tunables: domain.DefaultTunables(),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("got %d objectives, want 2 generated", len(objs))
	}
	if objs[0].NodeID != "leaf" || objs[0].Provenance != domain.ObjectiveGenerated {
		t.Fatalf("unexpected first objective: %+v", objs[0])
	}
	// The invalid bloom label falls back to verb classification.
	if objs[1].Bloom != domain.BloomApply || objs[1].SourceVerb != "compute" {
		t.Fatalf("bloom fallback wrong: %s / %q", objs[1].Bloom, objs[1].SourceVerb)
	}
}

func TestDedupeKeepsHigherConfidence(t *testing.T) {
	objs := []domain.LearningObjective{
		{ID: "a", Text: "Explain the water cycle in your own words", Confidence: 0.5, Provenance: domain.ObjectiveGenerated},
		{ID: "b", Text: "Explain the water cycle in your own words", Confidence: 0.9, Provenance: domain.ObjectiveExtracted},
		{ID: "c", Text: "Design a terrarium experiment", Confidence: 0.6, Provenance: domain.ObjectiveGenerated},
	}
	out := dedupe(objs, 0.85)
	if len(out) != 2 {
		t.Fatalf("got %d objectives after dedupe, want 2", len(out))
	}
	if out[0].ID != "b" {
		t.Fatalf("dedupe kept %q, want the higher-confidence duplicate", out[0].ID)
	}
}

func TestInferFromDefinitionSegments(t *testing.T) {
	segs := []domain.Segment{
		{ID: "s1", NodeID: "n1", Type: domain.SegmentDefinition, KeyConcepts: []string{"osmosis"}},
		{ID: "s2", NodeID: "n1", Type: domain.SegmentNarrative, KeyConcepts: []string{"water"}},
	}
	objs := inferFromSegments(segs)
	if len(objs) != 1 {
		t.Fatalf("got %d inferred objectives, want 1", len(objs))
	}
	if objs[0].Bloom != domain.BloomRemember || objs[0].SegmentIDs[0] != "s1" {
		t.Fatalf("unexpected inferred objective: %+v", objs[0])
	}
}

func TestAlignAttachesClosestStandards(t *testing.T) {
	standards := []Standard{
		{Framework: "NGSS", Code: "HS-LS1-5", Text: "Use a model to illustrate how photosynthesis transforms light energy into stored chemical energy"},
		{Framework: "NGSS", Code: "HS-PS1-1", Text: "Use the periodic table as a model to predict the relative properties of elements"},
	}
	objs := []domain.LearningObjective{
		{ID: "a", Text: "Use a model to illustrate how photosynthesis transforms light energy into chemical energy"},
		{ID: "b", Text: "Justify the choice of sorting algorithm for large inputs"},
	}
	align(objs, standards, 0.4)
	if len(objs[0].Alignments) != 1 {
		t.Fatalf("got %d alignments, want 1", len(objs[0].Alignments))
	}
	got := objs[0].Alignments[0]
	if got.Code != "HS-LS1-5" || got.Score < 0.4 {
		t.Fatalf("unexpected alignment: %+v", got)
	}
	if len(objs[1].Alignments) != 0 {
		t.Fatalf("unrelated objective aligned: %+v", objs[1].Alignments)
	}
}

func TestLoadStandardsDropsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "standards.yaml")
	raw := []byte(`standards:
  - framework: NGSS
    code: HS-LS1-5
    text: Use a model to illustrate how photosynthesis transforms light energy
  - framework: NGSS
    code: ""
    text: entry without a code
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	standards, err := LoadStandards(path)
	if err != nil {
		t.Fatalf("load standards: %v", err)
	}
	if len(standards) != 1 || standards[0].Code != "HS-LS1-5" {
		t.Fatalf("unexpected standards: %+v", standards)
	}
}
