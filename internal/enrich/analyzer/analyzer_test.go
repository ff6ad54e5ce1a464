package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

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

type scriptedClassifier struct {
	result map[string]any
	err    error
}

func (s *scriptedClassifier) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", s.err
}
func (s *scriptedClassifier) GenerateJSON(ctx context.Context, system, user, name string, schema map[string]any) (map[string]any, error) {
	return s.result, s.err
}
func (s *scriptedClassifier) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, s.err
}

const biologySample = `# The Cell

Every living organism is built from at least one cell. The cell membrane
separates the interior from the environment, and each protein embedded in
that membrane performs a transport or signaling role.

Key structures:
- membrane
- enzyme complexes
- gene storage in the nucleus

A gene encodes the sequence of a protein. When the enzyme binds its
substrate, the reaction proceeds at a far higher rate than it would in
free solution.`

func TestAnalyzeProfilesText(t *testing.T) {
	out, err := Analyze(context.Background(), Deps{Log: testLogger(t)}, Input{Text: biologySample, DefaultTarget: 150})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.WordCount == 0 || out.SentenceCount == 0 || out.ParagraphCount < 3 {
		t.Fatalf("counts not populated: %+v", out)
	}
	if !out.HasHeadings || !out.HasLists {
		t.Fatalf("presence flags missed heading/list: %+v", out)
	}
	if out.Domain != "biology" {
		t.Fatalf("domain = %q, want biology", out.Domain)
	}
	if out.DomainSource != "rules" || out.Language != "en" {
		t.Fatalf("nil model should classify by rules/en, got %q/%q", out.DomainSource, out.Language)
	}
	if out.GradeLevel <= 0 || out.ReadingEase <= 0 || out.ReadingEase > 100 {
		t.Fatalf("readability out of range: grade=%v ease=%v", out.GradeLevel, out.ReadingEase)
	}
	if out.RecommendedChunk <= 0 {
		t.Fatalf("no chunk recommendation: %+v", out)
	}
}

func TestAnalyzeEmptyText(t *testing.T) {
	if _, err := Analyze(context.Background(), Deps{Log: testLogger(t)}, Input{Text: "   \n"}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestAnalyzeUsesModelClassification(t *testing.T) {
	ai := &scriptedClassifier{result: map[string]any{
		"domain": "Marine Biology", "language": "en", "formality": "formal",
	}}
	out, err := Analyze(context.Background(), Deps{Log: testLogger(t), AI: ai}, Input{Text: biologySample})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if out.DomainSource != "model" || out.Domain != "marine_biology" {
		t.Fatalf("model classification not applied: source=%q domain=%q", out.DomainSource, out.Domain)
	}
}

func TestAnalyzeClassifierErrorFallsBackToRules(t *testing.T) {
	ai := &scriptedClassifier{err: errors.New("model offline")}
	out, err := Analyze(context.Background(), Deps{Log: testLogger(t), AI: ai}, Input{Text: biologySample})
	if err != nil {
		t.Fatalf("classifier failure must not fail the stage: %v", err)
	}
	if out.DomainSource != "rules" || out.Domain != "biology" {
		t.Fatalf("fallback not applied: source=%q domain=%q", out.DomainSource, out.Domain)
	}
}

func TestClassifyDomainByRulesThreshold(t *testing.T) {
	if got := classifyDomainByRules("the weather was mild and the road was long"); got != "general" {
		t.Fatalf("sparse keywords classified as %q, want general", got)
	}
}

func TestRecommendChunkSize(t *testing.T) {
	cases := []struct {
		grade float64
		want  int
	}{
		{16, 100},
		{11, 125},
		{8, 150},
		{4, 200},
	}
	for _, c := range cases {
		if got := recommendChunkSize(c.grade, 150); got != c.want {
			t.Errorf("grade %.0f: chunk = %d, want %d", c.grade, got, c.want)
		}
	}
	if got := recommendChunkSize(8, 0); got != 150 {
		t.Errorf("zero target should default to 150, got %d", got)
	}
}

func TestPresenceFlagsCodeAndEquations(t *testing.T) {
	text := "Consider the update rule x = x + 1 applied in a loop.\n\n```\nfunc step(x int) int { return x + 1 }\n```"
	_, _, code, equations, _ := presenceFlags(text)
	if !code || !equations {
		t.Fatalf("code=%v equations=%v, want both true", code, equations)
	}
	if strings.Contains(text, "citation") {
		t.Fatal("sample must not trip the citation regex")
	}
}
