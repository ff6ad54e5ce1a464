package tutoring

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

func TestSpokenTextExpandsSymbols(t *testing.T) {
	table := defaultSymbolTable()
	got := spokenText("Water boils at 100 °C, e.g. at sea level. Energy = mass x speed.", table)
	if strings.Contains(got, "°C") || strings.Contains(got, "e.g.") || strings.Contains(got, "=") {
		t.Fatalf("unexpanded written forms remain: %q", got)
	}
	if !strings.Contains(got, "degrees Celsius") || !strings.Contains(got, "for example") || !strings.Contains(got, "equals") {
		t.Fatalf("expected spoken expansions, got %q", got)
	}
}

func TestSpokenTextPauses(t *testing.T) {
	got := spokenText("First paragraph ends here.\n\nOsmosis is defined as diffusion of water.", defaultSymbolTable())
	if strings.Count(got, PauseMarker) < 2 {
		t.Fatalf("expected pauses at paragraph break and before the definition, got %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Fatalf("spoken text should be a single line, got %q", got)
	}
}

func TestSpokenTextParentheticals(t *testing.T) {
	got := spokenText("The chloroplast (a plant organelle) captures light.", defaultSymbolTable())
	if strings.ContainsAny(got, "()") {
		t.Fatalf("parentheses survive: %q", got)
	}
	if !strings.Contains(got, ", a plant organelle,") {
		t.Fatalf("parenthetical should become a comma aside: %q", got)
	}
}

func TestBuildGlossary(t *testing.T) {
	segs := []domain.Segment{
		{ID: "s1", Type: domain.SegmentDefinition, Text: "Osmosis is defined as the diffusion of water across a membrane."},
		{ID: "s2", Type: domain.SegmentDefinition, Text: "Diffusion refers to the movement of particles from high to low concentration."},
		{ID: "s3", Type: domain.SegmentNarrative, Text: "Cells rely on both processes constantly."},
	}
	entries := buildGlossary(segs)
	if len(entries) != 2 {
		t.Fatalf("got %d glossary entries, want 2", len(entries))
	}
	if entries[0].Term != "Osmosis" {
		t.Fatalf("first term = %q, want Osmosis", entries[0].Term)
	}
	if entries[0].Pronunciation == "" {
		t.Errorf("expected a pronunciation hint for %q", entries[0].Term)
	}
	// Osmosis' definition mentions diffusion, so the entries should link.
	if len(entries[0].RelatedTerms) == 0 || entries[0].RelatedTerms[0] != "Diffusion" {
		t.Errorf("expected Osmosis to relate to Diffusion, got %v", entries[0].RelatedTerms)
	}
	if entries[0].SegmentIDs[0] != "s1" {
		t.Errorf("glossary entry should record its source segment")
	}
}

func TestGlossaryDedupesTerms(t *testing.T) {
	segs := []domain.Segment{
		{ID: "s1", Type: domain.SegmentDefinition, Text: "Entropy is a measure of disorder."},
		{ID: "s2", Type: domain.SegmentDefinition, Text: "Entropy is a measure of disorder in a closed thermodynamic system."},
	}
	entries := buildGlossary(segs)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 deduplicated", len(entries))
	}
	if !strings.Contains(entries[0].Definition, "thermodynamic") {
		t.Errorf("dedupe should keep the fuller definition, got %q", entries[0].Definition)
	}
	if len(entries[0].SegmentIDs) != 2 {
		t.Errorf("both source segments should be recorded, got %v", entries[0].SegmentIDs)
	}
}

func TestEnhanceSurvivesDeadModel(t *testing.T) {
	segs := []domain.Segment{
		{ID: "s1", Type: domain.SegmentDefinition, Text: "Osmosis is defined as the diffusion of water across a membrane.", KeyConcepts: []string{"osmosis"}},
	}
	out, err := Enhance(context.Background(), Deps{Log: testLogger(t), AI: failingAI{}}, Input{
		Segments:       segs,
		Spoken:         true,
		Glossary:       true,
		Alternatives:   true,
		Misconceptions: true,
	})
	if err != nil {
		t.Fatalf("Enhance must not fail on provider errors: %v", err)
	}
	if len(out.Spoken) != 1 || len(out.Glossary) != 1 {
		t.Fatalf("local sub-stages should still run: %+v", out)
	}
	if len(out.Alternatives) != 0 || len(out.Misconceptions) != 0 {
		t.Fatalf("model sub-stages should be empty on failure")
	}
}
