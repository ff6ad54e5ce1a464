// Package tutoring layers conversational assets over enriched content:
// speech-ready segment text, alternative explanations, a glossary, and
// anticipated misconceptions. Everything except the alternatives and
// misconceptions is computed locally, so the stage degrades gracefully when
// the provider is unreachable.
package tutoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

type Deps struct {
	Log     *logger.Logger
	AI      textgen.Client
	Symbols *SymbolTable
}

type Input struct {
	Segments []domain.Segment
	Glossary bool
	Spoken   bool
	// Alternatives and Misconceptions require a working model.
	Alternatives   bool
	Misconceptions bool
	Audience       string
}

// Enhance runs the enabled sub-stages. Provider failures fall back to the
// locally computable subset and are reported through the logger only.
func Enhance(ctx context.Context, deps Deps, in Input) (*domain.TutoringEnhancements, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("tutoring: missing logger")
	}
	log := deps.Log.With("stage", "tutoring")

	table := defaultSymbolTable()
	if deps.Symbols != nil {
		table = *deps.Symbols
	}

	out := &domain.TutoringEnhancements{}

	if in.Spoken {
		for _, seg := range in.Segments {
			out.Spoken = append(out.Spoken, domain.SpokenVariant{
				SegmentID: seg.ID,
				Text:      spokenText(seg.Text, table),
			})
		}
	}

	if in.Glossary {
		out.Glossary = buildGlossary(in.Segments)
	}

	if in.Alternatives && deps.AI != nil {
		alts, err := generateAlternatives(ctx, deps.AI, in.Segments, in.Audience)
		if err != nil {
			log.Warn("alternative explanations unavailable", "error", err)
		} else {
			out.Alternatives = alts
		}
	}

	if in.Misconceptions && deps.AI != nil {
		mis, err := generateMisconceptions(ctx, deps.AI, in.Segments, in.Audience)
		if err != nil {
			log.Warn("misconception generation unavailable", "error", err)
		} else {
			out.Misconceptions = mis
		}
	}

	return out, nil
}

var alternativesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"alternatives": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"style": map[string]any{"type": "string", "enum": []string{"simpler", "technical", "analogy"}},
					"text":  map[string]any{"type": "string"},
				},
				"required":             []string{"style", "text"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"alternatives"},
	"additionalProperties": false,
}

// generateAlternatives rephrases definition and example segments in three
// registers. Only segments worth re-explaining get the model call.
func generateAlternatives(ctx context.Context, ai textgen.Client, segments []domain.Segment, audience string) ([]domain.AlternativeExplanation, error) {
	var out []domain.AlternativeExplanation
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if seg.Type != domain.SegmentDefinition && seg.Type != domain.SegmentExample {
			continue
		}
		system := "You rewrite educational passages in alternative registers without changing their factual content. Answer with the requested JSON only."
		user := fmt.Sprintf("Audience: %s\n\nRewrite this passage three ways (simpler, technical, analogy):\n\n%s", audience, seg.Text)
		res, err := ai.GenerateJSON(ctx, system, user, "alternative_explanations", alternativesSchema)
		if err != nil {
			return nil, err
		}
		raw, _ := res["alternatives"].([]any)
		for _, ra := range raw {
			m, ok := ra.(map[string]any)
			if !ok {
				continue
			}
			style, _ := m["style"].(string)
			text, _ := m["text"].(string)
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			switch style {
			case "simpler", "technical", "analogy":
			default:
				continue
			}
			out = append(out, domain.AlternativeExplanation{
				SegmentID: seg.ID,
				Style:     style,
				Text:      text,
			})
		}
	}
	return out, nil
}

var misconceptionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"misconceptions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"concept":         map[string]any{"type": "string"},
					"description":     map[string]any{"type": "string"},
					"trigger_phrases": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"remediation":     map[string]any{"type": "string"},
				},
				"required":             []string{"concept", "description", "remediation"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"misconceptions"},
	"additionalProperties": false,
}

func generateMisconceptions(ctx context.Context, ai textgen.Client, segments []domain.Segment, audience string) ([]domain.Misconception, error) {
	// One call over the distinct key concepts keeps token use flat regardless
	// of segment count.
	seen := map[string]struct{}{}
	var concepts []string
	for _, seg := range segments {
		for _, c := range seg.KeyConcepts {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			concepts = append(concepts, c)
		}
	}
	if len(concepts) == 0 {
		return nil, nil
	}
	if len(concepts) > 25 {
		concepts = concepts[:25]
	}

	system := "You list common student misconceptions for the given concepts, each with trigger phrases a tutor can watch for and a one-sentence remediation. Answer with the requested JSON only."
	user := fmt.Sprintf("Audience: %s\nConcepts: %s", audience, strings.Join(concepts, ", "))
	res, err := ai.GenerateJSON(ctx, system, user, "misconceptions", misconceptionsSchema)
	if err != nil {
		return nil, err
	}
	raw, _ := res["misconceptions"].([]any)
	var out []domain.Misconception
	for _, rm := range raw {
		m, ok := rm.(map[string]any)
		if !ok {
			continue
		}
		concept, _ := m["concept"].(string)
		desc, _ := m["description"].(string)
		rem, _ := m["remediation"].(string)
		if concept == "" || desc == "" || rem == "" {
			continue
		}
		mc := domain.Misconception{ConceptID: concept, Description: desc, Remediation: rem}
		if tps, ok := m["trigger_phrases"].([]any); ok {
			for _, tp := range tps {
				if s, ok := tp.(string); ok && s != "" {
					mc.TriggerPhrases = append(mc.TriggerPhrases, s)
				}
			}
		}
		out = append(out, mc)
	}
	return out, nil
}
