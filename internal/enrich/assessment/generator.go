// Package assessment turns segments and objectives into quiz items. Model
// generation carries the load; template generation from shallow semantic
// roles keeps the stage productive when no provider is reachable. Every item
// passes an answerability check before acceptance.
package assessment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

type Deps struct {
	Log *logger.Logger
	AI  textgen.Client
}

type Input struct {
	Segments   []domain.Segment
	Objectives []domain.LearningObjective
	Tunables   domain.Tunables
	Audience   string
	// PerSegment caps items kept per segment after validation and balancing.
	PerSegment int
}

var itemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":               map[string]any{"type": "string", "enum": []string{"single_choice", "multi_choice", "free_text"}},
					"prompt":             map[string]any{"type": "string"},
					"choices":            map[string]any{"type": "array", "items": map[string]any{"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}, "correct": map[string]any{"type": "boolean"}}, "required": []string{"text", "correct"}, "additionalProperties": false}},
					"expected_answer":    map[string]any{"type": "string"},
					"bloom":              map[string]any{"type": "string"},
					"difficulty":         map[string]any{"type": "string", "enum": []string{"intro", "core", "stretch"}},
					"feedback_correct":   map[string]any{"type": "string"},
					"feedback_incorrect": map[string]any{"type": "string"},
					"hints":              map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required":             []string{"type", "prompt", "bloom", "difficulty"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"items"},
	"additionalProperties": false,
}

// Generate produces validated, balanced assessments. Per-segment failures
// are logged and skipped; the stage fails only on bad arguments.
func Generate(ctx context.Context, deps Deps, in Input) ([]domain.GeneratedAssessment, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("assessment: missing logger")
	}
	log := deps.Log.With("stage", "assessment")

	floor := in.Tunables.AnswerabilityFloor
	if floor <= 0 {
		floor = 0.5
	}
	perSegment := in.PerSegment
	if perSegment <= 0 {
		perSegment = 4
	}

	objByNode := map[string][]domain.LearningObjective{}
	for _, o := range in.Objectives {
		objByNode[o.NodeID] = append(objByNode[o.NodeID], o)
	}

	var out []domain.GeneratedAssessment
	for _, seg := range in.Segments {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		// Transitions and summaries restate material covered elsewhere;
		// quizzing them produces redundant or unanswerable items.
		if seg.Type == domain.SegmentTransition || seg.Type == domain.SegmentSummary || seg.WordCount < 30 {
			continue
		}
		items := templateQuestions(seg)

		if deps.AI != nil {
			generated, err := generateWithModel(ctx, deps.AI, seg, objByNode[seg.NodeID], in.Audience)
			if err != nil {
				log.Warn("model generation failed for segment, keeping template items",
					"segment_id", seg.ID, "error", err)
			} else {
				items = append(items, generated...)
			}
		}

		kept := items[:0]
		for _, it := range items {
			it.ID = uuid.NewString()
			it.SegmentID = seg.ID
			it.ConceptIDs = append([]string(nil), seg.KeyConcepts...)
			it.Answerability = answerability(it, seg)
			switch {
			case it.Answerability >= floor:
				kept = append(kept, it)
			case it.Answerability >= floor/2:
				it.Flagged = true
				kept = append(kept, it)
			default:
				// Unanswerable from the source text; discard.
			}
		}
		kept = linkObjectives(kept, objByNode[seg.NodeID])
		out = append(out, balance(kept, perSegment)...)
	}
	return out, nil
}

func generateWithModel(ctx context.Context, ai textgen.Client, seg domain.Segment, objs []domain.LearningObjective, audience string) ([]domain.GeneratedAssessment, error) {
	var objList strings.Builder
	for _, o := range objs {
		fmt.Fprintf(&objList, "- [%s] %s\n", o.Bloom, o.Text)
	}
	system := "You write assessment items strictly answerable from the given passage. Choice items carry exactly one correct choice unless marked multi_choice. Answer with the requested JSON only."
	user := fmt.Sprintf("Audience: %s\nObjectives:\n%s\nPassage:\n%s\n\nWrite 2-4 varied items (mix types and difficulty).",
		audience, objList.String(), seg.Text)

	res, err := ai.GenerateJSON(ctx, system, user, "assessment_items", itemSchema)
	if err != nil {
		return nil, err
	}
	raw, _ := res["items"].([]any)
	var out []domain.GeneratedAssessment
	for _, ri := range raw {
		m, ok := ri.(map[string]any)
		if !ok {
			continue
		}
		item := domain.GeneratedAssessment{
			Type:              domain.AssessmentType(fmt.Sprint(m["type"])),
			Prompt:            strings.TrimSpace(fmt.Sprint(m["prompt"])),
			ExpectedAnswer:    strField(m, "expected_answer"),
			Bloom:             domain.BloomLevel(strField(m, "bloom")),
			Difficulty:        domain.DifficultyTier(strField(m, "difficulty")),
			FeedbackCorrect:   strField(m, "feedback_correct"),
			FeedbackIncorrect: strField(m, "feedback_incorrect"),
		}
		if hints, ok := m["hints"].([]any); ok {
			for _, h := range hints {
				if s, ok := h.(string); ok && s != "" {
					item.Hints = append(item.Hints, s)
				}
			}
		}
		if choices, ok := m["choices"].([]any); ok {
			for _, c := range choices {
				cm, ok := c.(map[string]any)
				if !ok {
					continue
				}
				correct, _ := cm["correct"].(bool)
				item.Choices = append(item.Choices, domain.AssessmentChoice{
					Text:    strField(cm, "text"),
					Correct: correct,
				})
			}
		}
		if !validItem(&item) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func strField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func linkObjectives(items []domain.GeneratedAssessment, objs []domain.LearningObjective) []domain.GeneratedAssessment {
	if len(objs) == 0 {
		return items
	}
	for i := range items {
		// Attach to the first objective sharing the item's bloom level,
		// falling back to the first objective for the node.
		items[i].ObjectiveID = objs[0].ID
		for _, o := range objs {
			if o.Bloom == items[i].Bloom {
				items[i].ObjectiveID = o.ID
				break
			}
		}
	}
	return items
}
