// Package objectives derives learning objectives per structure node: explicit
// statements are harvested first, heuristics fill in from definitions and
// headings, and the generative model synthesizes the remainder.
package objectives

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

type Deps struct {
	Log *logger.Logger
	AI  textgen.Client
}

type Input struct {
	Text     string
	Roots    []*domain.StructureNode
	Segments []domain.Segment
	// BloomTargets caps synthesis per level, e.g. {"apply": 2}. Empty means
	// no per-level steering.
	BloomTargets map[string]int
	Tunables     domain.Tunables
	Audience     string
	// Standards, when present, get fuzzy-matched onto the final objective set.
	Standards []Standard
}

var explicitLeadRe = regexp.MustCompile(`(?i)(?:by the end of this (?:lesson|module|unit|course|section)[^.]*?|students? will be able to|learners? will be able to|you will (?:be able to|learn to|learn how to)|after (?:completing|finishing) this [a-z]+)[,:]?\s*`)

// Extract produces a deduplicated objective list. It only fails on bad
// arguments; a dead model degrades to extracted and inferred objectives.
func Extract(ctx context.Context, deps Deps, in Input) ([]domain.LearningObjective, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("objectives: missing logger")
	}
	log := deps.Log.With("stage", "objectives")

	simThreshold := in.Tunables.ObjectiveDedupeSimilarity
	if simThreshold <= 0 {
		simThreshold = 0.85
	}

	objs := extractExplicit(in.Text, in.Roots)
	objs = append(objs, inferFromSegments(in.Segments)...)

	if deps.AI != nil {
		generated, err := synthesize(ctx, deps.AI, in)
		if err != nil {
			log.Warn("objective synthesis failed, continuing with extracted set", "error", err)
		} else {
			objs = append(objs, generated...)
		}
	}

	objs = dedupe(objs, simThreshold)

	alignThreshold := in.Tunables.StandardsAlignSimilarity
	if alignThreshold <= 0 {
		alignThreshold = 0.4
	}
	align(objs, in.Standards, alignThreshold)

	return objs, nil
}

// extractExplicit lifts statements the author already wrote as objectives.
// These carry the highest confidence and are never displaced by synthesis.
func extractExplicit(text string, roots []*domain.StructureNode) []domain.LearningObjective {
	var out []domain.LearningObjective
	for _, sent := range textutil.SplitSentences(text) {
		loc := explicitLeadRe.FindStringIndex(sent.Text)
		if loc == nil {
			continue
		}
		body := strings.TrimSpace(sent.Text[loc[1]:])
		// Compound leads stack ("By the end of this module, students will be
		// able to ..."); strip until only the objective body remains.
		for {
			m := explicitLeadRe.FindStringIndex(body)
			if m == nil || m[0] != 0 {
				break
			}
			body = strings.TrimSpace(body[m[1]:])
		}
		body = strings.TrimSuffix(body, ".")
		if textutil.WordCount(body) < 3 {
			continue
		}
		bloom, verb := classifyBloom(body)
		out = append(out, domain.LearningObjective{
			ID:         uuid.NewString(),
			NodeID:     nodeAtOffset(roots, sent.Start),
			Text:       body,
			Bloom:      bloom,
			SourceVerb: verb,
			Provenance: domain.ObjectiveExtracted,
			Confidence: 0.9,
		})
	}
	return out
}

// inferFromSegments turns definition segments into remember/understand
// objectives so even a model-free run yields something usable.
func inferFromSegments(segments []domain.Segment) []domain.LearningObjective {
	var out []domain.LearningObjective
	for _, seg := range segments {
		if seg.Type != domain.SegmentDefinition || len(seg.KeyConcepts) == 0 {
			continue
		}
		out = append(out, domain.LearningObjective{
			ID:         uuid.NewString(),
			NodeID:     seg.NodeID,
			Text:       fmt.Sprintf("Define %s and explain its role in context", seg.KeyConcepts[0]),
			Bloom:      domain.BloomRemember,
			SourceVerb: "define",
			Provenance: domain.ObjectiveInferred,
			Confidence: 0.6,
			SegmentIDs: []string{seg.ID},
		})
	}
	return out
}

var synthesisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"objectives": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"statement":  map[string]any{"type": "string"},
					"bloom":      map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number"},
				},
				"required":             []string{"statement", "bloom", "confidence"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"objectives"},
	"additionalProperties": false,
}

// synthesize asks the model for objectives per leaf node that has enough
// content to support them.
func synthesize(ctx context.Context, ai textgen.Client, in Input) ([]domain.LearningObjective, error) {
	segsByNode := map[string][]domain.Segment{}
	for _, s := range in.Segments {
		segsByNode[s.NodeID] = append(segsByNode[s.NodeID], s)
	}

	var targets strings.Builder
	for lvl, n := range in.BloomTargets {
		fmt.Fprintf(&targets, "%s: %d, ", lvl, n)
	}

	var out []domain.LearningObjective
	var firstErr error
	for _, r := range in.Roots {
		r.Walk(func(node *domain.StructureNode, _ int) {
			if len(node.Children) > 0 || firstErr != nil {
				return
			}
			if err := ctx.Err(); err != nil {
				firstErr = err
				return
			}
			segs := segsByNode[node.ID]
			if len(segs) == 0 {
				return
			}
			var sample strings.Builder
			for _, s := range segs {
				sample.WriteString(s.Text)
				sample.WriteString("\n\n")
				if sample.Len() > 6000 {
					break
				}
			}
			system := "You write measurable learning objectives for educational content. Each statement starts with an action verb. Answer with the requested JSON only."
			user := fmt.Sprintf("Topic: %s\nAudience: %s\nBloom targets (per level): %s\n\nWrite 2-4 objectives for this material:\n\n%s",
				node.Title, in.Audience, targets.String(), sample.String())
			res, err := ai.GenerateJSON(ctx, system, user, "learning_objectives", synthesisSchema)
			if err != nil {
				firstErr = err
				return
			}
			raw, _ := res["objectives"].([]any)
			for _, ro := range raw {
				m, ok := ro.(map[string]any)
				if !ok {
					continue
				}
				statement, _ := m["statement"].(string)
				statement = strings.TrimSpace(strings.TrimSuffix(statement, "."))
				if textutil.WordCount(statement) < 3 {
					continue
				}
				bloom := domain.BloomLevel(strings.ToLower(fmt.Sprint(m["bloom"])))
				verb := ""
				if !validBloom(bloom) {
					bloom, verb = classifyBloom(statement)
				}
				conf := 0.5
				if c, ok := m["confidence"].(float64); ok && c > 0 && c <= 1 {
					conf = c
				}
				out = append(out, domain.LearningObjective{
					ID:         uuid.NewString(),
					NodeID:     node.ID,
					Text:       statement,
					Bloom:      bloom,
					SourceVerb: verb,
					Provenance: domain.ObjectiveGenerated,
					Confidence: conf,
				})
			}
		})
		if firstErr != nil {
			break
		}
	}
	if firstErr != nil && len(out) == 0 {
		return nil, firstErr
	}
	return out, nil
}

func validBloom(b domain.BloomLevel) bool {
	for _, l := range domain.AllBloomLevels {
		if b == l {
			return true
		}
	}
	return false
}

// dedupe collapses near-duplicate statements, keeping the higher-confidence
// one; extracted provenance breaks confidence ties.
func dedupe(objs []domain.LearningObjective, threshold float64) []domain.LearningObjective {
	var kept []domain.LearningObjective
	for _, o := range objs {
		words := textutil.Words(o.Text)
		dup := -1
		for i, k := range kept {
			if textutil.JaccardSimilarity(words, textutil.Words(k.Text)) >= threshold {
				dup = i
				break
			}
		}
		if dup < 0 {
			kept = append(kept, o)
			continue
		}
		if betterObjective(o, kept[dup]) {
			kept[dup] = o
		}
	}
	return kept
}

func betterObjective(a, b domain.LearningObjective) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Provenance == domain.ObjectiveExtracted && b.Provenance != domain.ObjectiveExtracted
}

func nodeAtOffset(roots []*domain.StructureNode, off int) string {
	var id string
	for _, r := range roots {
		r.Walk(func(n *domain.StructureNode, _ int) {
			if n.Span.Start <= off && off < n.Span.End && len(n.Children) == 0 {
				id = n.ID
			}
		})
	}
	return id
}
