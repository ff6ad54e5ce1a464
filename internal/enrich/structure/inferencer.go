// Package structure proposes a module/topic/subtopic hierarchy over raw text.
// Three tiers run and merge by confidence: explicit markers, formatting
// heuristics, and a semantic proposal from the generative model.
package structure

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

type Deps struct {
	Log      *logger.Logger
	AI       textgen.Client
	Template *DomainTemplate
}

type Input struct {
	Text     string
	Analysis *domain.ContentAnalysis
	// Hints is an optional proposed hierarchy from an upstream format parser.
	// It participates as an explicit-tier source.
	Hints    []*domain.StructureNode
	Tunables domain.Tunables
	Audience string
}

// Infer builds the structure proposal. It never returns an error for missing
// structure: the worst case is a single flat module plus a warning.
func Infer(ctx context.Context, deps Deps, in Input) (*domain.StructureResult, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("structure: missing logger")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("structure: empty text")
	}
	log := deps.Log.With("stage", "structure")

	shortCircuit := in.Tunables.ExplicitStructureShortCircuit
	if shortCircuit <= 0 {
		shortCircuit = 0.8
	}
	mergeOverlap := in.Tunables.StructureMergeOverlap
	if mergeOverlap <= 0 {
		mergeOverlap = 0.5
	}

	var warnings []string

	explicit, explicitConf := explicitTier(in.Text, in.Hints)
	if explicitConf >= shortCircuit && len(explicit) > 0 {
		// High-confidence markers cover the document; skip the paid tiers.
		if deps.Template != nil {
			explicit = deps.Template.Apply(explicit)
		}
		roots := finalize(in.Text, explicit)
		return &domain.StructureResult{
			Roots:      roots,
			Confidence: explicitConf,
			Method:     domain.InferenceExplicit,
		}, nil
	}

	heuristic := heuristicTier(in.Text)

	semantic, semErr := semanticTier(ctx, deps.AI, in)
	if semErr != nil {
		log.Warn("semantic structure inference failed", "error", semErr)
		warnings = append(warnings, "semantic structure inference unavailable: "+semErr.Error())
	}

	candidates := mergeProposals(explicit, heuristic, mergeOverlap)
	candidates = mergeProposals(candidates, semantic, mergeOverlap)

	if len(candidates) == 0 {
		// Nothing found anywhere: one flat module holding all content.
		warnings = append(warnings, "no structure detected; emitting a single flat module")
		flat := &domain.StructureNode{
			ID:         uuid.NewString(),
			Title:      firstLineTitle(in.Text),
			Type:       domain.NodeModule,
			Level:      0,
			Span:       domain.Span{Start: 0, End: len(in.Text)},
			Confidence: 0.2,
			Method:     domain.InferenceHeuristic,
		}
		return &domain.StructureResult{
			Roots:      []*domain.StructureNode{flat},
			Confidence: 0.2,
			Method:     domain.InferenceHeuristic,
			Warnings:   warnings,
		}, nil
	}

	if deps.Template != nil {
		candidates = deps.Template.Apply(candidates)
	}

	roots := finalize(in.Text, candidates)
	conf := overallConfidence(roots)
	method := dominantMethod(roots)
	return &domain.StructureResult{
		Roots:      roots,
		Confidence: conf,
		Method:     method,
		Warnings:   warnings,
	}, nil
}

// ---------------- explicit tier ----------------

var (
	mdHeadingRe  = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)
	numHeadingRe = regexp.MustCompile(`(?m)^(\d+(?:\.\d+)*)[.)]?\s+([A-Z][^\n]{2,79})$`)
)

// explicitTier finds deterministic section markers. Upstream parser hints are
// trusted at their own confidence.
func explicitTier(text string, hints []*domain.StructureNode) ([]*domain.StructureNode, float64) {
	type rawHeading struct {
		title string
		depth int
		start int
	}
	var heads []rawHeading

	for _, m := range mdHeadingRe.FindAllStringSubmatchIndex(text, -1) {
		depth := m[3] - m[2]
		title := strings.TrimSpace(text[m[4]:m[5]])
		heads = append(heads, rawHeading{title: title, depth: depth - 1, start: m[0]})
	}
	for _, m := range numHeadingRe.FindAllStringSubmatchIndex(text, -1) {
		num := text[m[2]:m[3]]
		title := strings.TrimSpace(text[m[4]:m[5]])
		depth := strings.Count(num, ".")
		heads = append(heads, rawHeading{title: title, depth: depth, start: m[0]})
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].start < heads[j].start })

	var nodes []*domain.StructureNode
	for i, h := range heads {
		end := len(text)
		// A heading's span ends at the next heading of equal-or-shallower depth.
		for j := i + 1; j < len(heads); j++ {
			if heads[j].depth <= h.depth {
				end = heads[j].start
				break
			}
		}
		nodes = append(nodes, &domain.StructureNode{
			ID:         uuid.NewString(),
			Title:      h.title,
			Type:       nodeTypeForLevel(h.depth),
			Level:      h.depth,
			Span:       domain.Span{Start: h.start, End: end},
			Confidence: 0.95,
			Method:     domain.InferenceExplicit,
			Rationale:  []string{"explicit heading marker"},
		})
	}

	for _, h := range hints {
		if h == nil {
			continue
		}
		c := *h
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.Method == "" {
			c.Method = domain.InferenceExplicit
		}
		if c.Confidence == 0 {
			c.Confidence = 0.9
		}
		nodes = append(nodes, &c)
	}

	if len(nodes) == 0 {
		return nil, 0
	}

	// Overall confidence scales with how much of the document the explicit
	// spans cover.
	covered := 0
	for _, n := range nodes {
		if n.Level == 0 {
			covered += n.Span.Len()
		}
	}
	coverage := float64(covered) / float64(len(text))
	if coverage > 1 {
		coverage = 1
	}
	return nodes, 0.95 * coverage
}

// ---------------- heuristic tier ----------------

// heuristicTier flags formatting cues: short standalone lines, bold or
// all-caps paragraph leads.
func heuristicTier(text string) []*domain.StructureNode {
	var nodes []*domain.StructureNode
	offset := 0
	lines := strings.SplitAfter(text, "\n")
	type cand struct {
		title string
		start int
		why   string
	}
	var cands []cand

	prevBlank := true
	for i, lineWithNL := range lines {
		line := strings.TrimRight(lineWithNL, "\n")
		trimmed := strings.TrimSpace(line)
		nextBlank := i+1 >= len(lines) || strings.TrimSpace(lines[i+1]) == ""

		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "**") && strings.HasSuffix(trimmed, "**") && len(trimmed) > 4:
			cands = append(cands, cand{title: strings.Trim(trimmed, "*"), start: offset, why: "bold standalone line"})
		case prevBlank && nextBlank && looksLikeTitleLine(trimmed):
			cands = append(cands, cand{title: trimmed, start: offset, why: "short standalone line"})
		case prevBlank && isMostlyUpper(trimmed) && len(trimmed) >= 4 && len(trimmed) <= 80:
			cands = append(cands, cand{title: trimmed, start: offset, why: "all-caps lead"})
		}
		prevBlank = trimmed == ""
		offset += len(lineWithNL)
	}

	for i, c := range cands {
		end := len(text)
		if i+1 < len(cands) {
			end = cands[i+1].start
		}
		nodes = append(nodes, &domain.StructureNode{
			ID:         uuid.NewString(),
			Title:      c.title,
			Type:       domain.NodeTopic,
			Level:      1,
			Span:       domain.Span{Start: c.start, End: end},
			Confidence: 0.6,
			Method:     domain.InferenceHeuristic,
			Rationale:  []string{c.why},
		})
	}
	return nodes
}

func looksLikeTitleLine(s string) bool {
	if len(s) < 4 || len(s) > 60 {
		return false
	}
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, ",") || strings.HasSuffix(s, ";") {
		return false
	}
	r := []rune(s)
	return unicode.IsUpper(r[0]) && len(strings.Fields(s)) <= 10
}

func isMostlyUpper(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters > 0 && float64(upper)/float64(letters) >= 0.9
}

// ---------------- semantic tier ----------------

var semanticSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":      map[string]any{"type": "string"},
					"level":      map[string]any{"type": "integer"},
					"start_char": map[string]any{"type": "integer"},
					"end_char":   map[string]any{"type": "integer"},
					"confidence": map[string]any{"type": "number"},
				},
				"required":             []string{"title", "level", "start_char", "end_char", "confidence"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"sections"},
	"additionalProperties": false,
}

func semanticTier(ctx context.Context, ai textgen.Client, in Input) ([]*domain.StructureNode, error) {
	if ai == nil {
		return nil, fmt.Errorf("no generative client configured")
	}
	dom := "general"
	if in.Analysis != nil && in.Analysis.Domain != "" {
		dom = in.Analysis.Domain
	}
	sample := in.Text
	const maxChars = 24000
	truncated := false
	if len(sample) > maxChars {
		sample = sample[:maxChars]
		truncated = true
	}

	system := "You segment educational text into a hierarchy of modules, topics and subtopics. Use character offsets into the exact text given. Answer with the requested JSON only."
	user := fmt.Sprintf("Domain: %s\nAudience: %s\n\nPropose a top-down hierarchy for this text (level 0 = module, 1 = topic, 2 = subtopic):\n\n%s", dom, in.Audience, sample)

	res, err := ai.GenerateJSON(ctx, system, user, "structure_proposal", semanticSchema)
	if err != nil {
		return nil, err
	}

	rawSections, _ := res["sections"].([]any)
	var nodes []*domain.StructureNode
	for _, rs := range rawSections {
		m, ok := rs.(map[string]any)
		if !ok {
			continue
		}
		start := intField(m, "start_char")
		end := intField(m, "end_char")
		if truncated && end > len(sample) {
			end = len(sample)
		}
		if start < 0 {
			start = 0
		}
		if end > len(in.Text) {
			end = len(in.Text)
		}
		if end <= start {
			continue
		}
		conf := floatField(m, "confidence", 0.5)
		if conf > 0.75 {
			conf = 0.75 // semantic proposals never outrank explicit markers
		}
		level := intField(m, "level")
		if level < 0 {
			level = 0
		}
		title, _ := m["title"].(string)
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		nodes = append(nodes, &domain.StructureNode{
			ID:         uuid.NewString(),
			Title:      title,
			Type:       nodeTypeForLevel(level),
			Level:      level,
			Span:       domain.Span{Start: start, End: end},
			Confidence: conf,
			Method:     domain.InferenceSemantic,
			Rationale:  []string{"semantic proposal"},
		})
	}
	return nodes, nil
}

func nodeTypeForLevel(level int) domain.NodeType {
	switch {
	case level <= 0:
		return domain.NodeModule
	case level == 1:
		return domain.NodeTopic
	default:
		return domain.NodeSubtopic
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func floatField(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return def
}

func firstLineTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line != "" {
			if len(line) > 80 {
				line = line[:80]
			}
			return line
		}
	}
	return "Module"
}
