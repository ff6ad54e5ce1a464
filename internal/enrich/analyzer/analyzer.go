// Package analyzer profiles raw text before any other stage runs: readability
// formulas, structural counts, presence flags and domain/formality
// classification. The profile is immutable and feeds every later stage.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

type Deps struct {
	Log *logger.Logger
	// AI is optional. When nil or failing, classification falls back to the
	// keyword taxonomy; the stage itself never fails on classifier errors.
	AI textgen.Client
}

type Input struct {
	Text          string
	Audience      string
	DefaultTarget int
}

var classifySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"domain":    map[string]any{"type": "string"},
		"language":  map[string]any{"type": "string"},
		"formality": map[string]any{"type": "string", "enum": []string{"formal", "neutral", "informal"}},
	},
	"required":             []string{"domain", "language", "formality"},
	"additionalProperties": false,
}

// Analyze computes the content profile. The only side effect is the optional
// classification call.
func Analyze(ctx context.Context, deps Deps, in Input) (*domain.ContentAnalysis, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("analyzer: missing logger")
	}
	text := in.Text
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("analyzer: empty text")
	}
	log := deps.Log.With("stage", "analyze")

	st := computeStats(text)
	headings, lists, code, equations, citations := presenceFlags(text)

	out := &domain.ContentAnalysis{
		GradeLevel:           fleschKincaidGrade(st),
		ReadingEase:          fleschReadingEase(st),
		VocabularyDifficulty: vocabularyDifficulty(st),
		WordCount:            st.Words,
		SentenceCount:        st.Sentences,
		ParagraphCount:       st.Paragraphs,
		HasHeadings:          headings,
		HasLists:             lists,
		HasCode:              code,
		HasEquations:         equations,
		HasCitations:         citations,
		Language:             "en",
	}
	if st.Sentences > 0 {
		out.AvgSentenceLen = round2(float64(st.Words) / float64(st.Sentences))
	}
	if st.Words > 0 {
		out.AvgWordLen = round2(float64(st.CharCount) / float64(st.Words))
	}

	out.Domain, out.Language, out.Formality, out.DomainSource = classify(ctx, log, deps.AI, text, in.Audience)
	out.RecommendedChunk = recommendChunkSize(out.GradeLevel, in.DefaultTarget)
	return out, nil
}

// classify prefers the generative classifier and falls back to rules on any
// error, per the stage's no-fail contract.
func classify(ctx context.Context, log *logger.Logger, ai textgen.Client, text, audience string) (dom, lang, formality, source string) {
	ruleDomain := classifyDomainByRules(text)
	ruleFormality := classifyFormalityByRules(text)

	if ai == nil {
		return ruleDomain, "en", ruleFormality, "rules"
	}

	sample := text
	if len(sample) > 4000 {
		sample = sample[:4000]
	}
	system := "You classify educational text. Answer with the requested JSON only."
	user := fmt.Sprintf("Audience: %s\n\nClassify the subject domain (snake_case noun), ISO 639-1 language code, and formality of this text:\n\n%s", audience, sample)

	res, err := ai.GenerateJSON(ctx, system, user, "content_classification", classifySchema)
	if err != nil {
		log.Warn("generative classification failed; using rule-based fallback", "error", err)
		return ruleDomain, "en", ruleFormality, "rules"
	}

	dom = strField(res, "domain", ruleDomain)
	lang = strField(res, "language", "en")
	formality = strField(res, "formality", ruleFormality)
	return dom, lang, formality, "model"
}

func strField(m map[string]any, key, def string) string {
	if v, ok := m[key].(string); ok {
		v = textutil.NormalizeTerm(v)
		if v != "" {
			return strings.ReplaceAll(v, " ", "_")
		}
	}
	return def
}
