package segment

import (
	"context"
	"math"
	"strings"

	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

// BoundarySignals carries the three per-gap scores, each in [0,1]. Higher
// surprisal and margin argue for a cut; higher similarity argues against one.
type BoundarySignals struct {
	Surprisal  float64
	Margin     float64
	Similarity float64
}

// SignalBackend scores the gap after each sentence. The returned slice has
// len(sentences)-1 entries: entry i scores the gap between sentence i and
// sentence i+1.
type SignalBackend interface {
	Score(ctx context.Context, sentences []textutil.Sentence, text string) ([]BoundarySignals, error)
}

// ---------------- lexical backend ----------------

// lexicalBackend is the deterministic default. It needs no model calls, so
// the segmenter stays fully functional when every provider is down.
type lexicalBackend struct {
	window int
}

func NewLexicalBackend() SignalBackend { return &lexicalBackend{window: 3} }

var cueWords = map[string]float64{
	"however":      0.8,
	"meanwhile":    0.7,
	"next":         0.6,
	"finally":      0.8,
	"furthermore":  0.5,
	"moreover":     0.5,
	"conversely":   0.7,
	"similarly":    0.4,
	"consequently": 0.6,
	"therefore":    0.5,
	"summary":      0.9,
	"conclusion":   0.9,
	"recap":        0.9,
	"now":          0.4,
	"first":        0.5,
	"second":       0.5,
	"third":        0.5,
}

func (b *lexicalBackend) Score(_ context.Context, sentences []textutil.Sentence, text string) ([]BoundarySignals, error) {
	if len(sentences) < 2 {
		return nil, nil
	}
	out := make([]BoundarySignals, len(sentences)-1)
	for i := 0; i < len(sentences)-1; i++ {
		before := windowWords(sentences, i, -b.window)
		after := windowWords(sentences, i+1, b.window)

		out[i] = BoundarySignals{
			Surprisal:  noveltyFraction(before, after),
			Margin:     marginScore(sentences, i, text),
			Similarity: textutil.JaccardSimilarity(before, after),
		}
	}
	return out, nil
}

// windowWords collects words from up to |n| sentences starting at idx; a
// negative n walks backwards (inclusive of idx).
func windowWords(sentences []textutil.Sentence, idx, n int) []string {
	var words []string
	if n < 0 {
		lo := idx + n + 1
		if lo < 0 {
			lo = 0
		}
		for i := lo; i <= idx; i++ {
			words = append(words, textutil.Words(sentences[i].Text)...)
		}
		return words
	}
	hi := idx + n
	if hi > len(sentences) {
		hi = len(sentences)
	}
	for i := idx; i < hi; i++ {
		words = append(words, textutil.Words(sentences[i].Text)...)
	}
	return words
}

// noveltyFraction approximates surprisal: what fraction of the upcoming
// window's vocabulary has not been seen in the trailing window.
func noveltyFraction(before, after []string) float64 {
	if len(after) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(before))
	for _, w := range before {
		seen[w] = struct{}{}
	}
	novel := 0
	for _, w := range after {
		if _, ok := seen[w]; !ok {
			novel++
		}
	}
	return float64(novel) / float64(len(after))
}

// marginScore reflects explicit discourse cues: a paragraph break in the gap
// and a cue word opening the next sentence.
func marginScore(sentences []textutil.Sentence, gap int, text string) float64 {
	score := 0.0
	between := text[sentences[gap].End:sentences[gap+1].Start]
	if strings.Count(between, "\n") >= 2 {
		score = 0.7
	}
	words := textutil.Words(sentences[gap+1].Text)
	if len(words) > 0 {
		if w, ok := cueWords[words[0]]; ok && w > score {
			score = w
		}
	}
	return score
}

// ---------------- embedding backend ----------------

// embeddingBackend refines the similarity signal with vector cosine over
// sentence windows, keeping the lexical backend's surprisal and margin.
type embeddingBackend struct {
	lexical SignalBackend
	ai      textgen.Client
	window  int
}

func NewEmbeddingBackend(ai textgen.Client) SignalBackend {
	return &embeddingBackend{lexical: NewLexicalBackend(), ai: ai, window: 2}
}

func (b *embeddingBackend) Score(ctx context.Context, sentences []textutil.Sentence, text string) ([]BoundarySignals, error) {
	base, err := b.lexical.Score(ctx, sentences, text)
	if err != nil || len(base) == 0 {
		return base, err
	}

	inputs := make([]string, len(sentences))
	for i, s := range sentences {
		inputs[i] = s.Text
	}
	vecs, err := b.ai.Embed(ctx, inputs)
	if err != nil || len(vecs) != len(sentences) {
		// Signals degrade to lexical-only; the segmenter never fails on a
		// provider error.
		return base, nil
	}

	for i := range base {
		before := meanVector(vecs[maxInt(0, i-b.window+1) : i+1])
		after := meanVector(vecs[i+1 : minInt(len(vecs), i+1+b.window)])
		if sim, ok := cosine(before, after); ok {
			base[i].Similarity = (sim + 1) / 2
		}
	}
	return base, nil
}

func meanVector(vs [][]float32) []float32 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]float32, len(vs[0]))
	for _, v := range vs {
		for i := range out {
			if i < len(v) {
				out[i] += v[i]
			}
		}
	}
	inv := 1 / float32(len(vs))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
