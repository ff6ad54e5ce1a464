package kgraph

import (
	"context"
	"math"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
)

// relatedEdges embeds every concept once and connects pairs whose cosine
// similarity clears the threshold. related_to is symmetric; each pair is
// emitted once in lexical order.
func relatedEdges(ctx context.Context, ai textgen.Client, concepts []string, conceptIDs map[string]string, tun domain.Tunables) ([]domain.GraphEdge, error) {
	threshold := tun.RelatedEdgeSimilarity
	if threshold <= 0 {
		threshold = 0.78
	}
	vecs, err := ai.Embed(ctx, concepts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(concepts) {
		return nil, nil
	}
	var out []domain.GraphEdge
	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			sim, ok := cosine(vecs[i], vecs[j])
			if !ok || sim < threshold {
				continue
			}
			out = append(out, domain.GraphEdge{
				From:       conceptIDs[concepts[i]],
				To:         conceptIDs[concepts[j]],
				Relation:   domain.EdgeRelatedTo,
				Confidence: sim,
			})
		}
	}
	return out, nil
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
