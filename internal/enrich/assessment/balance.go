package assessment

import (
	"sort"

	"github.com/yungbote/curricula-backend/internal/domain"
)

// balance keeps at most limit items per segment while spreading the kept set
// across types and bloom levels. Selection is round-robin over (type, bloom)
// buckets ordered by item quality, so one over-generated bucket cannot crowd
// out the rest.
func balance(items []domain.GeneratedAssessment, limit int) []domain.GeneratedAssessment {
	if len(items) <= limit {
		return items
	}

	type bucketKey struct {
		t domain.AssessmentType
		b domain.BloomLevel
	}
	buckets := map[bucketKey][]domain.GeneratedAssessment{}
	var order []bucketKey
	for _, it := range items {
		k := bucketKey{t: it.Type, b: it.Bloom}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], it)
	}
	for k := range buckets {
		b := buckets[k]
		sort.SliceStable(b, func(i, j int) bool {
			if b[i].Flagged != b[j].Flagged {
				return !b[i].Flagged
			}
			return b[i].Answerability > b[j].Answerability
		})
	}
	// Stable bucket order: unflagged-best first, then by first appearance.
	sort.SliceStable(order, func(i, j int) bool {
		return buckets[order[i]][0].Answerability > buckets[order[j]][0].Answerability
	})

	var out []domain.GeneratedAssessment
	for len(out) < limit {
		progressed := false
		for _, k := range order {
			if len(buckets[k]) == 0 {
				continue
			}
			out = append(out, buckets[k][0])
			buckets[k] = buckets[k][1:]
			progressed = true
			if len(out) == limit {
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}
