package objectives

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

// Standard is one entry of an external standards taxonomy (e.g. NGSS,
// Common Core) objectives can be aligned against.
type Standard struct {
	Framework string `yaml:"framework" json:"framework"`
	Code      string `yaml:"code" json:"code"`
	Text      string `yaml:"text" json:"text"`
}

// maxAlignments caps how many standards a single objective may cite.
const maxAlignments = 3

// LoadStandards reads a standards list from YAML. Entries missing a code or
// statement text are dropped rather than failing the load.
func LoadStandards(path string) ([]Standard, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("objectives: read standards list: %w", err)
	}
	var doc struct {
		Standards []Standard `yaml:"standards"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("objectives: parse standards list: %w", err)
	}
	out := doc.Standards[:0]
	for _, s := range doc.Standards {
		if s.Code == "" || s.Text == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// align attaches the closest standards to each objective by token overlap.
// Alignment is advisory: scores ride along for reviewers, nothing downstream
// gates on them.
func align(objs []domain.LearningObjective, standards []Standard, threshold float64) {
	if len(standards) == 0 {
		return
	}
	stdWords := make([][]string, len(standards))
	for i, s := range standards {
		stdWords[i] = textutil.Words(s.Text)
	}
	for i := range objs {
		words := textutil.Words(objs[i].Text)
		var matches []domain.StandardAlignment
		for j, s := range standards {
			score := textutil.JaccardSimilarity(words, stdWords[j])
			if score < threshold {
				continue
			}
			matches = append(matches, domain.StandardAlignment{
				Framework: s.Framework,
				Code:      s.Code,
				Text:      s.Text,
				Score:     score,
			})
		}
		sort.Slice(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })
		if len(matches) > maxAlignments {
			matches = matches[:maxAlignments]
		}
		objs[i].Alignments = matches
	}
}
