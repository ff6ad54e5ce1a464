package structure

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/curricula-backend/internal/domain"
)

// DomainTemplate nudges an inferred outline toward the conventional shape of
// a subject area. Templates only relabel and reorder nodes whose titles match
// a known pattern; sections the template does not recognize keep their place
// at the end. Content is never dropped.
type DomainTemplate struct {
	Name     string            `yaml:"name"`
	Sections []TemplateSection `yaml:"sections"`
}

type TemplateSection struct {
	Label    string   `yaml:"label"`
	Order    int      `yaml:"order"`
	Patterns []string `yaml:"patterns"`
}

// LoadTemplate reads <dir>/<name>.yaml. A missing file is an error so callers
// can decide whether the template was optional.
func LoadTemplate(dir, name string) (*DomainTemplate, error) {
	path := filepath.Join(dir, name+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("structure: read template %s: %w", name, err)
	}
	var t DomainTemplate
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("structure: parse template %s: %w", name, err)
	}
	if t.Name == "" {
		t.Name = name
	}
	return &t, nil
}

// Apply relabels matching top-level candidates and biases their ordering key.
// It operates on the flat candidate list before tree assembly, so the final
// span-order pass still wins on actual document position; the template only
// settles titles and tie ordering.
func (t *DomainTemplate) Apply(nodes []*domain.StructureNode) []*domain.StructureNode {
	order := map[string]int{}
	for i, n := range nodes {
		order[n.ID] = i
	}
	for _, n := range nodes {
		if n.Level != 0 {
			continue
		}
		if sec := t.match(n.Title); sec != nil {
			if sec.Label != "" {
				n.Rationale = append(n.Rationale, "template relabel: "+n.Title)
				n.Title = sec.Label
			}
			order[n.ID] = sec.Order
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool { return order[nodes[i].ID] < order[nodes[j].ID] })
	return nodes
}

func (t *DomainTemplate) match(title string) *TemplateSection {
	lower := strings.ToLower(title)
	for i := range t.Sections {
		for _, p := range t.Sections[i].Patterns {
			if strings.Contains(lower, strings.ToLower(p)) {
				return &t.Sections[i]
			}
		}
	}
	return nil
}
