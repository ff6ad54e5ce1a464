// Package kgraph assembles the typed concept graph: concepts and topics as
// nodes, structural and pedagogical relations as edges, prerequisite edges
// proposed by the model and repaired to acyclicity before acceptance.
package kgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
	"github.com/yungbote/curricula-backend/internal/platform/wikidata"
)

type Deps struct {
	Log      *logger.Logger
	AI       textgen.Client
	Entities wikidata.Resolver
}

type Input struct {
	Roots       []*domain.StructureNode
	Segments    []domain.Segment
	Assessments []domain.GeneratedAssessment
	Tunables    domain.Tunables
}

// Build constructs the graph. Model and lookup failures degrade the edge set;
// the structural skeleton is always produced.
func Build(ctx context.Context, deps Deps, in Input) (*domain.KnowledgeGraph, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("kgraph: missing logger")
	}
	log := deps.Log.With("stage", "kgraph")

	g := &domain.KnowledgeGraph{}

	// Topic nodes mirror the structure tree; part_of edges point child to
	// parent.
	topicIDs := map[string]string{}
	for _, r := range in.Roots {
		addTopicNodes(g, r, "", topicIDs)
	}

	// Concept nodes from segment key concepts, deduplicated by normalized
	// name. teaches edges connect the owning topic to each concept.
	conceptIDs := map[string]string{}
	var conceptOrder []string
	for _, seg := range in.Segments {
		for _, c := range seg.KeyConcepts {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" {
				continue
			}
			id, seen := conceptIDs[key]
			if !seen {
				id = "concept:" + key
				conceptIDs[key] = id
				conceptOrder = append(conceptOrder, key)
				g.Nodes = append(g.Nodes, domain.GraphNode{ID: id, Kind: domain.GraphNodeConcept, Text: c})
			}
			if topicID, ok := topicIDs[seg.NodeID]; ok {
				addEdgeOnce(g, domain.GraphEdge{From: topicID, To: id, Relation: domain.EdgeTeaches, Confidence: seg.BoundaryConfidence})
			}
		}
	}

	// Assessment nodes and assesses edges. Items carry their concepts
	// directly; older rows without them fall back to the source segment's
	// key concepts.
	segConcepts := map[string][]string{}
	for _, seg := range in.Segments {
		segConcepts[seg.ID] = seg.KeyConcepts
	}
	for _, a := range in.Assessments {
		nodeID := "assessment:" + a.ID
		g.Nodes = append(g.Nodes, domain.GraphNode{ID: nodeID, Kind: domain.GraphNodeAssessment, Text: a.Prompt})
		concepts := a.ConceptIDs
		if len(concepts) == 0 {
			concepts = segConcepts[a.SegmentID]
		}
		for _, c := range concepts {
			if id, ok := conceptIDs[strings.ToLower(strings.TrimSpace(c))]; ok {
				addEdgeOnce(g, domain.GraphEdge{From: nodeID, To: id, Relation: domain.EdgeAssesses, Confidence: a.Answerability})
			}
		}
	}

	// Prerequisite edges from the model, floored and made acyclic.
	if deps.AI != nil && len(conceptOrder) > 1 {
		edges, err := proposePrerequisites(ctx, deps.AI, conceptOrder, conceptIDs, in.Tunables)
		if err != nil {
			log.Warn("prerequisite proposal failed, graph carries no prerequisite edges", "error", err)
		} else {
			kept, dropped := breakCycles(edges)
			g.Edges = append(g.Edges, kept...)
			g.DroppedEdges = dropped
			if len(dropped) > 0 {
				log.Info("dropped prerequisite edges to restore acyclicity", "count", len(dropped))
			}
		}
	}

	// related_to edges from embedding similarity.
	if deps.AI != nil && len(conceptOrder) > 1 {
		related, err := relatedEdges(ctx, deps.AI, conceptOrder, conceptIDs, in.Tunables)
		if err != nil {
			log.Warn("similarity edges unavailable", "error", err)
		} else {
			for _, e := range related {
				addEdgeOnce(g, e)
			}
		}
	}

	// External linking; a miss is recorded, never fatal.
	if deps.Entities != nil {
		linkExternal(ctx, deps.Entities, g, conceptIDs, log)
	}

	return g, nil
}

func addTopicNodes(g *domain.KnowledgeGraph, n *domain.StructureNode, parentID string, topicIDs map[string]string) {
	id := "topic:" + n.ID
	topicIDs[n.ID] = id
	g.Nodes = append(g.Nodes, domain.GraphNode{ID: id, Kind: domain.GraphNodeTopic, Text: n.Title})
	if parentID != "" {
		g.Edges = append(g.Edges, domain.GraphEdge{From: id, To: parentID, Relation: domain.EdgePartOf, Confidence: n.Confidence})
	}
	for _, c := range n.Children {
		addTopicNodes(g, c, id, topicIDs)
	}
}

func addEdgeOnce(g *domain.KnowledgeGraph, e domain.GraphEdge) {
	for _, existing := range g.Edges {
		if existing.From == e.From && existing.To == e.To && existing.Relation == e.Relation {
			return
		}
	}
	g.Edges = append(g.Edges, e)
}

var prereqSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prerequisite": map[string]any{"type": "string"},
					"dependent":    map[string]any{"type": "string"},
					"confidence":   map[string]any{"type": "number"},
				},
				"required":             []string{"prerequisite", "dependent", "confidence"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"edges"},
	"additionalProperties": false,
}

func proposePrerequisites(ctx context.Context, ai textgen.Client, concepts []string, conceptIDs map[string]string, tun domain.Tunables) ([]domain.GraphEdge, error) {
	floor := tun.PrereqEdgeConfidenceFloor
	if floor <= 0 {
		floor = 0.3
	}
	system := "You identify prerequisite relations between concepts: which must be understood before which. Only propose relations you are confident about. Answer with the requested JSON only."
	user := "Concepts: " + strings.Join(concepts, ", ")
	res, err := ai.GenerateJSON(ctx, system, user, "prerequisite_edges", prereqSchema)
	if err != nil {
		return nil, err
	}
	raw, _ := res["edges"].([]any)
	var out []domain.GraphEdge
	for _, re := range raw {
		m, ok := re.(map[string]any)
		if !ok {
			continue
		}
		from, okF := conceptIDs[strings.ToLower(strings.TrimSpace(fmt.Sprint(m["prerequisite"])))]
		to, okT := conceptIDs[strings.ToLower(strings.TrimSpace(fmt.Sprint(m["dependent"])))]
		conf, _ := m["confidence"].(float64)
		if !okF || !okT || from == to || conf < floor {
			continue
		}
		out = append(out, domain.GraphEdge{From: from, To: to, Relation: domain.EdgePrerequisiteOf, Confidence: conf})
	}
	// Deterministic order keeps cycle repair reproducible.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out, nil
}

// linkExternal resolves each concept against the knowledge base. A hit adds
// an external_resource node plus a same_as edge; a miss lands on Unresolved.
func linkExternal(ctx context.Context, resolver wikidata.Resolver, g *domain.KnowledgeGraph, conceptIDs map[string]string, log *logger.Logger) {
	keys := make([]string, 0, len(conceptIDs))
	for k := range conceptIDs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	externalNodes := map[string]bool{}
	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		ref, err := resolver.Resolve(ctx, key)
		if err != nil {
			log.Warn("entity resolution failed", "concept", key, "error", err)
			g.Unresolved = append(g.Unresolved, conceptIDs[key])
			continue
		}
		if ref == nil {
			g.Unresolved = append(g.Unresolved, conceptIDs[key])
			continue
		}
		extID := "external:" + ref.ID
		if !externalNodes[extID] {
			externalNodes[extID] = true
			g.Nodes = append(g.Nodes, domain.GraphNode{
				ID:          extID,
				Kind:        domain.GraphNodeExternal,
				Text:        ref.Label,
				ExternalRef: ref.URL,
			})
		}
		addEdgeOnce(g, domain.GraphEdge{From: conceptIDs[key], To: extID, Relation: domain.EdgeSameAs, Confidence: 1})
		for i := range g.Nodes {
			if g.Nodes[i].ID == conceptIDs[key] {
				g.Nodes[i].ExternalRef = ref.URL
				break
			}
		}
	}
}
