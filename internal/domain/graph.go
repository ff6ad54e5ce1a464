package domain

type GraphNodeKind string

const (
	GraphNodeConcept    GraphNodeKind = "concept"
	GraphNodeTopic      GraphNodeKind = "topic"
	GraphNodeAssessment GraphNodeKind = "assessment"
	GraphNodeExternal   GraphNodeKind = "external_resource"
)

type EdgeRelation string

const (
	EdgePrerequisiteOf EdgeRelation = "prerequisite_of"
	EdgeRelatedTo      EdgeRelation = "related_to"
	EdgePartOf         EdgeRelation = "part_of"
	EdgeAssesses       EdgeRelation = "assesses"
	EdgeTeaches        EdgeRelation = "teaches"
	EdgeSameAs         EdgeRelation = "same_as"
)

type GraphNode struct {
	ID          string        `json:"id"`
	Kind        GraphNodeKind `json:"kind"`
	Text        string        `json:"text"`
	ExternalRef string        `json:"external_ref,omitempty"`
}

type GraphEdge struct {
	From       string       `json:"from"`
	To         string       `json:"to"`
	Relation   EdgeRelation `json:"relation"`
	Confidence float64      `json:"confidence,omitempty"`
}

// KnowledgeGraph is the typed concept graph attached to a document.
// Invariant: the prerequisite_of subgraph is acyclic at acceptance time.
type KnowledgeGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	// DroppedEdges records prerequisite edges removed to restore acyclicity.
	DroppedEdges []GraphEdge `json:"dropped_edges,omitempty"`
	// Unresolved lists concept ids that could not be linked externally.
	Unresolved []string `json:"unresolved,omitempty"`
}

// PrerequisiteEdges returns only the prerequisite_of subset of Edges.
func (g *KnowledgeGraph) PrerequisiteEdges() []GraphEdge {
	out := make([]GraphEdge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.Relation == EdgePrerequisiteOf {
			out = append(out, e)
		}
	}
	return out
}
