package kgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/neo4jdb"
)

// Sync mirrors a document's graph into Neo4j. Nodes and edges are MERGEd so
// re-running an import converges instead of duplicating. Callers treat errors
// as stage-local: the document keeps its embedded graph either way.
func Sync(ctx context.Context, db *neo4jdb.Client, documentID string, g *domain.KnowledgeGraph) error {
	if db == nil || db.Driver == nil {
		return nil
	}
	session := db.Driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: db.Database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, n := range g.Nodes {
			_, err := tx.Run(ctx,
				`MERGE (n:`+labelFor(n.Kind)+` {id: $id, document_id: $doc})
				 SET n.text = $text, n.external_ref = $ref`,
				map[string]any{"id": n.ID, "doc": documentID, "text": n.Text, "ref": n.ExternalRef})
			if err != nil {
				return nil, err
			}
		}
		for _, e := range g.Edges {
			_, err := tx.Run(ctx,
				`MATCH (a {id: $from, document_id: $doc}), (b {id: $to, document_id: $doc})
				 MERGE (a)-[r:`+relTypeFor(e.Relation)+`]->(b)
				 SET r.confidence = $conf`,
				map[string]any{"from": e.From, "to": e.To, "doc": documentID, "conf": e.Confidence})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("kgraph: neo4j sync: %w", err)
	}
	return nil
}

func labelFor(k domain.GraphNodeKind) string {
	switch k {
	case domain.GraphNodeConcept:
		return "Concept"
	case domain.GraphNodeTopic:
		return "Topic"
	case domain.GraphNodeAssessment:
		return "Assessment"
	case domain.GraphNodeExternal:
		return "ExternalResource"
	}
	return "Node"
}

func relTypeFor(r domain.EdgeRelation) string {
	return strings.ToUpper(string(r))
}
