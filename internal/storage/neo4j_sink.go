package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Benny93/vaultgraph/internal/config"
	"github.com/Benny93/vaultgraph/internal/graph"
)

// queryRunner executes one Cypher statement and returns its records.
type queryRunner func(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)

// Neo4jSink writes the graph to a Neo4j server with idempotent MERGE
// statements. It is write-only.
type Neo4jSink struct {
	driver neo4j.DriverWithContext
	run    queryRunner
}

// OpenNeo4j connects to the server described by cfg and makes sure the
// uniqueness constraints on node IDs exist.
func OpenNeo4j(ctx context.Context, cfg config.SinkConfig) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j at %s: %w", cfg.URI, err)
	}

	database := cfg.Database
	sink := &Neo4jSink{
		driver: driver,
		run: func(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
			return neo4j.ExecuteQuery(ctx, driver, query, params,
				neo4j.EagerResultTransformer,
				neo4j.ExecuteQueryWithDatabase(database))
		},
	}

	if err := sink.ensureConstraints(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return sink, nil
}

func (s *Neo4jSink) ensureConstraints(ctx context.Context) error {
	for _, label := range graph.Labels {
		if _, err := s.run(ctx, constraintQuery(label), nil); err != nil {
			return fmt.Errorf("creating %s constraint: %w", label, err)
		}
	}
	return nil
}

// Wipe implements Sink.
func (s *Neo4jSink) Wipe(ctx context.Context) error {
	if _, err := s.run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
		return fmt.Errorf("clearing neo4j database: %w", err)
	}
	return nil
}

// MergeNode implements Sink.
func (s *Neo4jSink) MergeNode(ctx context.Context, node *graph.GraphNode) error {
	query, err := mergeNodeQuery(node.Label)
	if err != nil {
		return err
	}

	params := map[string]any{
		"id":    node.ID,
		"props": node.Properties(),
	}
	if _, err := s.run(ctx, query, params); err != nil {
		return fmt.Errorf("merging node %s: %w", node.ID, err)
	}
	return nil
}

// MergeEdge implements Sink.
func (s *Neo4jSink) MergeEdge(ctx context.Context, rel *graph.GraphRelationship) error {
	query, err := mergeEdgeQuery(graph.LabelOf(rel.Source), rel.Type, graph.LabelOf(rel.Target))
	if err != nil {
		return err
	}

	params := map[string]any{
		"source": rel.Source,
		"target": rel.Target,
	}
	result, err := s.run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("merging relationship %s: %w", rel.ID, err)
	}
	if result == nil || len(result.Records) == 0 {
		return fmt.Errorf("%s: %w", rel.ID, ErrMissingEndpoint)
	}
	return nil
}

// Close implements Sink.
func (s *Neo4jSink) Close() error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(context.Background())
}

// Labels and relationship types cannot be parameterized in Cypher, so they
// are checked against the known sets before being formatted into a query.

func constraintQuery(label graph.NodeLabel) string {
	return fmt.Sprintf(
		"CREATE CONSTRAINT %s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
		strings.ToLower(string(label)), label)
}

func mergeNodeQuery(label graph.NodeLabel) (string, error) {
	if !slices.Contains(graph.Labels, label) {
		return "", fmt.Errorf("unknown node label %q", label)
	}
	return fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props", label), nil
}

func mergeEdgeQuery(source graph.NodeLabel, relType graph.RelType, target graph.NodeLabel) (string, error) {
	if !slices.Contains(graph.Labels, source) {
		return "", fmt.Errorf("unknown source label %q", source)
	}
	if !slices.Contains(graph.Labels, target) {
		return "", fmt.Errorf("unknown target label %q", target)
	}
	if !slices.Contains(graph.RelTypes, relType) {
		return "", fmt.Errorf("unknown relationship type %q", relType)
	}
	return fmt.Sprintf(
		"MATCH (a:%s {id: $source}) MATCH (b:%s {id: $target}) MERGE (a)-[:%s]->(b) RETURN 1 AS merged",
		source, target, relType), nil
}
