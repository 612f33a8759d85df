// Package graph keeps a registry of retrieval partitions in Neo4j.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4jClient records one Partition node per knowledge-space version
type Neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// Neo4jConfig represents Neo4j connection configuration
type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// Partition is a registered retrieval partition
type Partition struct {
	Namespace        string    `json:"namespace"`
	TenantID         string    `json:"tenant_id"`
	KnowledgeSpaceID string    `json:"knowledge_space_id"`
	Version          string    `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewNeo4jClient creates a new Neo4j client
func NewNeo4jClient(config Neo4jConfig, logger *zap.Logger) (*Neo4jClient, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("Neo4j URI is required")
	}

	auth := neo4j.BasicAuth(config.Username, config.Password, "")
	driver, err := neo4j.NewDriverWithContext(config.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	client := &Neo4jClient{
		driver:   driver,
		database: config.Database,
		logger:   logger,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = client.driver.VerifyConnectivity(ctx)
	if err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	client.initializeSchema(ctx)

	logger.Info("Neo4j partition registry initialized",
		zap.String("uri", config.URI),
		zap.String("database", config.Database))

	return client, nil
}

// Close closes the Neo4j driver
func (c *Neo4jClient) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Neo4jClient) session(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.database,
	})
}

// initializeSchema creates constraints and indexes. Failures are logged, not fatal.
func (c *Neo4jClient) initializeSchema(ctx context.Context) {
	session := c.session(ctx)
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT partition_namespace IF NOT EXISTS FOR (p:Partition) REQUIRE p.namespace IS UNIQUE",
		"CREATE INDEX partition_tenant_ks IF NOT EXISTS FOR (p:Partition) ON (p.tenant_id, p.knowledge_space_id)",
	}

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			c.logger.Warn("Failed to apply schema statement",
				zap.String("statement", stmt),
				zap.Error(err))
		}
	}
}

// RegisterPartition records a namespace. Registering the same namespace twice is a no-op.
func (c *Neo4jClient) RegisterPartition(ctx context.Context, namespace, tenantID, knowledgeSpaceID, version string) error {
	session := c.session(ctx)
	defer session.Close(ctx)

	query := `
		MERGE (p:Partition {namespace: $namespace})
		ON CREATE SET p.created_at = $created_at
		SET p.tenant_id = $tenant_id,
		    p.knowledge_space_id = $knowledge_space_id,
		    p.version = $version
	`

	params := map[string]any{
		"namespace":          namespace,
		"tenant_id":          tenantID,
		"knowledge_space_id": knowledgeSpaceID,
		"version":            version,
		"created_at":         time.Now().UTC(),
	}

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to register partition %s: %w", namespace, err)
	}

	c.logger.Debug("Registered partition",
		zap.String("namespace", namespace),
		zap.String("tenant_id", tenantID))
	return nil
}

// ListPartitions returns a tenant's partitions ordered by namespace
func (c *Neo4jClient) ListPartitions(ctx context.Context, tenantID string) ([]Partition, error) {
	session := c.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (p:Partition {tenant_id: $tenant_id})
		RETURN p.namespace AS namespace, p.knowledge_space_id AS knowledge_space_id,
		       p.version AS version, p.created_at AS created_at
		ORDER BY p.namespace
	`

	result, err := session.Run(ctx, query, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}

	var partitions []Partition
	for result.Next(ctx) {
		record := result.Record()
		p := Partition{TenantID: tenantID}
		p.Namespace, _ = record.Values[0].(string)
		p.KnowledgeSpaceID, _ = record.Values[1].(string)
		p.Version, _ = record.Values[2].(string)
		p.CreatedAt, _ = record.Values[3].(time.Time)
		partitions = append(partitions, p)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partitions: %w", err)
	}

	return partitions, nil
}

// DeletePartitions removes every version of a knowledge space
func (c *Neo4jClient) DeletePartitions(ctx context.Context, tenantID, knowledgeSpaceID string) error {
	session := c.session(ctx)
	defer session.Close(ctx)

	query := "MATCH (p:Partition {tenant_id: $tenant_id, knowledge_space_id: $knowledge_space_id}) DELETE p"
	params := map[string]any{
		"tenant_id":          tenantID,
		"knowledge_space_id": knowledgeSpaceID,
	}

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to delete partitions of %s: %w", knowledgeSpaceID, err)
	}

	c.logger.Info("Deleted partitions",
		zap.String("tenant_id", tenantID),
		zap.String("knowledge_space_id", knowledgeSpaceID))
	return nil
}

// HealthCheck performs a basic health check on the Neo4j connection
func (c *Neo4jClient) HealthCheck(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}
