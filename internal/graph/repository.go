// Package graph persists chain data as a directed graph in Neo4j. All writes
// are merge-based so re-importing a block is a no-op on graph state.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type (
	// Metrics records metrics for graph store operations.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Repository owns the Neo4j driver, schema setup, and block import writes.
type Repository struct {
	driver  neo4j.DriverWithContext
	metrics Metrics
}

// NewRepository connects a Repository to the given bolt URI.
func NewRepository(uri, username, password string, metrics Metrics) (*Repository, error) {
	if uri == "" {
		return nil, errors.New("graph uri is required")
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create graph driver: %w", err)
	}

	return &Repository{driver: driver, metrics: metrics}, nil
}

// Ping verifies the graph store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("verify_connectivity", err, start)
	}()

	if err = r.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("verify graph connectivity: %w", err)
	}
	return nil
}

// Close releases the driver and its connection pool.
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
