package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// schemaStatements create the uniqueness constraints the import semantics
// depend on, plus lookup indexes for downstream readers. All are idempotent.
var schemaStatements = []string{
	`CREATE CONSTRAINT block_hash_unique IF NOT EXISTS
	 FOR (b:Block) REQUIRE b.hash IS UNIQUE`,
	`CREATE CONSTRAINT transaction_txid_unique IF NOT EXISTS
	 FOR (t:Transaction) REQUIRE t.txid IS UNIQUE`,
	`CREATE CONSTRAINT address_address_unique IF NOT EXISTS
	 FOR (a:Address) REQUIRE a.address IS UNIQUE`,
	`CREATE INDEX block_height IF NOT EXISTS
	 FOR (b:Block) ON (b.height)`,
	`CREATE INDEX transaction_block_hash IF NOT EXISTS
	 FOR (t:Transaction) ON (t.block_hash)`,
	`CREATE INDEX address_first_seen IF NOT EXISTS
	 FOR (a:Address) ON (a.first_seen)`,
}

// SetupSchema creates the constraints and indexes. It must complete before
// any block import; callers treat failure as fatal because the uniqueness
// constraints are what make merge writes idempotent.
func (r *Repository) SetupSchema(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("setup_schema", err, start)
	}()

	for _, stmt := range schemaStatements {
		if _, err = neo4j.ExecuteQuery(ctx, r.driver, stmt, nil,
			neo4j.EagerResultTransformer); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
