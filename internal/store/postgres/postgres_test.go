// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lib/pq"

	"github.com/artlens/artlens/internal/store"
	"github.com/artlens/artlens/internal/store/postgres"
	"github.com/artlens/artlens/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dsnEnv names a Postgres database with pgvector available to tests.
const dsnEnv = "ARTLENS_TEST_POSTGRES_DSN"

var schemaSeq atomic.Int64

func TestOperator(t *testing.T) {
	assert.Equal(t, "<=>", postgres.Operator(store.DistanceCosine))
	assert.Equal(t, "<->", postgres.Operator(store.DistanceL2))
	assert.Equal(t, "vector_cosine_ops", postgres.OpsClass(""))
	assert.Equal(t, "vector_l2_ops", postgres.OpsClass(store.DistanceL2))
}

func TestRegisteredBackend_RequiresDSN(t *testing.T) {
	_, err := store.Open(&store.StorageConfig{Backend: "postgres"})
	require.Error(t, err)
}

// isolated opens a store whose tables live in a fresh schema so subtests
// do not see each other's collections.
func isolated(t *testing.T, dsn string) store.Store {
	t.Helper()
	ctx := context.Background()
	schema := fmt.Sprintf("artlens_test_%d_%d", os.Getpid(), schemaSeq.Add(1))

	admin, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	_, err = admin.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	require.NoError(t, err)
	_, err = admin.ExecContext(ctx, `CREATE SCHEMA `+pq.QuoteIdentifier(schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.ExecContext(ctx, `DROP SCHEMA `+pq.QuoteIdentifier(schema)+` CASCADE`)
		_ = admin.Close()
	})

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	s, err := postgres.Open(dsn+sep+"search_path="+schema+",public", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	storetest.Run(t, func(t *testing.T) store.Store { return isolated(t, dsn) })
}
