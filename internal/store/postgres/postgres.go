// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package postgres stores collections in PostgreSQL with the pgvector
// extension, one table per collection.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

const catalogTable = "artlens_collections"

func init() {
	store.RegisterBackend("postgres", func(cfg *store.StorageConfig) (store.Store, error) {
		if cfg.DSN == "" {
			return nil, artlenserr.New(artlenserr.CodeStoreInvalidInput, "postgres backend requires storage.dsn")
		}
		return Open(cfg.DSN, cfg.Distance)
	})
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.Collection = (*Collection)(nil)
)

// Store is a set of pgvector-backed collections.
type Store struct {
	db       *sql.DB
	distance store.Distance

	mu          sync.Mutex
	collections map[string]*Collection
}

// Open connects to Postgres and ensures the extension and catalog exist.
func Open(dsn string, distance store.Distance) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "opening postgres")
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s, err := NewFromDB(context.Background(), db, distance)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB reuses an existing connection pool.
func NewFromDB(ctx context.Context, db *sql.DB, distance store.Distance) (*Store, error) {
	if distance == "" {
		distance = store.DistanceCosine
	}
	ddl := `CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS ` + catalogTable + ` (
  name       text PRIMARY KEY,
  dimensions integer NOT NULL,
  distance   text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "creating collection catalog")
	}
	return &Store{db: db, distance: distance, collections: map[string]*Collection{}}, nil
}

func (s *Store) Collection(ctx context.Context, name string, opts store.CollectionOptions) (store.Collection, error) {
	if err := store.ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		if err := store.CheckDimensions(c.info, opts); err != nil {
			return nil, err
		}
		return c, nil
	}

	info := store.CollectionInfo{Name: name}
	var distance string
	err := s.db.QueryRowContext(ctx, `SELECT dimensions, distance FROM `+catalogTable+` WHERE name = $1`, name).
		Scan(&info.Dimensions, &distance)
	switch {
	case err == nil:
		info.Distance = store.Distance(distance)
		if err := store.CheckDimensions(info, opts); err != nil {
			return nil, err
		}
	case err != sql.ErrNoRows:
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "reading collection catalog",
			artlenserr.FieldCollection(name))
	case opts.Dimensions <= 0:
		return nil, store.NotFound(name)
	default:
		info = store.CollectionInfo{Name: name, Dimensions: opts.Dimensions, Distance: s.distance}
		if err := s.create(ctx, info); err != nil {
			return nil, err
		}
	}

	c := &Collection{db: s.db, info: info}
	s.collections[name] = c
	return c, nil
}

func (s *Store) create(ctx context.Context, info store.CollectionInfo) error {
	table := pq.QuoteIdentifier(info.Name)
	index := pq.QuoteIdentifier(info.Name + "_embedding_idx")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  seq        bigserial,
  id         text PRIMARY KEY,
  embedding  vector(%d) NOT NULL,
  metadata   jsonb NOT NULL DEFAULT '{}',
  document   text NOT NULL DEFAULT '',
  updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s);`,
		table, info.Dimensions, index, table, opsClass(info.Distance))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "creating collection table",
			artlenserr.FieldCollection(info.Name))
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+catalogTable+`(name, dimensions, distance) VALUES ($1, $2, $3)`,
		info.Name, info.Dimensions, string(info.Distance)); err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "registering collection",
			artlenserr.FieldCollection(info.Name))
	}
	if err := tx.Commit(); err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "committing collection",
			artlenserr.FieldCollection(info.Name))
	}
	return nil
}

func (s *Store) Collections(ctx context.Context) ([]store.CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, dimensions, distance FROM `+catalogTable+` ORDER BY name`)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "listing collections")
	}
	defer func() { _ = rows.Close() }()

	var out []store.CollectionInfo
	for rows.Next() {
		var (
			info     store.CollectionInfo
			distance string
		)
		if err := rows.Scan(&info.Name, &info.Dimensions, &distance); err != nil {
			return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "scanning collection")
		}
		info.Distance = store.Distance(distance)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "iterating collections")
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Collection is one pgvector table.
type Collection struct {
	db   *sql.DB
	info store.CollectionInfo
}

func (c *Collection) Info() store.CollectionInfo { return c.info }

func (c *Collection) table() string { return pq.QuoteIdentifier(c.info.Name) }

func (c *Collection) Upsert(ctx context.Context, e store.Entry) error {
	if err := store.ValidateEntry(c.info, e); err != nil {
		return err
	}
	metaJSON := []byte("{}")
	if len(e.Metadata) > 0 {
		var err error
		if metaJSON, err = json.Marshal(e.Metadata); err != nil {
			return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "marshalling metadata", e.ID)
		}
	}

	q := `INSERT INTO ` + c.table() + ` (id, embedding, metadata, document) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
  embedding = EXCLUDED.embedding,
  metadata = EXCLUDED.metadata,
  document = EXCLUDED.document,
  updated_at = now()`
	if _, err := c.db.ExecContext(ctx, q, e.ID, pgvector.NewVector(e.Vector), string(metaJSON), e.Document); err != nil {
		return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "upserting entry", e.ID)
	}
	return nil
}

func (c *Collection) Get(ctx context.Context, req store.GetRequest) ([]store.Entry, error) {
	var (
		q    string
		args []any
	)
	if len(req.IDs) > 0 {
		q = `SELECT id, embedding, metadata, document FROM ` + c.table() + ` WHERE id = ANY($1)
ORDER BY array_position($1::text[], id)`
		args = append(args, pq.Array(req.IDs))
	} else {
		q = `SELECT id, embedding, metadata, document FROM ` + c.table() + ` ORDER BY seq OFFSET $1`
		args = append(args, max(req.Offset, 0))
		if req.Limit > 0 {
			q += ` LIMIT $2`
			args = append(args, req.Limit)
		}
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "reading entries", "")
	}
	defer func() { _ = rows.Close() }()

	var out []store.Entry
	for rows.Next() {
		var (
			e    store.Entry
			vec  pgvector.Vector
			meta []byte
		)
		if err := rows.Scan(&e.ID, &vec, &meta, &e.Document); err != nil {
			return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "scanning entry", "")
		}
		if req.Include.Has(store.IncludeVectors) {
			e.Vector = vec.Slice()
		}
		if req.Include.Has(store.IncludeMetadata) {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "unmarshalling metadata", e.ID)
			}
		}
		if !req.Include.Has(store.IncludeDocuments) {
			e.Document = ""
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "iterating entries", "")
	}
	return out, nil
}

func (c *Collection) Query(ctx context.Context, vector []float32, k int) ([]store.Result, error) {
	if err := store.ValidateVector(c.info, vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	op := operator(c.info.Distance)
	q := `SELECT id, embedding ` + op + ` $1 AS distance, metadata, document
FROM ` + c.table() + `
ORDER BY embedding ` + op + ` $1, id
LIMIT $2`

	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "searching vectors", "")
	}
	defer func() { _ = rows.Close() }()

	var results []store.Result
	for rows.Next() {
		var (
			r    store.Result
			meta []byte
		)
		if err := rows.Scan(&r.ID, &r.Distance, &meta, &r.Document); err != nil {
			return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "scanning vector result", "")
		}
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "unmarshalling metadata", r.ID)
		}
		r.Rank = len(results) + 1
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "iterating vector results", "")
	}
	return results, nil
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT count(*) FROM `+c.table()).Scan(&n); err != nil {
		return 0, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "counting entries", "")
	}
	return n, nil
}

func (c *Collection) fail(err error, code artlenserr.Code, msg, id string) error {
	fields := []artlenserr.Attr{artlenserr.FieldCollection(c.info.Name)}
	if id != "" {
		fields = append(fields, artlenserr.FieldArtworkID(id))
	}
	return artlenserr.Wrap(err, code, msg, fields...)
}

// operator is the pgvector distance operator for a metric.
func operator(d store.Distance) string {
	if d == store.DistanceL2 {
		return "<->"
	}
	return "<=>"
}

func opsClass(d store.Distance) string {
	if d == store.DistanceL2 {
		return "vector_l2_ops"
	}
	return "vector_cosine_ops"
}
