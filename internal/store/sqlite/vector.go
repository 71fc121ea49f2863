// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// maxK is the largest k a vec0 KNN query accepts.
const maxK = 4096

// Compile-time interface checks.
var (
	_ store.Store      = (*Store)(nil)
	_ store.Collection = (*Collection)(nil)
)

// Store keeps every collection in one SQLite database: a vec0 virtual
// table for vectors and a companion table for metadata and documents.
type Store struct {
	db       *sql.DB
	distance store.Distance

	mu          sync.Mutex
	collections map[string]*Collection
}

// NewStore opens (or creates) the database at dbPath.
func NewStore(dbPath string, distance store.Distance) (*Store, error) {
	if distance == "" {
		distance = store.DistanceCosine
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "creating database directory",
				artlenserr.Field("path", dir))
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "opening sqlite db")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "pinging sqlite db",
			artlenserr.Field("path", dbPath))
	}

	const catalogDDL = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL,
	distance   TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
)`
	if _, err := db.Exec(catalogDDL); err != nil {
		_ = db.Close()
		return nil, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "creating collections table")
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

	info, found, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	switch {
	case found:
		if err := store.CheckDimensions(info, opts); err != nil {
			return nil, err
		}
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

func (s *Store) lookup(ctx context.Context, name string) (store.CollectionInfo, bool, error) {
	info := store.CollectionInfo{Name: name}
	var distance string
	err := s.db.QueryRowContext(ctx, `SELECT dimensions, distance FROM collections WHERE name = ?`, name).
		Scan(&info.Dimensions, &distance)
	if err == sql.ErrNoRows {
		return info, false, nil
	}
	if err != nil {
		return info, false, artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "reading collection catalog",
			artlenserr.FieldCollection(name))
	}
	info.Distance = store.Distance(distance)
	return info, true, nil
}

func (s *Store) create(ctx context.Context, info store.CollectionInfo) error {
	metric := ""
	if info.Distance == store.DistanceCosine {
		metric = " distance_metric=cosine"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d]%s)`,
			vecTable(info.Name), info.Dimensions, metric),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	metadata   TEXT NOT NULL DEFAULT '{}',
	document   TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
)`, entryTable(info.Name)),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return artlenserr.Wrap(err, artlenserr.CodeStoreDatabaseFailure, "creating collection tables",
				artlenserr.FieldCollection(info.Name))
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO collections(name, dimensions, distance) VALUES (?, ?, ?)`,
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
	rows, err := s.db.QueryContext(ctx, `SELECT name, dimensions, distance FROM collections ORDER BY name`)
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

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection is one vec0 table plus its entries table.
type Collection struct {
	db   *sql.DB
	info store.CollectionInfo
}

func (c *Collection) Info() store.CollectionInfo { return c.info }

// Upsert replaces the vector and metadata of e.ID in one transaction.
func (c *Collection) Upsert(ctx context.Context, e store.Entry) error {
	if err := store.ValidateEntry(c.info, e); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(e.Vector)
	if err != nil {
		return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "serializing embedding", e.ID)
	}
	metaJSON := []byte("{}")
	if len(e.Metadata) > 0 {
		if metaJSON, err = json.Marshal(e.Metadata); err != nil {
			return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "marshalling metadata", e.ID)
		}
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "beginning transaction", e.ID)
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+vecTable(c.info.Name)+` WHERE id = ?`, e.ID); err != nil {
		return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "deleting existing vector", e.ID)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+vecTable(c.info.Name)+`(id, embedding) VALUES (?, ?)`, e.ID, blob); err != nil {
		return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "inserting vector", e.ID)
	}

	metaQ := `INSERT INTO ` + entryTable(c.info.Name) + `(id, metadata, document) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata, document = excluded.document, updated_at = datetime('now')`
	if _, err := tx.ExecContext(ctx, metaQ, e.ID, string(metaJSON), e.Document); err != nil {
		return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "upserting metadata", e.ID)
	}

	if err := tx.Commit(); err != nil {
		return c.fail(err, artlenserr.CodeStoreCollectionUpsertFailure, "committing upsert", e.ID)
	}
	return nil
}

func (c *Collection) Get(ctx context.Context, req store.GetRequest) ([]store.Entry, error) {
	var (
		q    string
		args []any
	)
	if len(req.IDs) > 0 {
		q = `SELECT id, metadata, document FROM ` + entryTable(c.info.Name) +
			` WHERE id IN (` + placeholders(len(req.IDs)) + `)`
		for _, id := range req.IDs {
			args = append(args, id)
		}
	} else {
		limit := -1
		if req.Limit > 0 {
			limit = req.Limit
		}
		q = `SELECT id, metadata, document FROM ` + entryTable(c.info.Name) + ` ORDER BY rowid LIMIT ? OFFSET ?`
		args = append(args, limit, max(req.Offset, 0))
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "reading entries", "")
	}
	defer func() { _ = rows.Close() }()

	var entries []store.Entry
	for rows.Next() {
		var (
			e       store.Entry
			metaStr string
		)
		if err := rows.Scan(&e.ID, &metaStr, &e.Document); err != nil {
			return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "scanning entry", "")
		}
		if req.Include.Has(store.IncludeMetadata) {
			if e.Metadata, err = decodeMeta(metaStr); err != nil {
				return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "unmarshalling metadata", e.ID)
			}
		}
		if !req.Include.Has(store.IncludeDocuments) {
			e.Document = ""
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "iterating entries", "")
	}
	_ = rows.Close()

	if req.Include.Has(store.IncludeVectors) {
		for i := range entries {
			if entries[i].Vector, err = c.vector(ctx, entries[i].ID); err != nil {
				return nil, err
			}
		}
	}
	if len(req.IDs) > 0 {
		entries = inRequestOrder(entries, req.IDs)
	}
	return entries, nil
}

func (c *Collection) vector(ctx context.Context, id string) ([]float32, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT embedding FROM `+vecTable(c.info.Name)+` WHERE id = ?`, id).Scan(&blob)
	if err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "reading vector", id)
	}
	return deserializeFloat32(blob), nil
}

// Query performs a k-nearest-neighbour search joined with metadata.
// Distance is in the collection's metric; 0.0 is an exact match.
func (c *Collection) Query(ctx context.Context, vector []float32, k int) ([]store.Result, error) {
	if err := store.ValidateVector(c.info, vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	k = min(k, maxK)

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "serializing query vector", "")
	}

	q := `SELECT v.id, v.distance, COALESCE(e.metadata, '{}'), COALESCE(e.document, '')
FROM ` + vecTable(c.info.Name) + ` v
LEFT JOIN ` + entryTable(c.info.Name) + ` e ON e.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := c.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "searching vectors", "")
	}
	defer func() { _ = rows.Close() }()

	var results []store.Result
	for rows.Next() {
		var (
			r       store.Result
			metaStr string
		)
		if err := rows.Scan(&r.ID, &r.Distance, &metaStr, &r.Document); err != nil {
			return nil, c.fail(err, artlenserr.CodeStoreCollectionQueryFailure, "scanning vector result", "")
		}
		if r.Metadata, err = decodeMeta(metaStr); err != nil {
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
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+entryTable(c.info.Name)).Scan(&n); err != nil {
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

func vecTable(name string) string   { return name + "_vec" }
func entryTable(name string) string { return name + "_entries" }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func decodeMeta(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deserializeFloat32 is the inverse of sqlite_vec.SerializeFloat32.
func deserializeFloat32(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}

func inRequestOrder(entries []store.Entry, ids []string) []store.Entry {
	byID := make(map[string]store.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	out := make([]store.Entry, 0, len(entries))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
			delete(byID, id)
		}
	}
	return out
}
