// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package store

import (
	"context"
	"regexp"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// Well-known collection names.
const (
	TextCollection  = "artwork_text_embeddings"
	ImageCollection = "artwork_image_embeddings"
)

// Distance is the index-level similarity metric of a collection.
type Distance string

const (
	DistanceCosine Distance = "cosine"
	DistanceL2     Distance = "l2"
)

// Valid reports whether d is a supported metric.
func (d Distance) Valid() bool {
	return d == DistanceCosine || d == DistanceL2
}

// Entry is one stored item of a collection.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
	// Document is the optional source text the vector was computed from.
	Document string
}

// Result is one nearest-neighbour hit. Rank is 1-based; Distance is in the
// collection's metric, lower is closer.
type Result struct {
	ID       string
	Rank     int
	Distance float64
	Metadata map[string]any
	Document string
}

// Include selects the optional parts returned by Get.
type Include uint8

const (
	IncludeMetadata Include = 1 << iota
	IncludeDocuments
	IncludeVectors

	IncludeAll = IncludeMetadata | IncludeDocuments | IncludeVectors
)

// Has reports whether all bits of other are set.
func (i Include) Has(other Include) bool { return i&other == other }

// GetRequest reads entries either by id or as a page in insertion order.
// When IDs is non-empty Limit and Offset are ignored; unknown ids are
// skipped.
type GetRequest struct {
	IDs     []string
	Limit   int
	Offset  int
	Include Include
}

// CollectionInfo describes a collection.
type CollectionInfo struct {
	Name       string
	Dimensions int
	Distance   Distance
}

// Collection is an independently addressable vector index keyed by id.
type Collection interface {
	Info() CollectionInfo
	// Upsert inserts or atomically replaces the entry with the same id.
	Upsert(ctx context.Context, e Entry) error
	Get(ctx context.Context, req GetRequest) ([]Entry, error)
	// Query returns at most k entries nearest to vector, closest first.
	Query(ctx context.Context, vector []float32, k int) ([]Result, error)
	Count(ctx context.Context) (int, error)
}

// CollectionOptions control Store.Collection.
type CollectionOptions struct {
	// Dimensions creates the collection when it does not exist. Zero opens
	// an existing collection only.
	Dimensions int
}

// Store owns a set of collections sharing one backend and metric.
type Store interface {
	Collection(ctx context.Context, name string, opts CollectionOptions) (Collection, error)
	Collections(ctx context.Context) ([]CollectionInfo, error)
	Close() error
}

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateName checks that a collection name is safe to embed in DDL.
func ValidateName(name string) error {
	if !collectionName.MatchString(name) {
		return artlenserr.New(artlenserr.CodeStoreInvalidInput,
			"collection name must match [a-z][a-z0-9_]*", artlenserr.FieldCollection(name))
	}
	return nil
}

// ValidateEntry checks an entry against a collection's dimension.
func ValidateEntry(info CollectionInfo, e Entry) error {
	if e.ID == "" {
		return artlenserr.New(artlenserr.CodeStoreInvalidInput, "entry: ID is required",
			artlenserr.FieldCollection(info.Name))
	}
	return ValidateVector(info, e.Vector)
}

// ValidateVector checks a vector's length against the collection.
func ValidateVector(info CollectionInfo, v []float32) error {
	if len(v) != info.Dimensions {
		return artlenserr.New(artlenserr.CodeStoreDimensionInvalid, "vector dimension mismatch",
			artlenserr.FieldCollection(info.Name), artlenserr.Field("want", info.Dimensions),
			artlenserr.Field("got", len(v)))
	}
	return nil
}

// NotFound is returned when a collection does not exist.
func NotFound(name string) error {
	return artlenserr.New(artlenserr.CodeStoreCollectionNotFound, "collection not found",
		artlenserr.FieldCollection(name))
}

// CheckDimensions reconciles a requested dimension with an existing
// collection.
func CheckDimensions(info CollectionInfo, opts CollectionOptions) error {
	if opts.Dimensions != 0 && opts.Dimensions != info.Dimensions {
		return artlenserr.New(artlenserr.CodeStoreDimensionInvalid,
			"collection exists with a different dimension",
			artlenserr.FieldCollection(info.Name), artlenserr.Field("existing", info.Dimensions),
			artlenserr.Field("requested", opts.Dimensions))
	}
	return nil
}
