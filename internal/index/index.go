// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package index

import (
	"context"
	"io"
)

// Metric is the similarity measure a collection is built with.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricEuclidean
}

// CollectionSpec describes a named vector collection.
type CollectionSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// Record is a single vector with its string metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Query is a top-k nearest neighbour request.
type Query struct {
	Vector          []float32
	TopK            int
	IncludeMetadata bool
}

// Match is one query hit. Score is higher-is-more-similar regardless of
// metric. Seq is the record's insertion ordinal when the backend tracks one,
// zero otherwise.
type Match struct {
	ID       string
	Score    float64
	Seq      int64
	Metadata map[string]string
}

// Stats summarises a collection.
type Stats struct {
	TotalCount int64
	Dimension  int
	Metric     Metric
}

// Provisioner creates collections.
type Provisioner interface {
	// EnsureCollection creates the collection if it does not exist. It
	// reports whether a new collection was created and fails with a
	// conflict when a collection of the same name has different parameters.
	EnsureCollection(ctx context.Context, spec CollectionSpec) (created bool, err error)
}

// Index is the data-plane access to one collection.
type Index interface {
	// Upsert writes the vector and its metadata atomically, replacing any
	// record with the same id.
	Upsert(ctx context.Context, rec Record) error
	// Query returns at most q.TopK matches in descending score order.
	Query(ctx context.Context, q Query) ([]Match, error)
	DescribeStats(ctx context.Context) (Stats, error)
}

// Sequencer hands out strictly increasing numbers that are unique for the
// lifetime of a collection, including across processes sharing the store.
type Sequencer interface {
	NextSequence(ctx context.Context) (uint64, error)
}

// Collection is a handle to one named collection of a Backend.
type Collection interface {
	Index
	Sequencer
}

// Backend is a durable store hosting any number of collections.
type Backend interface {
	Provisioner
	io.Closer

	// Collection returns a handle for name. Operations on a handle whose
	// collection has not been provisioned fail with a not-found code.
	Collection(name string) Collection
}
