// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/OlesyaDud/smart-notes/internal/index"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// maxTopK is the largest k vec0 accepts in a KNN query.
const maxTopK = 4096

// Collection implements index.Collection for one SQLite collection.
type Collection struct {
	db   *sql.DB
	name string

	mu   sync.Mutex
	spec *index.CollectionSpec
}

// describe returns the collection parameters, caching them once the
// collection has been found. Collections are never dropped or reshaped.
func (c *Collection) describe(ctx context.Context, code snerr.Code) (index.CollectionSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.spec != nil {
		return *c.spec, nil
	}

	spec, err := lookup(ctx, c.db, c.name)
	if errors.Is(err, sql.ErrNoRows) {
		return spec, snerr.New(snerr.CodeIndexCollectionNotFound, "collection not found",
			snerr.FieldCollection(c.name))
	}
	if err != nil {
		return spec, index.WrapOp(ctx, err, code, "reading collection registry", snerr.FieldCollection(c.name))
	}

	c.spec = &spec
	return spec, nil
}

// Upsert writes the vector and its metadata in one transaction.
func (c *Collection) Upsert(ctx context.Context, rec index.Record) error {
	spec, err := c.describe(ctx, snerr.CodeIndexUpsertFailure)
	if err != nil {
		return err
	}
	if rec.ID == "" {
		return snerr.New(snerr.CodeIndexRequestInvalid, "record id is required", snerr.FieldCollection(c.name))
	}
	if err := index.ValidateVector(rec.Vector, spec.Dimension); err != nil {
		return snerr.With(err, snerr.FieldCollection(c.name), snerr.FieldNoteID(rec.ID))
	}

	blob, err := sqlite_vec.SerializeFloat32(rec.Vector)
	if err != nil {
		return snerr.Wrap(err, snerr.CodeIndexRequestInvalid, "serializing vector")
	}

	metaJSON := []byte("{}")
	if len(rec.Metadata) > 0 {
		metaJSON, err = json.Marshal(rec.Metadata)
		if err != nil {
			return snerr.Wrap(err, snerr.CodeIndexRequestInvalid, "marshalling metadata")
		}
	}

	vecTable, metaTable := tableNames(c.name)
	fields := []snerr.Attr{snerr.FieldCollection(c.name), snerr.FieldNoteID(rec.ID)}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return index.WrapOp(ctx, err, snerr.CodeIndexUpsertFailure, "beginning transaction", fields...)
	}
	defer func() { _ = tx.Rollback() }()

	// vec0 does not support ON CONFLICT; delete first for upsert.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, vecTable), rec.ID); err != nil {
		return index.WrapOp(ctx, err, snerr.CodeIndexUpsertFailure, "deleting existing vector", fields...)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q(id, embedding) VALUES (?, ?)`, vecTable),
		rec.ID, blob); err != nil {
		return index.WrapOp(ctx, err, snerr.CodeIndexUpsertFailure, "inserting vector", fields...)
	}

	// The seq of an existing record is preserved on replace.
	metaQ := fmt.Sprintf(`INSERT INTO %q(id, metadata) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`, metaTable)
	if _, err := tx.ExecContext(ctx, metaQ, rec.ID, string(metaJSON)); err != nil {
		return index.WrapOp(ctx, err, snerr.CodeIndexUpsertFailure, "upserting metadata", fields...)
	}

	if err := tx.Commit(); err != nil {
		return index.WrapOp(ctx, err, snerr.CodeIndexUpsertFailure, "committing upsert", fields...)
	}
	return nil
}

// Query performs a k-nearest-neighbour search. Scores are converted from
// vec0 distances: 1-d for cosine, 1/(1+d) for euclidean.
func (c *Collection) Query(ctx context.Context, q index.Query) ([]index.Match, error) {
	spec, err := c.describe(ctx, snerr.CodeIndexQueryFailure)
	if err != nil {
		return nil, err
	}
	if q.TopK <= 0 {
		return nil, snerr.New(snerr.CodeIndexRequestInvalid, "top_k must be positive", snerr.FieldCollection(c.name))
	}
	if err := index.ValidateVector(q.Vector, spec.Dimension); err != nil {
		return nil, snerr.With(err, snerr.FieldCollection(c.name))
	}

	k := min(q.TopK, maxTopK)

	blob, err := sqlite_vec.SerializeFloat32(q.Vector)
	if err != nil {
		return nil, snerr.Wrap(err, snerr.CodeIndexRequestInvalid, "serializing query vector")
	}

	vecTable, metaTable := tableNames(c.name)
	query := fmt.Sprintf(`SELECT v.id, v.distance, COALESCE(m.seq, 0), COALESCE(m.metadata, '{}')
FROM %q v
LEFT JOIN %q m ON m.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`, vecTable, metaTable)

	rows, err := c.db.QueryContext(ctx, query, blob, k)
	if err != nil {
		return nil, index.WrapOp(ctx, err, snerr.CodeIndexQueryFailure, "searching vectors", snerr.FieldCollection(c.name))
	}
	defer func() { _ = rows.Close() }()

	matches := make([]index.Match, 0, k)
	for rows.Next() {
		var (
			m        index.Match
			distance float64
			metaStr  string
		)
		if err := rows.Scan(&m.ID, &distance, &m.Seq, &metaStr); err != nil {
			return nil, index.WrapOp(ctx, err, snerr.CodeIndexQueryFailure, "scanning vector result")
		}
		m.Score = index.ScoreFromDistance(spec.Metric, distance)

		if q.IncludeMetadata && metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &m.Metadata); err != nil {
				return nil, snerr.Wrap(err, snerr.CodeIndexQueryFailure, "unmarshalling metadata",
					snerr.FieldNoteID(m.ID))
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, index.WrapOp(ctx, err, snerr.CodeIndexQueryFailure, "iterating vector results")
	}

	index.SortMatches(matches)
	return matches, nil
}

// DescribeStats implements index.Index.
func (c *Collection) DescribeStats(ctx context.Context) (index.Stats, error) {
	spec, err := c.describe(ctx, snerr.CodeIndexStatsFailure)
	if err != nil {
		return index.Stats{}, err
	}

	_, metaTable := tableNames(c.name)
	stats := index.Stats{Dimension: spec.Dimension, Metric: spec.Metric}
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, metaTable)).
		Scan(&stats.TotalCount); err != nil {
		return index.Stats{}, index.WrapOp(ctx, err, snerr.CodeIndexStatsFailure, "counting records",
			snerr.FieldCollection(c.name))
	}
	return stats, nil
}

// NextSequence returns the next value of the collection's id sequence. The
// first call seeds the sequence from the current record count.
func (c *Collection) NextSequence(ctx context.Context) (uint64, error) {
	if _, err := c.describe(ctx, snerr.CodeIndexSequenceFailure); err != nil {
		return 0, err
	}

	_, metaTable := tableNames(c.name)
	fields := []snerr.Attr{snerr.FieldCollection(c.name)}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, index.WrapOp(ctx, err, snerr.CodeIndexSequenceFailure, "beginning transaction", fields...)
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`UPDATE collections
SET next_seq = COALESCE(next_seq, (SELECT COUNT(*) FROM %q)) + 1
WHERE name = ?
RETURNING next_seq - 1`, metaTable)

	var seq int64
	if err := tx.QueryRowContext(ctx, q, c.name).Scan(&seq); err != nil {
		return 0, index.WrapOp(ctx, err, snerr.CodeIndexSequenceFailure, "advancing sequence", fields...)
	}

	if err := tx.Commit(); err != nil {
		return 0, index.WrapOp(ctx, err, snerr.CodeIndexSequenceFailure, "committing sequence", fields...)
	}
	return uint64(seq), nil
}
