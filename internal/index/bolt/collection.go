// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package bolt

import (
	"context"
	"encoding/json"
	"maps"

	"go.etcd.io/bbolt"

	"github.com/OlesyaDud/smart-notes/internal/index"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

// Collection implements index.Collection for one bolt collection.
type Collection struct {
	db   *bbolt.DB
	name string
}

// bucket returns the collection bucket or a not-found error.
func (c *Collection) bucket(tx *bbolt.Tx) (*bbolt.Bucket, index.CollectionSpec, error) {
	b := tx.Bucket(bucketCollections).Bucket([]byte(c.name))
	if b == nil {
		return nil, index.CollectionSpec{}, snerr.New(snerr.CodeIndexCollectionNotFound, "collection not found",
			snerr.FieldCollection(c.name))
	}
	spec, err := readSpec(b, c.name)
	return b, spec, err
}

// Upsert writes the vector and metadata as a single record in one
// transaction. Replacing an existing id keeps its insertion ordinal.
func (c *Collection) Upsert(ctx context.Context, rec index.Record) error {
	if err := ctx.Err(); err != nil {
		return index.WrapOp(ctx, err, snerr.CodeIndexUpsertFailure, "upserting record")
	}
	if rec.ID == "" {
		return snerr.New(snerr.CodeIndexRequestInvalid, "record id is required", snerr.FieldCollection(c.name))
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, spec, err := c.bucket(tx)
		if err != nil {
			return err
		}
		if err := index.ValidateVector(rec.Vector, spec.Dimension); err != nil {
			return snerr.With(err, snerr.FieldCollection(c.name), snerr.FieldNoteID(rec.ID))
		}

		records := b.Bucket(bucketRecords)
		stored := storedVector{Vector: rec.Vector, Metadata: rec.Metadata}

		if prev := records.Get([]byte(rec.ID)); prev != nil {
			var old storedVector
			if err := json.Unmarshal(prev, &old); err == nil {
				stored.Seq = old.Seq
			}
		}
		if stored.Seq == 0 {
			seq, err := records.NextSequence()
			if err != nil {
				return snerr.Wrap(err, snerr.CodeIndexUpsertFailure, "allocating insertion ordinal")
			}
			stored.Seq = int64(seq)
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return snerr.Wrap(err, snerr.CodeIndexRequestInvalid, "marshalling record")
		}
		if err := records.Put([]byte(rec.ID), data); err != nil {
			return snerr.Wrap(err, snerr.CodeIndexUpsertFailure, "writing record",
				snerr.FieldCollection(c.name), snerr.FieldNoteID(rec.ID))
		}

		// Cancellation during the write rolls the transaction back.
		return ctx.Err()
	})
	if err != nil && snerr.CodeOf(err) == "" {
		return index.WrapOp(ctx, err, snerr.CodeIndexUpsertFailure, "upserting record", snerr.FieldCollection(c.name))
	}
	return err
}

// Query scans the collection and returns the q.TopK best matches.
func (c *Collection) Query(ctx context.Context, q index.Query) ([]index.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, index.WrapOp(ctx, err, snerr.CodeIndexQueryFailure, "querying collection")
	}
	if q.TopK <= 0 {
		return nil, snerr.New(snerr.CodeIndexRequestInvalid, "top_k must be positive", snerr.FieldCollection(c.name))
	}

	var matches []index.Match
	err := c.db.View(func(tx *bbolt.Tx) error {
		b, spec, err := c.bucket(tx)
		if err != nil {
			return err
		}
		if err := index.ValidateVector(q.Vector, spec.Dimension); err != nil {
			return snerr.With(err, snerr.FieldCollection(c.name))
		}

		return b.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return snerr.Wrap(err, snerr.CodeIndexQueryFailure, "decoding record", snerr.FieldNoteID(string(k)))
			}
			if len(stored.Vector) != spec.Dimension {
				return nil
			}

			m := index.Match{
				ID:    string(k),
				Score: index.Similarity(spec.Metric, q.Vector, stored.Vector),
				Seq:   stored.Seq,
			}
			if q.IncludeMetadata && len(stored.Metadata) > 0 {
				m.Metadata = maps.Clone(stored.Metadata)
			}
			matches = append(matches, m)
			return nil
		})
	})
	if err != nil {
		if snerr.CodeOf(err) == "" {
			err = index.WrapOp(ctx, err, snerr.CodeIndexQueryFailure, "querying collection", snerr.FieldCollection(c.name))
		}
		return nil, err
	}

	index.SortMatches(matches)
	if len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	if matches == nil {
		matches = []index.Match{}
	}
	return matches, nil
}

// DescribeStats implements index.Index.
func (c *Collection) DescribeStats(ctx context.Context) (index.Stats, error) {
	if err := ctx.Err(); err != nil {
		return index.Stats{}, index.WrapOp(ctx, err, snerr.CodeIndexStatsFailure, "describing collection")
	}

	var stats index.Stats
	err := c.db.View(func(tx *bbolt.Tx) error {
		b, spec, err := c.bucket(tx)
		if err != nil {
			return err
		}
		stats = index.Stats{
			TotalCount: int64(countKeys(b.Bucket(bucketRecords))),
			Dimension:  spec.Dimension,
			Metric:     spec.Metric,
		}
		return nil
	})
	if err != nil && snerr.CodeOf(err) == "" {
		err = snerr.Wrap(err, snerr.CodeIndexStatsFailure, "describing collection", snerr.FieldCollection(c.name))
	}
	return stats, err
}

// NextSequence returns the next id sequence value. The first call seeds the
// sequence from the current record count.
func (c *Collection) NextSequence(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, index.WrapOp(ctx, err, snerr.CodeIndexSequenceFailure, "advancing sequence")
	}

	var seq uint64
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, _, err := c.bucket(tx)
		if err != nil {
			return err
		}

		ids := b.Bucket(bucketIDs)
		if ids.Get(keySeeded) == nil {
			count := countKeys(b.Bucket(bucketRecords))
			if err := ids.SetSequence(count); err != nil {
				return err
			}
			if err := ids.Put(keySeeded, encodeUint64(count)); err != nil {
				return err
			}
		}

		next, err := ids.NextSequence()
		if err != nil {
			return err
		}
		seq = next - 1
		return nil
	})
	if err != nil {
		if snerr.CodeOf(err) == "" {
			err = snerr.Wrap(err, snerr.CodeIndexSequenceFailure, "advancing sequence", snerr.FieldCollection(c.name))
		}
		return 0, err
	}
	return seq, nil
}

func countKeys(b *bbolt.Bucket) uint64 {
	var n uint64
	_ = b.ForEach(func(_, _ []byte) error {
		n++
		return nil
	})
	return n
}
