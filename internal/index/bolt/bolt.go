// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

// Package bolt is a pure-Go index backend on bbolt. Queries are brute-force
// scans, which is adequate for personal note collections.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/OlesyaDud/smart-notes/internal/index"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func init() {
	index.RegisterBackend("bolt", func(path string) (index.Backend, error) {
		return Open(path)
	})
}

var (
	_ index.Backend    = (*DB)(nil)
	_ index.Collection = (*Collection)(nil)
)

var (
	bucketCollections = []byte("collections")
	bucketRecords     = []byte("records")
	bucketIDs         = []byte("ids")
	keySpec           = []byte("spec")
	keySeeded         = []byte("seeded")
)

type storedSpec struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	CreatedAt string `json:"created_at"`
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
	Seq      int64             `json:"s"`
}

// DB is a bbolt-backed index backend. Each collection is a nested bucket
// holding its spec, its records and its id sequence.
type DB struct {
	db *bbolt.DB
}

// Open opens (or creates) the bolt file at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, snerr.Wrapf(err, snerr.CodeIndexOpenFailure, "creating data directory %s", dir)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, snerr.Wrap(err, snerr.CodeIndexOpenFailure, "opening bolt db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, snerr.Wrap(err, snerr.CodeIndexOpenFailure, "creating collections bucket")
	}

	return &DB{db: db}, nil
}

// EnsureCollection implements index.Provisioner.
func (d *DB) EnsureCollection(ctx context.Context, spec index.CollectionSpec) (bool, error) {
	if err := index.ValidateSpec(spec); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, index.WrapOp(ctx, err, snerr.CodeIndexCollectionBootstrapErr, "ensuring collection")
	}

	var created bool
	err := d.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if b := root.Bucket([]byte(spec.Name)); b != nil {
			existing, err := readSpec(b, spec.Name)
			if err != nil {
				return err
			}
			if !index.SameShape(existing, spec) {
				return snerr.New(snerr.CodeIndexCollectionConflict,
					fmt.Sprintf("collection exists with dimension %d and metric %s", existing.Dimension, existing.Metric),
					snerr.FieldCollection(spec.Name))
			}
			return nil
		}

		b, err := root.CreateBucket([]byte(spec.Name))
		if err != nil {
			return snerr.Wrap(err, snerr.CodeIndexCollectionBootstrapErr, "creating collection bucket",
				snerr.FieldCollection(spec.Name))
		}
		for _, name := range [][]byte{bucketRecords, bucketIDs} {
			if _, err := b.CreateBucket(name); err != nil {
				return snerr.Wrap(err, snerr.CodeIndexCollectionBootstrapErr, "creating collection bucket",
					snerr.FieldCollection(spec.Name))
			}
		}

		data, err := json.Marshal(storedSpec{
			Dimension: spec.Dimension,
			Metric:    string(spec.Metric),
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return snerr.Wrap(err, snerr.CodeIndexCollectionBootstrapErr, "marshalling spec")
		}
		if err := b.Put(keySpec, data); err != nil {
			return snerr.Wrap(err, snerr.CodeIndexCollectionBootstrapErr, "writing spec",
				snerr.FieldCollection(spec.Name))
		}
		created = true
		return nil
	})
	if err != nil {
		if snerr.CodeOf(err) == "" {
			err = snerr.Wrap(err, snerr.CodeIndexCollectionBootstrapErr, "ensuring collection",
				snerr.FieldCollection(spec.Name))
		}
		return false, err
	}
	return created, nil
}

// Collection implements index.Backend.
func (d *DB) Collection(name string) index.Collection {
	return &Collection{db: d.db, name: name}
}

// Close closes the bolt file.
func (d *DB) Close() error {
	return d.db.Close()
}

func readSpec(b *bbolt.Bucket, name string) (index.CollectionSpec, error) {
	var s storedSpec
	if err := json.Unmarshal(b.Get(keySpec), &s); err != nil {
		return index.CollectionSpec{}, snerr.Wrap(err, snerr.CodeIndexCollectionInvalid, "decoding collection spec",
			snerr.FieldCollection(name))
	}
	return index.CollectionSpec{Name: name, Dimension: s.Dimension, Metric: index.Metric(s.Metric)}, nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
