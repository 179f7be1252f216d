// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Smart Notes Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/OlesyaDud/smart-notes/internal/index"
	snerr "github.com/OlesyaDud/smart-notes/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
	index.RegisterBackend("sqlite", func(path string) (index.Backend, error) {
		return Open(path)
	})
}

// Compile-time interface checks.
var (
	_ index.Backend    = (*DB)(nil)
	_ index.Collection = (*Collection)(nil)
)

// DB is an index backend stored in a single SQLite file. Each collection is
// a vec0 virtual table holding the vectors plus a companion table holding
// metadata and insertion order; a registry table records the collection
// parameters and its id sequence.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, snerr.Wrapf(err, snerr.CodeIndexOpenFailure, "creating data directory %s", dir)
		}
	}

	// _txlock=immediate makes every transaction take the write lock up
	// front, which serialises sequence allocation across processes.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, snerr.Wrap(err, snerr.CodeIndexOpenFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, snerr.Wrap(err, snerr.CodeIndexOpenFailure, "pinging sqlite db")
	}

	const registryDDL = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	dimension  INTEGER NOT NULL,
	metric     TEXT NOT NULL,
	next_seq   INTEGER,
	created_at TEXT NOT NULL
)`
	if _, err := db.Exec(registryDDL); err != nil {
		_ = db.Close()
		return nil, snerr.Wrap(err, snerr.CodeIndexOpenFailure, "creating collections table")
	}

	return &DB{db: db}, nil
}

// EnsureCollection implements index.Provisioner.
func (d *DB) EnsureCollection(ctx context.Context, spec index.CollectionSpec) (bool, error) {
	if err := index.ValidateSpec(spec); err != nil {
		return false, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, index.WrapOp(ctx, err, snerr.CodeIndexCollectionBootstrapErr, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := lookup(ctx, tx, spec.Name)
	switch {
	case err == nil:
		if !index.SameShape(existing, spec) {
			return false, snerr.New(snerr.CodeIndexCollectionConflict,
				fmt.Sprintf("collection exists with dimension %d and metric %s", existing.Dimension, existing.Metric),
				snerr.FieldCollection(spec.Name))
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, index.WrapOp(ctx, err, snerr.CodeIndexCollectionBootstrapErr, "reading collection registry",
			snerr.FieldCollection(spec.Name))
	}

	vecTable, metaTable := tableNames(spec.Name)
	distance := "cosine"
	if spec.Metric == index.MetricEuclidean {
		distance = "L2"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE %q USING vec0(id TEXT PRIMARY KEY, embedding float[%d] distance_metric=%s)`,
			vecTable, spec.Dimension, distance),
		fmt.Sprintf(`CREATE TABLE %q (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	id       TEXT NOT NULL UNIQUE,
	metadata TEXT NOT NULL DEFAULT '{}'
)`, metaTable),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, index.WrapOp(ctx, err, snerr.CodeIndexCollectionBootstrapErr, "creating collection tables",
				snerr.FieldCollection(spec.Name))
		}
	}

	const insertQ = `INSERT INTO collections(name, dimension, metric, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertQ, spec.Name, spec.Dimension, string(spec.Metric),
		time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return false, index.WrapOp(ctx, err, snerr.CodeIndexCollectionBootstrapErr, "registering collection",
			snerr.FieldCollection(spec.Name))
	}

	if err := tx.Commit(); err != nil {
		return false, index.WrapOp(ctx, err, snerr.CodeIndexCollectionBootstrapErr, "committing collection",
			snerr.FieldCollection(spec.Name))
	}
	return true, nil
}

// Collection implements index.Backend.
func (d *DB) Collection(name string) index.Collection {
	return &Collection{db: d.db, name: name}
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookup(ctx context.Context, q querier, name string) (index.CollectionSpec, error) {
	spec := index.CollectionSpec{Name: name}
	var metric string
	err := q.QueryRowContext(ctx, `SELECT dimension, metric FROM collections WHERE name = ?`, name).
		Scan(&spec.Dimension, &metric)
	spec.Metric = index.Metric(metric)
	return spec, err
}

// tableNames maps a validated collection name to its two table names.
// Collection names never contain underscores, so the mapping is injective.
func tableNames(name string) (vec, meta string) {
	safe := strings.ReplaceAll(name, "-", "_")
	return "vec_" + safe, "meta_" + safe
}
