//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pgEdge/pgedge-embedserver/internal/metrics"
)

// Store writes and queries embeddings in a single table.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Match is a stored row returned by Nearest.
type Match struct {
	ID       int64
	Content  string
	Model    string
	Distance float64
}

// NewStore returns a Store for table. The table name must already be
// validated as a plain SQL identifier.
func NewStore(pool *pgxpool.Pool, table string) *Store {
	return &Store{pool: pool, table: table}
}

// Table returns the table name.
func (s *Store) Table() string {
	return s.table
}

// CreateTableSQL returns the DDL for a table holding vectors of dimensions.
func CreateTableSQL(table string, dimensions int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id         BIGSERIAL PRIMARY KEY,
    content    TEXT NOT NULL,
    model      TEXT NOT NULL,
    embedding  vector(%d) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, table, dimensions)
}

// EnsureTable creates the table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context, dimensions int) error {
	if dimensions < 1 {
		return fmt.Errorf("invalid vector dimensions %d", dimensions)
	}
	if _, err := s.pool.Exec(ctx, CreateTableSQL(s.table, dimensions)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Drop drops the table.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table))
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", s.table, err)
	}
	return nil
}

// Insert writes one row per content/vector pair in a single batch.
func (s *Store) Insert(ctx context.Context, model string, contents []string, vectors [][]float32) (int64, error) {
	if len(contents) != len(vectors) {
		return 0, fmt.Errorf("got %d contents for %d vectors", len(contents), len(vectors))
	}
	if len(contents) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (content, model, embedding) VALUES ($1, $2, $3)", s.table)

	batch := &pgx.Batch{}
	for i := range contents {
		batch.Queue(query, contents[i], model, pgvector.NewVector(vectors[i]))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var written int64
	for range contents {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("failed to insert into %s: %w", s.table, err)
		}
		written += tag.RowsAffected()
	}

	metrics.RowsStored.Add(float64(written))
	return written, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&n)
	return n, err
}

// Nearest returns the limit rows closest to vec by cosine distance.
func (s *Store) Nearest(ctx context.Context, vec []float32, limit int) ([]Match, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT id, content, model, embedding <=> $1 AS distance
        FROM %s
        ORDER BY embedding <=> $1
        LIMIT $2`, s.table), pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Content, &m.Model, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
