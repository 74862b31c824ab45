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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-embedserver/internal/logging"
	"github.com/pgEdge/pgedge-embedserver/pkg/version"
)

const metadataTable = "embedserver_metadata"

// Metadata keys.
const (
	MetaModel         = "model"
	MetaDevice        = "device"
	MetaDimensions    = "dimensions"
	MetaTable         = "table"
	MetaVersion       = "version"
	MetaInitializedAt = "initialized_at"
)

// ErrNoMetadata is returned when the database has not been initialised.
var ErrNoMetadata = errors.New("database has no embedserver metadata")

const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS embedserver_metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// Metadata describes the embeddings held in a database.
type Metadata struct {
	Model      string
	Device     string
	Dimensions int
	Table      string
}

// SaveMetadata records which model produced the stored embeddings.
func SaveMetadata(ctx context.Context, pool *pgxpool.Pool, md Metadata) error {
	if _, err := pool.Exec(ctx, createMetadataTableSQL); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	values := map[string]string{
		MetaModel:         md.Model,
		MetaDevice:        md.Device,
		MetaDimensions:    strconv.Itoa(md.Dimensions),
		MetaTable:         md.Table,
		MetaVersion:       version.Short(),
		MetaInitializedAt: time.Now().UTC().Format(time.RFC3339),
	}

	for key, value := range values {
		_, err := pool.Exec(ctx, `
            INSERT INTO embedserver_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
        `, key, value)
		if err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", key, err)
		}
	}

	logging.Debug().
		Str("model", md.Model).
		Int("dimensions", md.Dimensions).
		Msg("Saved metadata")

	return nil
}

// LoadMetadata reads the stored metadata. It returns ErrNoMetadata when the
// metadata table is missing or holds no model.
func LoadMetadata(ctx context.Context, pool *pgxpool.Pool) (*Metadata, error) {
	exists, err := MetadataExists(ctx, pool)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoMetadata
	}

	values, err := GetAllMetadata(ctx, pool)
	if err != nil {
		return nil, err
	}
	if values[MetaModel] == "" {
		return nil, ErrNoMetadata
	}

	md := &Metadata{
		Model:  values[MetaModel],
		Device: values[MetaDevice],
		Table:  values[MetaTable],
	}
	if s := values[MetaDimensions]; s != "" {
		if md.Dimensions, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("invalid stored dimensions %q: %w", s, err)
		}
	}
	return md, nil
}

// GetAllMetadata retrieves all metadata as a map.
func GetAllMetadata(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	rows, err := pool.Query(ctx, `SELECT key, value FROM embedserver_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}

	return metadata, rows.Err()
}

// DropMetadata drops the metadata table.
func DropMetadata(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", metadataTable))
	return err
}

// MetadataExists checks if the metadata table exists.
func MetadataExists(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_name = $1
        )
    `, metadataTable).Scan(&exists)
	return exists, err
}

// CheckCompatible returns an error when md was written by a different model
// or with a different vector size than the current run.
func CheckCompatible(md *Metadata, model string, dimensions int) error {
	if md.Model != model {
		return fmt.Errorf(
			"database holds embeddings from '%s' but '%s' is configured; "+
				"use --drop-existing to reinitialize", md.Model, model)
	}
	if dimensions > 0 && md.Dimensions > 0 && md.Dimensions != dimensions {
		return fmt.Errorf(
			"database holds %d-dimensional embeddings but the model produces %d; "+
				"use --drop-existing to reinitialize", md.Dimensions, dimensions)
	}
	return nil
}

// CheckTable returns an error when md describes embeddings stored in a
// table other than table.
func CheckTable(md *Metadata, table string) error {
	if md.Table != "" && md.Table != table {
		return fmt.Errorf(
			"database metadata describes table '%s' but '%s' was requested; "+
				"search the ingested table or ingest into '%s' first", md.Table, table, table)
	}
	return nil
}
