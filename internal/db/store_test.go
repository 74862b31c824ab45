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
	"strings"
	"testing"
	"time"

	"github.com/pgEdge/pgedge-embedserver/internal/testutil"
)

func TestCreateTableSQL(t *testing.T) {
	sql := CreateTableSQL("docs", 384)
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS docs") {
		t.Errorf("Missing table name in %q", sql)
	}
	if !strings.Contains(sql, "vector(384)") {
		t.Errorf("Missing vector dimensions in %q", sql)
	}
}

func TestCheckCompatible(t *testing.T) {
	md := &Metadata{Model: "all-mpnet-base-v2", Dimensions: 768}

	tests := []struct {
		name    string
		model   string
		dims    int
		wantErr string
	}{
		{"same", "all-mpnet-base-v2", 768, ""},
		{"dims unknown", "all-mpnet-base-v2", 0, ""},
		{"other model", "all-MiniLM-L6-v2", 384, "use --drop-existing"},
		{"other dims", "all-mpnet-base-v2", 384, "768-dimensional"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCompatible(md, tt.model, tt.dims)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCheckTable(t *testing.T) {
	md := &Metadata{Model: "m", Dimensions: 3, Table: "docs"}

	tests := []struct {
		name    string
		md      *Metadata
		table   string
		wantErr bool
	}{
		{"same table", md, "docs", false},
		{"other table", md, "embeddings", true},
		{"table not recorded", &Metadata{Model: "m"}, "embeddings", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTable(tt.md, tt.table)
			if tt.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestStoreIntegration(t *testing.T) {
	connStr := testutil.NewVectorDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := EnsureVectorExtension(ctx, connStr); err != nil {
		t.Fatalf("EnsureVectorExtension failed: %v", err)
	}
	pool, err := Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer pool.Close()

	if _, err := LoadMetadata(ctx, pool); !errors.Is(err, ErrNoMetadata) {
		t.Fatalf("Expected ErrNoMetadata on a fresh database, got %v", err)
	}

	store := NewStore(pool, "embeddings")
	if err := store.EnsureTable(ctx, 3); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}

	n, err := store.Insert(ctx, "test-model",
		[]string{"x axis", "y axis", "mostly x"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 rows inserted, got %d", n)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 rows, got %d", count)
	}

	matches, err := store.Nearest(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if matches[0].Content != "x axis" || matches[1].Content != "mostly x" {
		t.Errorf("Unexpected match order: %+v", matches)
	}

	md := Metadata{Model: "test-model", Device: "cpu", Dimensions: 3, Table: "embeddings"}
	if err := SaveMetadata(ctx, pool, md); err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}
	loaded, err := LoadMetadata(ctx, pool)
	if err != nil {
		t.Fatalf("LoadMetadata failed: %v", err)
	}
	if *loaded != md {
		t.Errorf("Expected metadata %+v, got %+v", md, *loaded)
	}
	all, err := GetAllMetadata(ctx, pool)
	if err != nil {
		t.Fatalf("GetAllMetadata failed: %v", err)
	}
	if all[MetaVersion] == "" {
		t.Error("Expected a stored version")
	}

	if err := store.Drop(ctx); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if err := DropMetadata(ctx, pool); err != nil {
		t.Fatalf("DropMetadata failed: %v", err)
	}
	if exists, err := MetadataExists(ctx, pool); err != nil || exists {
		t.Errorf("Expected metadata table to be gone, got %v, %v", exists, err)
	}
}
