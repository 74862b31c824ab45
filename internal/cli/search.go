//-------------------------------------------------------------------------
//
// pgEdge Embedding Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-embedserver/internal/datagen"
	"github.com/pgEdge/pgedge-embedserver/internal/db"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find stored texts nearest to a query",
	Long: `Embed the query with the configured model and list the stored texts
closest to it by cosine distance. The database must have been filled by
'ingest' with the same model.

Example:
  pgedge-embedserver search --connection "postgres://..." "how do I reset my password"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&connection, "connection", "",
		"PostgreSQL connection string")
	searchCmd.Flags().StringVar(&ingestTable, "table", "",
		"table to search (default: embeddings)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5,
		"number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	applyStoreFlags()
	if err := cfg.ValidateIngest(); err != nil {
		return err
	}
	if searchLimit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Store.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	svc := newService()
	defer func() { _ = svc.Close() }()

	md, err := db.LoadMetadata(ctx, pool)
	if errors.Is(err, db.ErrNoMetadata) {
		return fmt.Errorf("database has no embeddings; run 'pgedge-embedserver ingest' first")
	}
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := db.CheckTable(md, cfg.Store.Table); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	vectors, err := svc.Embed(ctx, []string{query})
	if err != nil {
		return err
	}
	if err := db.CheckCompatible(md, svc.ModelName(), len(vectors[0])); err != nil {
		return err
	}

	matches, err := db.NewStore(pool, cfg.Store.Table).Nearest(ctx, vectors[0], searchLimit)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		cmd.Println("No stored texts.")
		return nil
	}
	for _, m := range matches {
		cmd.Printf("%8d  %.4f  %s\n", m.ID, m.Distance, datagen.Truncate(m.Content, 100))
	}
	return nil
}
