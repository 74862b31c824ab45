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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-embedserver/internal/db"
	"github.com/pgEdge/pgedge-embedserver/internal/ingest"
	"github.com/pgEdge/pgedge-embedserver/internal/logging"
)

var (
	connection         string
	ingestTable        string
	ingestBatchSize    int
	ingestDropExisting bool
	ingestFile         string
	ingestSample       int
	ingestSeed         uint64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [text...]",
	Short: "Embed texts and store them in PostgreSQL",
	Long: `Embed texts in batches and store them with their vectors in a pgvector
table. The vector extension and the table are created if needed, and the
model that produced the vectors is recorded. Ingesting with a different
model into the same database is refused unless --drop-existing is given.

Example:
  pgedge-embedserver ingest --connection "postgres://..." --file docs.txt
  pgedge-embedserver ingest --connection "postgres://..." --sample 1000 --drop-existing`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&connection, "connection", "",
		"PostgreSQL connection string")
	ingestCmd.Flags().StringVar(&ingestTable, "table", "",
		"destination table (default: embeddings)")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0,
		"texts embedded per model call (default: 32)")
	ingestCmd.Flags().BoolVar(&ingestDropExisting, "drop-existing", false,
		"drop the table and metadata before ingesting")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "",
		`read texts from a file, one per line ("-" for stdin)`)
	ingestCmd.Flags().IntVar(&ingestSample, "sample", 0,
		"ingest this many generated sample sentences")
	ingestCmd.Flags().Uint64Var(&ingestSeed, "seed", 0,
		"seed for --sample (default: random)")
}

// applyStoreFlags copies the database flags shared by ingest and search.
func applyStoreFlags() {
	if connection != "" {
		cfg.Store.Connection = connection
	}
	if ingestTable != "" {
		cfg.Store.Table = ingestTable
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	applyStoreFlags()
	if ingestBatchSize > 0 {
		cfg.Store.BatchSize = ingestBatchSize
	}
	if ingestDropExisting {
		cfg.Store.DropExisting = true
	}

	// Validate configuration
	if err := cfg.ValidateIngest(); err != nil {
		return err
	}

	texts, err := collectTexts(cmd.InOrStdin(), args, ingestFile, ingestSample, ingestSeed)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no input: pass texts as arguments, --file, or --sample")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.EnsureVectorExtension(ctx, cfg.Store.Connection); err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg.Store.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	svc := newService()
	defer func() { _ = svc.Close() }()
	modelName := svc.ModelName()

	// Check if already initialized for a different model
	existing, err := db.LoadMetadata(ctx, pool)
	switch {
	case errors.Is(err, db.ErrNoMetadata):
		existing = nil
	case err != nil:
		return fmt.Errorf("failed to read metadata: %w", err)
	default:
		err := db.CheckCompatible(existing, modelName, 0)
		if err == nil {
			err = db.CheckTable(existing, cfg.Store.Table)
		}
		if err != nil {
			if !cfg.Store.DropExisting {
				return err
			}
			logging.Warn().
				Str("existing_model", existing.Model).
				Str("existing_table", existing.Table).
				Str("new_model", modelName).
				Msg("Dropping incompatible embeddings")
		}
	}

	store := db.NewStore(pool, cfg.Store.Table)

	if cfg.Store.DropExisting {
		logging.Info().Str("table", store.Table()).Msg("Dropping existing embeddings")
		if err := store.Drop(ctx); err != nil {
			return err
		}
		if existing != nil && existing.Table != "" && existing.Table != store.Table() {
			logging.Info().Str("table", existing.Table).Msg("Dropping previously ingested table")
			if err := db.NewStore(pool, existing.Table).Drop(ctx); err != nil {
				return err
			}
		}
		if err := db.DropMetadata(ctx, pool); err != nil {
			logging.Debug().Err(err).Msg("No metadata table to drop")
		}
		existing = nil
	}

	params := svc.Params()
	ing := ingest.New(svc, store, ingest.Options{
		BatchSize: cfg.Store.BatchSize,
		Prepare: func(ctx context.Context, dimensions int) error {
			if existing != nil {
				if err := db.CheckCompatible(existing, modelName, dimensions); err != nil {
					return err
				}
			}
			if err := store.EnsureTable(ctx, dimensions); err != nil {
				return err
			}
			return db.SaveMetadata(ctx, pool, db.Metadata{
				Model:      modelName,
				Device:     params.DeviceLabel(),
				Dimensions: dimensions,
				Table:      store.Table(),
			})
		},
	})

	n, err := ing.Run(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingest stopped after %d rows: %w", n, err)
	}

	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count stored rows: %w", err)
	}

	logging.Info().
		Str("model", modelName).
		Str("table", store.Table()).
		Int64("rows", n).
		Int64("total_rows", total).
		Msg("Embeddings stored")

	return nil
}
