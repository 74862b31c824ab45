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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-embedserver/internal/datagen"
	"github.com/pgEdge/pgedge-embedserver/internal/ingest"
	"github.com/pgEdge/pgedge-embedserver/internal/logging"
	"github.com/pgEdge/pgedge-embedserver/internal/openai"
)

var (
	embedFile           string
	embedSample         int
	embedSeed           uint64
	embedEncodingFormat string
)

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Print embeddings for texts as an OpenAI response",
	Long: `Embed the given texts and print the OpenAI embeddings response as JSON.
Texts come from the arguments, from a file with one text per line
(--file, "-" for stdin), or from generated sample sentences (--sample).

Example:
  pgedge-embedserver embed "first sentence" "second sentence"
  pgedge-embedserver embed --sample 5 --encoding-format base64`,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().StringVar(&embedFile, "file", "",
		`read texts from a file, one per line ("-" for stdin)`)
	embedCmd.Flags().IntVar(&embedSample, "sample", 0,
		"embed this many generated sample sentences")
	embedCmd.Flags().Uint64Var(&embedSeed, "seed", 0,
		"seed for --sample (default: random)")
	embedCmd.Flags().StringVar(&embedEncodingFormat, "encoding-format", openai.EncodingFloat,
		"embedding encoding: float or base64")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	texts, err := collectTexts(cmd.InOrStdin(), args, embedFile, embedSample, embedSeed)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("no input: pass texts as arguments, --file, or --sample")
	}

	svc := newService()
	defer func() { _ = svc.Close() }()

	vectors, err := svc.Embed(context.Background(), texts)
	if err != nil {
		return err
	}

	resp := openai.NewEmbeddingsResponse(vectors, svc.ModelName(), embedEncodingFormat)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// collectTexts gathers inputs from arguments, a file, and the sample
// generator, in that order.
func collectTexts(stdin io.Reader, args []string, file string, sample int, seed uint64) ([]string, error) {
	texts := append([]string(nil), args...)

	if file != "" {
		var r io.Reader = stdin
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return nil, fmt.Errorf("failed to open input file: %w", err)
			}
			defer f.Close()
			r = f
		}
		lines, err := ingest.ReadLines(r)
		if err != nil {
			return nil, err
		}
		texts = append(texts, lines...)
	}

	if sample > 0 {
		faker := datagen.NewFaker()
		if seed != 0 {
			faker = datagen.NewFakerWithSeed(seed)
		}
		texts = append(texts, faker.SampleTexts(sample)...)
		logging.Debug().Int("count", sample).Msg("Generated sample texts")
	}

	return texts, nil
}
