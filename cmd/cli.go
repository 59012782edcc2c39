package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"docflow/internal/config"
	"docflow/internal/generate"
	"docflow/internal/helper"
	"docflow/internal/ingest"
	"docflow/internal/parser"
	"docflow/internal/rag"
	"docflow/internal/session"
)

type sourceFlags struct {
	files []string
	urls  []string
	texts []string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.files, "file", nil, "path of a document to ingest (repeatable)")
	cmd.Flags().StringSliceVar(&f.urls, "url", nil, "link to ingest (repeatable)")
	cmd.Flags().StringArrayVar(&f.texts, "text", nil, "text to ingest as pasted content (repeatable)")
}

func (f *sourceFlags) empty() bool {
	return len(f.files)+len(f.urls)+len(f.texts) == 0
}

// ingestAll feeds every flagged source into a fresh in-memory session.
func (f *sourceFlags) ingestAll(ctx context.Context, p *ingest.Pipeline, sess *session.Session) error {
	for _, path := range f.files {
		fh, err := os.Open(path)
		if err != nil {
			return err
		}
		rec, err := p.Ingest(ctx, sess, ingest.Source{Kind: parser.KindFor(path), Filename: path, Reader: fh})
		fh.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Info().Str("name", rec.Name).Int("chunks", rec.Chunks).Msg("Ingested file")
	}
	for _, u := range f.urls {
		rec, err := p.Ingest(ctx, sess, ingest.Source{Kind: parser.KindLink, URL: u})
		if err != nil {
			return fmt.Errorf("%s: %w", u, err)
		}
		log.Info().Str("name", rec.Name).Int("chunks", rec.Chunks).Msg("Ingested link")
	}
	for _, t := range f.texts {
		rec, err := p.Ingest(ctx, sess, ingest.Source{Kind: parser.KindPasted, Text: t})
		if err != nil {
			return err
		}
		log.Info().Str("name", rec.Name).Int("chunks", rec.Chunks).Msg("Ingested text")
	}
	return nil
}

func ingestCMD(cfg *config.Config) *cobra.Command {
	var src sourceFlags
	var queries []string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents and optionally ask questions about them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if src.empty() {
				return errors.New("provide at least one --file, --url or --text")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := session.New("cli")
			if err := src.ingestAll(ctx, a.pipeline, sess); err != nil {
				return err
			}
			m, err := ingest.Manifest(sess)
			if err != nil {
				return err
			}
			helper.PrettyPrint(os.Stdout, m)
			if len(queries) == 0 {
				return nil
			}

			qa, err := rag.New(sess, a.qa)
			if err != nil {
				return err
			}
			for _, q := range queries {
				ans, err := qa.Invoke(ctx, q)
				if err != nil {
					return err
				}
				fmt.Printf("Query: %s\n\n%s\n\n", q, ans.Text)
				for _, s := range ans.Sources {
					fmt.Printf("  - %s (%.3f): %s\n", s.Name, s.Score, strings.ReplaceAll(s.Snippet, "\n", " "))
				}
				fmt.Println()
			}
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringArrayVar(&queries, "query", nil, "question to answer after ingestion (repeatable, keeps history)")
	return cmd
}

func generateCMD(cfg *config.Config) *cobra.Command {
	var src sourceFlags
	var mode string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Produce a summary, FAQ, guide, timeline or mind map",
		RunE: func(cmd *cobra.Command, args []string) error {
			if src.empty() {
				return errors.New("provide at least one --file, --url or --text")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := session.New("cli")
			if err := src.ingestAll(ctx, a.pipeline, sess); err != nil {
				return err
			}
			raw, err := ingest.RawText(sess)
			if err != nil {
				return err
			}
			out, err := a.generator.Invoke(ctx, generate.Input{Mode: mode, Text: raw})
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&mode, "mode", "m", "summarise", "summarise, faq, guide, timeline or map")
	return cmd
}

func snapshotCMD(cfg *config.Config) *cobra.Command {
	run := func(export bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.chromem == nil {
				return fmt.Errorf("snapshots need the %s vector store", config.StoreChromem)
			}
			if export {
				return a.chromem.Export(ctx)
			}
			if err := a.chromem.Import(ctx); err != nil {
				return err
			}
			n, err := a.index.Count(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("chunks", n).Msg("Imported snapshot")
			return nil
		}
	}
	snap := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import an encrypted snapshot of the chromem collection",
	}
	snap.AddCommand(
		&cobra.Command{Use: "export", Short: "Write the collection to persist_dir", RunE: run(true)},
		&cobra.Command{Use: "import", Short: "Load the collection from persist_dir", RunE: run(false)},
	)
	return snap
}
