// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/ingest"
	"github.com/artlens/artlens/internal/ingest/ledger"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

func newIngestCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed artwork records into the text and image collections",
		Long: `Read artwork records (JSON documents or JSON lines) from the source
directory, embed each one as text and, when eligible, as an image, and
upsert the vectors into their collections. Failures are counted per record
and modality; the run always completes.`,
		RunE: c.runIngest,
	}

	cmd.Flags().String("source", "", "directory of artwork JSON files (overrides ingest.source_dir)")
	cmd.Flags().StringSlice("modalities", nil, "modalities to ingest: text, image (overrides ingest.modalities)")
	cmd.Flags().String("image-policy", "", "image eligibility: strict or relaxed (overrides ingest.image_policy)")
	cmd.Flags().String("ledger", "", "resume ledger path (overrides ingest.ledger_path)")
	cmd.Flags().Bool("resume", false, "skip units the ledger records as already saved")

	_ = c.v.BindPFlag("ingest.source_dir", cmd.Flags().Lookup("source"))
	_ = c.v.BindPFlag("ingest.modalities", cmd.Flags().Lookup("modalities"))
	_ = c.v.BindPFlag("ingest.image_policy", cmd.Flags().Lookup("image-policy"))
	_ = c.v.BindPFlag("ingest.ledger_path", cmd.Flags().Lookup("ledger"))

	return cmd
}

func (c *cli) runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	resume, _ := cmd.Flags().GetBool("resume")
	if resume && cfg.Ingest.LedgerPath == "" {
		return artlenserr.New(artlenserr.CodeCLIInputInvalid, "--resume requires --ledger or ingest.ledger_path")
	}

	modalities := cfg.IngestModalities()
	need := imageNone
	for _, m := range modalities {
		if m == types.ModalityImage {
			need = imageRequired
		}
	}

	app, err := WireApp(cfg, need)
	if err != nil {
		return err
	}
	defer app.Close()

	pcfg := ingest.Config{
		Store:           app.Store,
		TextCollection:  cfg.Storage.TextCollection,
		ImageCollection: cfg.Storage.ImageCollection,
		TextModel:       app.TextModel,
		ImageModel:      app.ImageModel,
		Normalize:       cfg.Normalizer().Normalize,
		Modalities:      modalities,
		ProgressEvery:   cfg.Ingest.ProgressEvery,
		Resume:          resume,
	}
	if need == imageRequired {
		if pcfg.Images, err = app.Images(false); err != nil {
			return err
		}
	}
	if cfg.Ingest.LedgerPath != "" {
		l, err := ledger.Open(cfg.Ingest.LedgerPath)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()
		pcfg.Ledger = l
	}

	p, err := ingest.New(pcfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, runErr := p.Run(ctx, artwork.Records(ctx, cfg.Ingest.SourceDir))
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), renderIngestStats(stats)); err != nil {
		return err
	}
	if runErr != nil {
		return artlenserr.Wrap(runErr, artlenserr.CodeCLISetupFailure, "ingestion interrupted")
	}
	return nil
}

func renderIngestStats(s ingest.Stats) string {
	row := func(m ingest.ModalityStats, name string) []string {
		return []string{
			name,
			strconv.Itoa(m.Saved),
			strconv.Itoa(m.SkippedEmpty + m.SkippedIneligible + m.SkippedDone),
			strconv.Itoa(m.EmbedFailed),
			strconv.Itoa(m.FetchFailed),
			strconv.Itoa(m.StoreFailed),
		}
	}
	t := renderTable(
		[]string{"Modality", "Saved", "Skipped", "Embed failed", "Fetch failed", "Store failed"},
		[][]string{row(s.Text, "text"), row(s.Image, "image")},
	)
	summary := fmt.Sprintf("run %s: %d records processed, %d unreadable, %d without id",
		s.RunID, s.Processed, s.ParseFailures+s.SourceFailures, s.MissingIDs)
	return titleStyle.Render("Ingestion summary") + "\n" + t + "\n" + dimStyle.Render(summary)
}
