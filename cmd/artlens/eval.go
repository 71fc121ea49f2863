// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artlens/artlens/internal/eval"
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// curvePoints are the k values the text report prints.
var curvePoints = []int{1, 3, 5, 10}

func newEvalCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score retrieval quality by self-retrieval",
		Long: `Sample artworks from the text collection and query each one by its own
title (does the artwork come back?) and by its artist (do works by the
same artist come back?). Reports recall@k for both protocols and artist
purity per mode.`,
		Args: cobra.NoArgs,
		RunE: c.runEval,
	}

	cmd.Flags().Int("limit", 0, "number of artworks to sample (overrides eval.sample_limit)")
	cmd.Flags().Int("max-k", 0, "largest k to score (overrides eval.max_k)")
	cmd.Flags().StringSlice("modes", nil, "modes to evaluate (overrides eval.modes)")
	cmd.Flags().StringP("format", "f", "text", "output format: text, json or yaml")

	_ = c.v.BindPFlag("eval.sample_limit", cmd.Flags().Lookup("limit"))
	_ = c.v.BindPFlag("eval.max_k", cmd.Flags().Lookup("max-k"))
	_ = c.v.BindPFlag("eval.modes", cmd.Flags().Lookup("modes"))

	return cmd
}

func (c *cli) runEval(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	var encode eval.Format
	if format != "text" {
		if encode, err = eval.ParseFormat(format); err != nil {
			return err
		}
	}

	app, err := WireApp(cfg, imageOptional)
	if err != nil {
		return err
	}
	defer app.Close()

	engine, err := app.Engine()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	coll, err := app.Store.Collection(ctx, cfg.Storage.TextCollection, store.CollectionOptions{})
	if err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeEvalSampleFailure, "opening text collection (run artlens ingest first)")
	}

	available := engine.Modes()
	var modes []types.SearchMode
	for _, m := range cfg.EvalModes() {
		if !slices.Contains(available, m) {
			slog.Warn("skipping mode the current models cannot serve", "mode", string(m))
			continue
		}
		modes = append(modes, m)
	}
	if len(modes) == 0 {
		return artlenserr.New(artlenserr.CodeEvalInvalidInput, "no evaluable modes")
	}

	report, err := eval.Run(ctx, engine, coll, eval.Options{
		SampleLimit: cfg.Eval.SampleLimit,
		MaxK:        cfg.Eval.MaxK,
		Modes:       modes,
	})
	if err != nil {
		return err
	}

	if encode != "" {
		return eval.Encode(cmd.OutOrStdout(), report, encode)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
	return err
}

func renderReport(r *eval.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Evaluation of "+r.Collection) +
		dimStyle.Render(fmt.Sprintf(" %d sampled, max k %d", r.Sampled, r.MaxK)) + "\n")

	artists := make([][]string, 0, len(r.Artists))
	for _, a := range r.Artists {
		artists = append(artists, []string{a.Artist, strconv.Itoa(a.Count)})
	}
	b.WriteString(renderTable([]string{"Artist", "Works"}, artists) + "\n")

	headers := []string{"Mode", "Protocol", "Evaluated", "Errors"}
	ks := make([]int, 0, len(curvePoints))
	for _, k := range curvePoints {
		if k <= r.MaxK {
			ks = append(ks, k)
			headers = append(headers, fmt.Sprintf("R@%d", k))
		}
	}
	headers = append(headers, "Purity")

	var rows [][]string
	for _, m := range r.Modes {
		title := []string{string(m.Mode), "title", strconv.Itoa(m.Title.Evaluated), strconv.Itoa(m.Title.Errors)}
		artist := []string{string(m.Mode), "artist", strconv.Itoa(m.Artist.Evaluated), strconv.Itoa(m.Artist.Errors)}
		for _, k := range ks {
			title = append(title, percent(m.Title.Recall.At(k)))
			artist = append(artist, percent(m.Artist.Recall.At(k)))
		}
		rows = append(rows, append(title, "-"), append(artist, percent(m.Artist.Purity)))
	}
	b.WriteString(renderTable(headers, rows))
	return b.String()
}
