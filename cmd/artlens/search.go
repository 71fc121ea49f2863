// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artlens/artlens/pkg/types"
)

func newSearchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search artworks by free text",
		Long: `Embed the query for the chosen mode and list the nearest artworks.

Modes:
  text    text model against the text collection
  vision  needs a reference image; free-text queries fall back to text
  hybrid  image model's text tower against the image collection`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runSearch,
	}

	cmd.Flags().StringP("mode", "m", "", "search mode: text, vision or hybrid (overrides query.default_mode)")
	cmd.Flags().IntP("results", "n", 0, "number of results (overrides query.default_results)")
	cmd.Flags().Bool("json", false, "print results as JSON")

	_ = c.v.BindPFlag("query.default_mode", cmd.Flags().Lookup("mode"))
	_ = c.v.BindPFlag("query.default_results", cmd.Flags().Lookup("results"))

	return cmd
}

func (c *cli) runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	mode, err := types.ParseSearchMode(cfg.Query.DefaultMode)
	if err != nil {
		return err
	}

	need := imageNone
	if mode == types.SearchModeHybrid {
		need = imageRequired
	}
	app, err := WireApp(cfg, need)
	if err != nil {
		return err
	}
	defer app.Close()

	engine, err := app.Engine()
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	hits, err := engine.GetResults(cmd.Context(), text, mode, cfg.Query.DefaultResults)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	_, err = fmt.Fprintln(out, renderHits(text, mode, hits))
	return err
}

func renderHits(text string, mode types.SearchMode, hits []types.ArtworkHit) string {
	heading := titleStyle.Render(fmt.Sprintf("%q", text)) + dimStyle.Render(" ("+string(mode)+")")
	if len(hits) == 0 {
		return heading + "\n" + dimStyle.Render("no results")
	}
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{strconv.Itoa(h.Rank), h.ID, h.Title, h.Artist, h.ImageID})
	}
	return heading + "\n" + renderTable([]string{"#", "ID", "Title", "Artist", "Image"}, rows)
}
