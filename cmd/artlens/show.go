// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artlens/artlens/internal/artwork"
	"github.com/artlens/artlens/internal/store"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

// previewDims is how many leading vector components show prints.
const previewDims = 5

func newShowCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [text|image]",
		Short: "Inspect the vector collections",
		Long: `Without arguments, list every collection with its dimension and size.
With a modality, print the collection's count and its first entries with
their vector length and leading components.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(types.ModalityText), string(types.ModalityImage)},
		RunE:      c.runShow,
	}
	cmd.Flags().IntP("limit", "n", 5, "number of entries to print")
	return cmd
}

func (c *cli) runShow(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		infos, err := st.Collections(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			count := "?"
			if coll, err := st.Collection(ctx, info.Name, store.CollectionOptions{}); err == nil {
				if n, err := coll.Count(ctx); err == nil {
					count = strconv.Itoa(n)
				}
			}
			rows = append(rows, []string{info.Name, strconv.Itoa(info.Dimensions), string(info.Distance), count})
		}
		_, err = fmt.Fprintln(out, renderTable([]string{"Collection", "Dimensions", "Distance", "Entries"}, rows))
		return err
	}

	var name string
	switch types.Modality(args[0]) {
	case types.ModalityText:
		name = cfg.Storage.TextCollection
	case types.ModalityImage:
		name = cfg.Storage.ImageCollection
	default:
		return artlenserr.New(artlenserr.CodeCLIInputInvalid, "unknown modality: use text or image",
			artlenserr.FieldModality(args[0]))
	}

	coll, err := st.Collection(ctx, name, store.CollectionOptions{})
	if artlenserr.IsNotFound(err) {
		_, err = fmt.Fprintf(out, "collection %s does not exist yet (run artlens ingest)\n", name)
		return err
	}
	if err != nil {
		return err
	}

	count, err := coll.Count(ctx)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := coll.Get(ctx, store.GetRequest{Limit: max(limit, 0), Include: store.IncludeMetadata | store.IncludeVectors})
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		title, _ := e.Metadata[artwork.MetaTitle].(string)
		rows = append(rows, []string{e.ID, title, strconv.Itoa(len(e.Vector)), previewVector(e.Vector)})
	}
	header := titleStyle.Render(name) + dimStyle.Render(fmt.Sprintf(" %d entries, %d dims", count, coll.Info().Dimensions))
	_, err = fmt.Fprintln(out, header+"\n"+renderTable([]string{"ID", "Title", "Length", "First dims"}, rows))
	return err
}

func previewVector(v []float32) string {
	n := min(len(v), previewDims)
	parts := make([]string, 0, n+1)
	for _, f := range v[:n] {
		parts = append(parts, strconv.FormatFloat(float64(f), 'f', 4, 32))
	}
	if len(v) > n {
		parts = append(parts, "…")
	}
	return "[" + strings.Join(parts, " ") + "]"
}
