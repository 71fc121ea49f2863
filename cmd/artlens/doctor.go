// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/artlens/artlens/internal/config"
	"github.com/artlens/artlens/internal/embed"
	"github.com/artlens/artlens/internal/store"
)

// probeTimeout bounds each provider and storage check.
const probeTimeout = 15 * time.Second

type check struct {
	name string
	fn   func() string
}

func newDoctorCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the config, storage backend, embedding providers, image source and disk space.",
		Args:  cobra.NoArgs,
		RunE:  c.runDoctor,
	}
	cmd.Flags().Bool("network", false, "also fetch a test image from the IIIF server")
	cmd.Flags().String("probe-image", "", "image reference used by --network")
	return cmd
}

func (c *cli) runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, cfgErr := c.loadConfig()

	checks := []check{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return c.checkConfig(cfgErr) }},
	}
	if cfg != nil {
		network, _ := cmd.Flags().GetBool("network")
		probe, _ := cmd.Flags().GetString("probe-image")
		checks = append(checks,
			check{"Storage", func() string { return checkStorage(ctx, cfg) }},
			check{"Text model", func() string { return checkModel(ctx, cfg.Embedding.Text, false) }},
			check{"Image model", func() string { return checkModel(ctx, cfg.Embedding.Image, true) }},
			check{"Image source", func() string { return checkImages(ctx, cfg, network, probe) }},
			check{"Disk Space", func() string { return checkDiskSpace(dataDir(cfg)) }},
		)
	}

	for _, ch := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", ch.name+":", ch.fn()); err != nil {
			return err
		}
	}
	return nil
}

func checkBinary() string {
	return fmt.Sprintf("artlens %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (c *cli) checkConfig(err error) string {
	if err != nil {
		return errorStyle.Render("invalid: " + err.Error())
	}
	if f := c.v.ConfigFileUsed(); f != "" {
		if insecure, mode, _ := config.InsecurePermissions(f); insecure {
			return fmt.Sprintf("loaded from %s (warning: mode %04o, expected 0600)", f, mode.Perm())
		}
		return fmt.Sprintf("loaded from %s", f)
	}
	return "using defaults (no config file found)"
}

func checkStorage(ctx context.Context, cfg *config.Config) string {
	st, err := store.Open(cfg.StoreConfig())
	if err != nil {
		return errorStyle.Render("error: " + err.Error())
	}
	defer func() { _ = st.Close() }()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	infos, err := st.Collections(ctx)
	if err != nil {
		return errorStyle.Render("error: " + err.Error())
	}
	return fmt.Sprintf("%s backend, %d collection(s)", cfg.Storage.Backend, len(infos))
}

// checkModel builds the provider and embeds a probe string.
func checkModel(ctx context.Context, mc config.ModelConfig, image bool) string {
	build := embed.NewText
	if image {
		build = embed.NewImage
	}
	m, err := build(mc.EmbedConfig())
	if err != nil {
		return errorStyle.Render(fmt.Sprintf("%s: %s", mc.Provider, err))
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	vec, err := m.EmbedText(ctx, "doctor probe", embed.PurposeQuery)
	if err != nil {
		return errorStyle.Render(fmt.Sprintf("%s: %s", m.Name(), err))
	}
	return successStyle.Render(fmt.Sprintf("%s ok, %d dims", m.Name(), len(vec)))
}

func checkImages(ctx context.Context, cfg *config.Config, network bool, probe string) string {
	if !network {
		return fmt.Sprintf("%s (not contacted, use --network)", cfg.Fetch.IIIFBaseURL)
	}
	if probe == "" {
		return "skipped: --probe-image is required with --network"
	}
	app := &App{Config: cfg}
	src, err := app.Images(false)
	if err != nil {
		return errorStyle.Render("error: " + err.Error())
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	img, err := src.Fetch(ctx, probe)
	if err != nil {
		return errorStyle.Render("error: " + err.Error())
	}
	return successStyle.Render(fmt.Sprintf("ok, %dx%d %s", img.Width, img.Height, img.MIMEType))
}

// dataDir is where the configured backend keeps its files.
func dataDir(cfg *config.Config) string {
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path != "" {
		return filepath.Dir(cfg.Storage.Path)
	}
	return "."
}

func checkDiskSpace(dir string) string {
	path := dir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
