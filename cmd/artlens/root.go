// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/artlens/artlens/internal/config"
	"github.com/artlens/artlens/internal/secrets"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// secretStoreFactory creates the secrets.Store used for keyring:// config
// values and the secret commands. Tests substitute an in-memory store.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyring()
}

// cli carries state shared by every subcommand of one root command.
type cli struct {
	v *viper.Viper
}

// NewRootCmd creates the root artlens command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&cli{v: viper.New()})
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "artlens",
		Short:         "Artlens: search artworks by text and image embeddings",
		Long:          "Artlens ingests artwork records into text and image vector collections and answers natural-language queries against them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.initViper(cmd); err != nil {
				return err
			}
			return c.initLogging(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(
		newInitCmd(c),
		newIngestCmd(c),
		newSearchCmd(c),
		newShowCmd(c),
		newEvalCmd(c),
		newServeCmd(c),
		newSecretCmd(),
		newDoctorCmd(c),
		newVersionCmd(),
	)

	return root
}

// initViper loads defaults, environment and the config file into c.v with
// the usual precedence (flag > env > file > defaults), then resolves
// keyring:// references.
func (c *cli) initViper(cmd *cobra.Command) error {
	v := c.v

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return artlenserr.Errorf(artlenserr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so viper does not match the bare
		// ./artlens binary.
		v.SetConfigName("artlens")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/artlens")
		v.AddConfigPath("/etc/artlens")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return artlenserr.Errorf(artlenserr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return artlenserr.Errorf(artlenserr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return artlenserr.Errorf(artlenserr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	if err := v.BindPFlag("log_format", cmd.Root().PersistentFlags().Lookup("log-format")); err != nil {
		return artlenserr.Errorf(artlenserr.CodeCLISetupFailure, "binding log-format flag: %w", err)
	}

	secrets.ResolveViper(v, secretStoreFactory())
	return nil
}

// initLogging installs the process-wide slog handler on stderr.
func (c *cli) initLogging(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if c.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	h, err := newLogHandler(cmd.ErrOrStderr(), c.v.GetString("log_format"), level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func newLogHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, artlenserr.New(artlenserr.CodeCLIInputInvalid, "unknown log format: use text or json",
			artlenserr.Field("format", format))
	}
}

// loadConfig decodes and validates the configuration resolved by initViper.
func (c *cli) loadConfig() (*config.Config, error) {
	return config.FromViper(c.v)
}
