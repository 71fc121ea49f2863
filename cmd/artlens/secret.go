// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artlens/artlens/internal/secrets"
	artlenserr "github.com/artlens/artlens/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage provider keys stored in the OS keyring",
		Long: `Store and delete secrets under the artlens keyring service. Reference a
stored secret from the config file as keyring://artlens/<name>.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <name>",
			Short: "Store a secret read from stdin",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretSet,
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a secret by name",
			Args:  cobra.ExactArgs(1),
			RunE:  runSecretDelete,
		},
	)

	return cmd
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	value := strings.TrimSpace(line)
	if value == "" {
		if err != nil {
			return artlenserr.Errorf(artlenserr.CodeSecretInvalidInput, "reading secret from stdin: %w", err)
		}
		return artlenserr.New(artlenserr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	if err := secretStoreFactory().Set(secrets.DefaultService, name, value); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s; reference it as %s\n",
		name, secrets.URI(secrets.DefaultService, name))
	return err
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.DefaultService, name); err != nil {
		if artlenserr.HasCode(err, artlenserr.CodeSecretNotFound) {
			return artlenserr.Errorf(artlenserr.CodeSecretNotFound, "secret %q not found", name)
		}
		return artlenserr.Wrapf(err, artlenserr.CodeSecretDeleteFailure, "deleting secret %q", name)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return err
}
