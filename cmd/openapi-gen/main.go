// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Command openapi-gen writes the HTTP API's OpenAPI document without
// starting a server or opening storage.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artlens/artlens/internal/server"
	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

func main() {
	doc, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/artlens.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing OpenAPI document: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// generateSpec registers every route against a stub searcher and returns
// the document huma derives from the handler types.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   &server.Services{Search: nopSearcher{}},
	})
	if err != nil {
		return nil, artlenserr.Errorf(artlenserr.CodeCLISetupFailure, "creating server: %w", err)
	}
	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// nopSearcher is never called during generation.
type nopSearcher struct{}

func (nopSearcher) GetResults(context.Context, string, types.SearchMode, int) ([]types.ArtworkHit, error) {
	return nil, nil
}

func (nopSearcher) Modes() []types.SearchMode { return nil }
