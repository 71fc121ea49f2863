// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package eval

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// Format is a machine-readable report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", artlenserr.New(artlenserr.CodeEvalInvalidInput, "report format must be json or yaml",
			artlenserr.Field("format", s))
	}
}

// Encode writes r to w in the given format.
func Encode(w io.Writer, r *Report, f Format) error {
	var err error
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(r)
		if err == nil {
			err = enc.Close()
		}
	default:
		return artlenserr.New(artlenserr.CodeEvalInvalidInput, "unknown report format",
			artlenserr.Field("format", string(f)))
	}
	if err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeEvalReportFailure, "encoding report")
	}
	return nil
}
