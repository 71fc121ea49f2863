// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package types

import (
	"fmt"
	"strings"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// SearchMode selects which embedding path and collection a query uses.
type SearchMode string

const (
	// SearchModeText embeds the query with the text model and searches the
	// text collection.
	SearchModeText SearchMode = "text"
	// SearchModeVision expects a reference image. Free-text input falls
	// back to text behaviour.
	SearchModeVision SearchMode = "vision"
	// SearchModeHybrid embeds the query with the image model's text tower
	// and searches the image collection.
	SearchModeHybrid SearchMode = "hybrid"
)

// AllSearchModes lists the supported modes in display order.
var AllSearchModes = []SearchMode{SearchModeText, SearchModeVision, SearchModeHybrid}

// Valid reports whether m is a recognized search mode.
func (m SearchMode) Valid() bool {
	switch m {
	case SearchModeText, SearchModeVision, SearchModeHybrid:
		return true
	default:
		return false
	}
}

// ParseSearchMode parses a case-insensitive string into a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	m := SearchMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", artlenserr.New(artlenserr.CodeQueryModeUnsupported,
			fmt.Sprintf("unsupported search mode %q: use text, vision or hybrid", s),
			artlenserr.Field("mode", s))
	}
	return m, nil
}

