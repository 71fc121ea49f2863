// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package artwork

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one artwork as published by the catalog API. Every field is
// optional in the source data; absent values decode to their zero value.
type Record struct {
	ID                   ID       `json:"id"`
	Title                string   `json:"title"`
	ArtistTitle          string   `json:"artist_title"`
	ArtistDisplay        string   `json:"artist_display"`
	DateDisplay          string   `json:"date_display"`
	MediumDisplay        string   `json:"medium_display"`
	PlaceOfOrigin        string   `json:"place_of_origin"`
	ImageID              string   `json:"image_id"`
	IsPublicDomain       bool     `json:"is_public_domain"`
	ClassificationTitle  string   `json:"classification_title"`
	SubjectTitles        []string `json:"subject_titles"`
	ClassificationTitles []string `json:"classification_titles"`
	TermTitles           []string `json:"term_titles"`
	MaterialTitles       []string `json:"material_titles"`
}

// ID is an artwork identifier. The catalog emits integers, but string ids
// are accepted too; both normalise to their trimmed decimal/text form.
type ID string

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier text.
func (id ID) String() string { return string(id) }

// Valid reports whether the identifier can key a collection entry.
func (id ID) Valid() bool { return strings.TrimSpace(string(id)) != "" }

// artistName prefers the short artist title and falls back to the first
// line of the display string ("Name\nNationality, dates").
func (r *Record) artistName() string {
	if a := strings.TrimSpace(r.ArtistTitle); a != "" {
		return a
	}
	first, _, _ := strings.Cut(r.ArtistDisplay, "\n")
	return strings.TrimSpace(first)
}
