// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package artwork

import (
	"fmt"
	"slices"
	"strings"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// ImagePolicy decides which records are eligible for image embedding.
type ImagePolicy string

const (
	// ImagePolicyStrict requires an image reference and the public-domain flag.
	ImagePolicyStrict ImagePolicy = "strict"
	// ImagePolicyRelaxed requires only an image reference. Used for
	// full-catalog runs.
	ImagePolicyRelaxed ImagePolicy = "relaxed"
)

// Valid reports whether p is a known policy.
func (p ImagePolicy) Valid() bool {
	return p == ImagePolicyStrict || p == ImagePolicyRelaxed
}

// ParseImagePolicy parses a case-insensitive policy name.
func ParseImagePolicy(s string) (ImagePolicy, error) {
	p := ImagePolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", artlenserr.Errorf(artlenserr.CodeConfigValidateInvalidValue,
			"invalid image policy %q: use strict or relaxed", s)
	}
	return p, nil
}

// Normalized is the modality-ready view of a Record.
type Normalized struct {
	ID            ID
	Text          string
	ImageEligible bool
	ImageRef      string
}

// Normalizer converts records into embedding text and an image decision.
// The zero value uses the strict image policy with the synthetic text
// fallback enabled.
type Normalizer struct {
	ImagePolicy ImagePolicy
	// NoTextFallback disables the "Artwork <id>" text for records whose
	// descriptive fields are all empty.
	NoTextFallback bool
}

// Normalize never fails; absent fields are treated as empty.
func (n Normalizer) Normalize(r *Record) Normalized {
	if r == nil {
		return Normalized{}
	}

	text := EmbeddingText(r)
	if text == "" && !n.NoTextFallback {
		text = fallbackText(r.ID)
	}

	ref := strings.TrimSpace(r.ImageID)
	eligible := ref != ""
	if eligible && n.ImagePolicy != ImagePolicyRelaxed {
		eligible = r.IsPublicDomain
	}

	out := Normalized{ID: r.ID, Text: text, ImageEligible: eligible}
	if eligible {
		out.ImageRef = ref
	}
	return out
}

// EmbeddingText composes the canonical text of a record:
//
//	<title>
//	<classification> <medium> by <artist> from <date> (<place>)
//	Tags: <sorted, de-duplicated tags>
//
// Lines and parts whose fields are empty are omitted. The result is empty
// when the record has no descriptive fields at all.
func EmbeddingText(r *Record) string {
	var lines []string

	if title := strings.TrimSpace(r.Title); title != "" {
		lines = append(lines, title)
	}

	var desc []string
	if c := strings.TrimSpace(r.ClassificationTitle); c != "" {
		desc = append(desc, c)
	}
	if m := strings.TrimSpace(r.MediumDisplay); m != "" {
		desc = append(desc, m)
	}
	if a := r.artistName(); a != "" {
		desc = append(desc, "by "+a)
	}
	if d := strings.TrimSpace(r.DateDisplay); d != "" {
		desc = append(desc, "from "+d)
	}
	if p := strings.TrimSpace(r.PlaceOfOrigin); p != "" {
		desc = append(desc, "("+p+")")
	}
	if len(desc) > 0 {
		lines = append(lines, strings.Join(desc, " "))
	}

	if tags := Tags(r); len(tags) > 0 {
		lines = append(lines, "Tags: "+strings.Join(tags, ", "))
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Tags returns the lexicographically sorted union of the record's subject,
// classification, term and material lists with blanks removed.
func Tags(r *Record) []string {
	seen := make(map[string]struct{})
	for _, list := range [][]string{r.SubjectTitles, r.ClassificationTitles, r.TermTitles, r.MaterialTitles} {
		for _, t := range list {
			if t = strings.TrimSpace(t); t != "" {
				seen[t] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

func fallbackText(id ID) string {
	return strings.TrimSpace(fmt.Sprintf("Artwork %s", id))
}
