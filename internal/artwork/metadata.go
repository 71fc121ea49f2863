// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package artwork

import (
	"fmt"
	"strings"

	"github.com/artlens/artlens/pkg/types"
)

// Metadata keys stored alongside every collection entry.
const (
	MetaType        = "type"
	MetaImageID     = "image_id"
	MetaTitle       = "title"
	MetaArtistTitle = "artist_title"
	MetaDateDisplay = "date_display"
)

// Placeholders substituted for missing metadata so readers never see null.
const (
	UnknownTitle  = "Unknown title"
	UnknownArtist = "Unknown artist"
	UnknownDate   = "Unknown date"
)

// Metadata builds the sanitized metadata for a record's entry in the given
// modality's collection. Every value is a non-nil string; image_id is empty
// rather than a placeholder so consumers never try to fetch a fake image.
func Metadata(r *Record, modality types.Modality) map[string]any {
	return map[string]any{
		MetaType:        string(modality),
		MetaImageID:     strings.TrimSpace(r.ImageID),
		MetaTitle:       orDefault(r.Title, UnknownTitle),
		MetaArtistTitle: orDefault(r.artistName(), UnknownArtist),
		MetaDateDisplay: orDefault(r.DateDisplay, UnknownDate),
	}
}

// Hit flattens stored metadata into a display-ready result. Missing or
// non-string values fall back to the same placeholders used at write time,
// with the title falling back to "Artwork <id>".
func Hit(id string, rank int, meta map[string]any) types.ArtworkHit {
	title := metaString(meta, MetaTitle)
	if title == "" || title == UnknownTitle {
		title = fmt.Sprintf("Artwork %s", id)
	}
	return types.ArtworkHit{
		ID:      id,
		Title:   title,
		Artist:  orDefault(metaString(meta, MetaArtistTitle), UnknownArtist),
		ImageID: metaString(meta, MetaImageID),
		Rank:    rank,
	}
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	s, _ := meta[key].(string)
	return strings.TrimSpace(s)
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
