// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package types

// Modality names one of the two embedding spaces an artwork is indexed in.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == ModalityText || m == ModalityImage
}

// ArtworkHit is the flat, display-ready search result consumed by front ends.
type ArtworkHit struct {
	ID      string `json:"id" doc:"Artwork identifier"`
	Title   string `json:"title" doc:"Artwork title"`
	Artist  string `json:"artist" doc:"Artist display name"`
	ImageID string `json:"image_id" doc:"IIIF image reference, empty when the artwork has none"`
	Rank    int    `json:"rank" doc:"1-based similarity rank"`
}
