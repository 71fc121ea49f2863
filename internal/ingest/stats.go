// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package ingest

import (
	"github.com/artlens/artlens/pkg/types"
)

// Outcome classifies what happened to one modality of one record.
type Outcome int

const (
	OutcomeSaved Outcome = iota
	// OutcomeSkippedEmpty means the input produced no vector, usually blank
	// text. It is not a failure.
	OutcomeSkippedEmpty
	// OutcomeSkippedIneligible means the record has no usable image.
	OutcomeSkippedIneligible
	// OutcomeSkippedDone means the resume ledger already holds the unit.
	OutcomeSkippedDone
	OutcomeEmbedFailed
	OutcomeFetchFailed
	OutcomeStoreFailed
	OutcomeMissingID
)

var outcomeNames = [...]string{
	OutcomeSaved:             "saved",
	OutcomeSkippedEmpty:      "skipped_empty",
	OutcomeSkippedIneligible: "skipped_ineligible",
	OutcomeSkippedDone:       "skipped_done",
	OutcomeEmbedFailed:       "embed_failed",
	OutcomeFetchFailed:       "fetch_failed",
	OutcomeStoreFailed:       "store_failed",
	OutcomeMissingID:         "missing_id",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Failed reports whether the outcome is an error rather than a skip.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeEmbedFailed, OutcomeFetchFailed, OutcomeStoreFailed, OutcomeMissingID:
		return true
	default:
		return false
	}
}

// ModalityStats counts outcomes for one modality.
type ModalityStats struct {
	Saved             int `json:"saved" yaml:"saved"`
	SkippedEmpty      int `json:"skipped_empty" yaml:"skipped_empty"`
	SkippedIneligible int `json:"skipped_ineligible" yaml:"skipped_ineligible"`
	SkippedDone       int `json:"skipped_done" yaml:"skipped_done"`
	EmbedFailed       int `json:"embed_failed" yaml:"embed_failed"`
	FetchFailed       int `json:"fetch_failed" yaml:"fetch_failed"`
	StoreFailed       int `json:"store_failed" yaml:"store_failed"`
}

func (s *ModalityStats) add(o Outcome) {
	switch o {
	case OutcomeSaved:
		s.Saved++
	case OutcomeSkippedEmpty:
		s.SkippedEmpty++
	case OutcomeSkippedIneligible:
		s.SkippedIneligible++
	case OutcomeSkippedDone:
		s.SkippedDone++
	case OutcomeEmbedFailed:
		s.EmbedFailed++
	case OutcomeFetchFailed:
		s.FetchFailed++
	case OutcomeStoreFailed:
		s.StoreFailed++
	}
}

// Failures is the number of units that failed rather than being skipped.
func (s ModalityStats) Failures() int {
	return s.EmbedFailed + s.FetchFailed + s.StoreFailed
}

// Stats aggregates a run. Processed counts every record read from the
// source, including those without an identifier.
type Stats struct {
	RunID          string        `json:"run_id" yaml:"run_id"`
	Processed      int           `json:"processed" yaml:"processed"`
	ParseFailures  int           `json:"parse_failures" yaml:"parse_failures"`
	SourceFailures int           `json:"source_failures" yaml:"source_failures"`
	MissingIDs     int           `json:"missing_ids" yaml:"missing_ids"`
	Text           ModalityStats `json:"text" yaml:"text"`
	Image          ModalityStats `json:"image" yaml:"image"`
}

// SavedText is the number of entries written to the text collection.
func (s Stats) SavedText() int { return s.Text.Saved }

// SavedImage is the number of entries written to the image collection.
func (s Stats) SavedImage() int { return s.Image.Saved }

func (s *Stats) record(m types.Modality, o Outcome) {
	switch m {
	case types.ModalityText:
		s.Text.add(o)
	case types.ModalityImage:
		s.Image.add(o)
	}
}
