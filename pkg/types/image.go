// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package types

// Image is a fetched, decode-checked image ready for embedding.
type Image struct {
	Ref      string
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}
