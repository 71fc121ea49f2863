// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

package artwork

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	artlenserr "github.com/artlens/artlens/pkg/errors"
)

// maxLineBytes bounds a single JSONL line.
const maxLineBytes = 16 << 20

// sourceExtensions are the file suffixes read from a source directory.
var sourceExtensions = []string{".json", ".jsonl", ".ndjson"}

// Records yields every record found in the files of dir, in file-name
// order. Each file is either a JSON array of records, a single record, an
// API page ({"data": [...]}), or newline-delimited records optionally
// wrapped in {"data": {...}}.
//
// Malformed records are yielded as errors carrying
// CodeIngestRecordParseFailure together with the file and line; iteration
// continues with the next record. Unreadable files yield
// CodeIngestSourceReadFailure and are skipped.
func Records(ctx context.Context, dir string) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		files, err := sourceFiles(dir)
		if err != nil {
			yield(nil, err)
			return
		}

		for _, path := range files {
			if ctx.Err() != nil {
				return
			}
			slog.Info("loading artworks", "path", path)
			if !readFile(ctx, path, yield) {
				return
			}
		}
	}
}

// Collect drains a record sequence, logging and dropping parse failures.
// It is meant for small inputs such as tests and one-off scripts.
func Collect(seq iter.Seq2[*Record, error]) []*Record {
	var out []*Record
	for rec, err := range seq {
		if err != nil {
			slog.Warn("skipping unreadable record", "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func sourceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeIngestSourceReadFailure, "reading source directory",
			artlenserr.Field("dir", dir))
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if slices.Contains(sourceExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// readFile yields the records of one file and reports whether the consumer
// wants more.
func readFile(ctx context.Context, path string, yield func(*Record, error) bool) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return yield(nil, artlenserr.Wrap(err, artlenserr.CodeIngestSourceReadFailure, "reading source file",
			artlenserr.Field("path", path)))
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return true
	}
	if json.Valid(trimmed) {
		return readDocument(ctx, path, trimmed, yield)
	}
	return readLines(ctx, path, data, yield)
}

func readDocument(ctx context.Context, path string, data []byte, yield func(*Record, error) bool) bool {
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return yield(nil, parseFailure(err, path, 0))
		}
		return yieldItems(ctx, path, items, yield)

	case '{':
		var page struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &page); err == nil && len(bytes.TrimSpace(page.Data)) > 0 && bytes.TrimSpace(page.Data)[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(page.Data, &items); err != nil {
				return yield(nil, parseFailure(err, path, 0))
			}
			return yieldItems(ctx, path, items, yield)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return yield(nil, parseFailure(err, path, 1))
		}
		return yield(rec, nil)

	default:
		return yield(nil, parseFailure(
			artlenserr.New(artlenserr.CodeIngestRecordParseFailure, "top-level JSON value is not an object or array"),
			path, 1))
	}
}

func yieldItems(ctx context.Context, path string, items []json.RawMessage, yield func(*Record, error) bool) bool {
	for i, raw := range items {
		if ctx.Err() != nil {
			return false
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			if !yield(nil, parseFailure(err, path, i+1)) {
				return false
			}
			continue
		}
		if !yield(rec, nil) {
			return false
		}
	}
	return true
}

func readLines(ctx context.Context, path string, data []byte, yield func(*Record, error) bool) bool {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		if ctx.Err() != nil {
			return false
		}
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}

		rec, err := decodeRecord(text)
		if err != nil {
			if !yield(nil, parseFailure(err, path, line)) {
				return false
			}
			continue
		}
		if !yield(rec, nil) {
			return false
		}
	}
	if err := sc.Err(); err != nil {
		return yield(nil, artlenserr.Wrap(err, artlenserr.CodeIngestSourceReadFailure, "scanning source file",
			artlenserr.Field("path", path), artlenserr.Field("line", line)))
	}
	return true
}

// decodeRecord decodes one record, unwrapping an optional {"data": {...}}
// envelope.
func decodeRecord(raw []byte) (*Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, artlenserr.New(artlenserr.CodeIngestRecordParseFailure, "record is not a JSON object")
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
		raw = d
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseFailure(err error, path string, line int) error {
	return artlenserr.Wrap(err, artlenserr.CodeIngestRecordParseFailure, "parsing artwork record",
		artlenserr.Field("path", path), artlenserr.Field("line", line))
}
