// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Artlens Contributors

// Package ledger records which (modality, artwork) units an ingestion run
// has saved, so an interrupted run can resume without re-embedding them.
package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	artlenserr "github.com/artlens/artlens/pkg/errors"
	"github.com/artlens/artlens/pkg/types"
)

var buckets = map[types.Modality][]byte{
	types.ModalityText:  []byte("text"),
	types.ModalityImage: []byte("image"),
}

// Mark is the value stored for a saved unit.
type Mark struct {
	RunID   string    `json:"run_id"`
	SavedAt time.Time `json:"saved_at"`
}

// Ledger is a bbolt-backed skip-list.
type Ledger struct {
	db *bbolt.DB
}

// Open opens or creates the ledger file at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeIngestLedgerFailure, "creating ledger directory",
			artlenserr.Field("path", path))
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeIngestLedgerFailure, "opening ledger",
			artlenserr.Field("path", path))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, artlenserr.Wrap(err, artlenserr.CodeIngestLedgerFailure, "creating ledger buckets")
	}
	return &Ledger{db: db}, nil
}

// Done reports whether the unit was saved by an earlier run.
func (l *Ledger) Done(modality types.Modality, id string) (bool, error) {
	name, err := bucket(modality)
	if err != nil {
		return false, err
	}
	var found bool
	err = l.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(name).Get([]byte(id)) != nil
		return nil
	})
	return found, err
}

// Get returns the mark for a unit, if any.
func (l *Ledger) Get(modality types.Modality, id string) (*Mark, error) {
	name, err := bucket(modality)
	if err != nil {
		return nil, err
	}
	var m *Mark
	err = l.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(name).Get([]byte(id))
		if data == nil {
			return nil
		}
		m = &Mark{}
		return json.Unmarshal(data, m)
	})
	if err != nil {
		return nil, artlenserr.Wrap(err, artlenserr.CodeIngestLedgerFailure, "reading ledger mark",
			artlenserr.FieldArtworkID(id))
	}
	return m, nil
}

// Mark records a saved unit.
func (l *Ledger) Mark(modality types.Modality, id, runID string) error {
	name, err := bucket(modality)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Mark{RunID: runID, SavedAt: time.Now().UTC()})
	if err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeIngestLedgerFailure, "encoding ledger mark")
	}
	err = l.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(name).Put([]byte(id), data)
	})
	if err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeIngestLedgerFailure, "writing ledger mark",
			artlenserr.FieldArtworkID(id), artlenserr.FieldModality(string(modality)))
	}
	return nil
}

// Count returns the number of saved units of a modality.
func (l *Ledger) Count(modality types.Modality) (int, error) {
	name, err := bucket(modality)
	if err != nil {
		return 0, err
	}
	var n int
	err = l.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(name).Stats().KeyN
		return nil
	})
	return n, err
}

// Reset forgets every mark.
func (l *Ledger) Reset() error {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return artlenserr.Wrap(err, artlenserr.CodeIngestLedgerFailure, "resetting ledger")
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func bucket(m types.Modality) ([]byte, error) {
	name, ok := buckets[m]
	if !ok {
		return nil, artlenserr.New(artlenserr.CodeIngestLedgerFailure, "unknown modality",
			artlenserr.FieldModality(string(m)))
	}
	return name, nil
}
