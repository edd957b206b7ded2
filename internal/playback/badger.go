// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cowatch/internal/logging"
)

const badgerKeyPrefix = "playback/"

// BadgerStore persists playback state in BadgerDB so it survives restarts.
// Each compare-and-swap is one read-write transaction; a conflicting
// concurrent transaction surfaces as ErrStaleVersion.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a store at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", path).Msg("playback store opened")
	return &BadgerStore{db: db}, nil
}

func badgerKey(roomID string) []byte {
	return []byte(badgerKeyPrefix + roomID)
}

// Load implements Store.
func (s *BadgerStore) Load(_ context.Context, roomID string) (State, error) {
	var st State
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		st, err = readState(txn, roomID)
		return err
	})
	if err != nil {
		return State{}, err
	}
	return st, nil
}

// CompareAndSwap implements Store.
func (s *BadgerStore) CompareAndSwap(_ context.Context, expectedVersion uint64, next State) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readState(txn, next.RoomID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: expected %d, current %d", ErrStaleVersion, expectedVersion, current.Version)
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal playback state: %w", err)
		}
		return txn.Set(badgerKey(next.RoomID), data)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: concurrent write", ErrStaleVersion)
	}
	return err
}

// readState reads a room's state inside txn.
func readState(txn *badger.Txn, roomID string) (State, error) {
	item, err := txn.Get(badgerKey(roomID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return NewState(roomID), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get playback state: %w", err)
	}

	var st State
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &st)
	})
	if err != nil {
		return State{}, fmt.Errorf("unmarshal playback state: %w", err)
	}
	return st, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
