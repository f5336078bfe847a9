package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const badgerEventPrefix = "event:"

// BadgerStore keeps one JSON-encoded pairing per event key.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a BadgerDB directory at dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("state: opening badger database failed: %w", err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an already opened database. Close closes db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func badgerKey(event string) []byte {
	return []byte(badgerEventPrefix + event)
}

// Create stores the pairing unless the event key already exists.
func (s *BadgerStore) Create(ctx context.Context, event string, pairs map[string]string) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("state: encoding %s failed: %w", event, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(event)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrEventExists, event)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("state: badger lookup failed: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Load reads the pairing of event.
func (s *BadgerStore) Load(ctx context.Context, event string) (map[string]string, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs := map[string]string{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(event))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &pairs)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, event)
	}
	if err != nil {
		return nil, fmt.Errorf("state: badger read failed: %w", err)
	}
	return pairs, nil
}

// Exists reports whether the event key is present.
func (s *BadgerStore) Exists(ctx context.Context, event string) (bool, error) {
	if err := validateEvent(event); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(event))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state: badger lookup failed: %w", err)
	}
	return true, nil
}

// List scans the event prefix and returns names sorted.
func (s *BadgerStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerEventPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			events = append(events, strings.TrimPrefix(string(it.Item().Key()), badgerEventPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("state: badger scan failed: %w", err)
	}
	slices.Sort(events)
	return events, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
