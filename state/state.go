// Package state persists committed pairings keyed by event name.
//
// A pairing is written once. Create refuses to overwrite an existing event so
// that a live exchange can never be silently re-drawn. Three backends share
// the Store contract:
//
//   - file: one pretty-printed JSON "<event>.state" file per event.
//   - sqlite: a single SQLite database (github.com/mattn/go-sqlite3, CGO).
//   - badger: a BadgerDB directory.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrEventExists is returned by Create when the event already has a pairing.
	ErrEventExists = errors.New("state: event already exists and cannot be overwritten")
	// ErrEventNotFound is returned by Load for unknown events.
	ErrEventNotFound = errors.New("state: event not found")
	// ErrInvalidEvent is returned for empty or path-like event names.
	ErrInvalidEvent = errors.New("state: invalid event name")
	// ErrUnknownBackend is returned by Open.
	ErrUnknownBackend = errors.New("state: unknown backend")
)

// Store persists giver -> giftee pairings.
type Store interface {
	Create(ctx context.Context, event string, pairs map[string]string) error
	Load(ctx context.Context, event string) (map[string]string, error)
	Exists(ctx context.Context, event string) (bool, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
)

// Options selects and configures a backend.
//
// Path is a directory for file and badger, and a database file for sqlite.
// Fs is only used by the file backend and defaults to the OS filesystem.
type Options struct {
	Backend Backend
	Path    string
	Fs      afero.Fs
}

// Open opens the configured backend.
func Open(opts Options) (Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("state: path is required")
	}
	switch opts.Backend {
	case BackendFile, "":
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFileStore(fs, opts.Path), nil
	case BackendSQLite:
		return OpenSQLite(opts.Path)
	case BackendBadger:
		return OpenBadger(opts.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// validateEvent accepts names usable as a file name. Surrounding whitespace
// is rejected so " xmas" can never become a second xmas.
func validateEvent(event string) error {
	if strings.TrimSpace(event) != event || event == "" || strings.ContainsAny(event, `/\`) || event == "." || event == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidEvent, event)
	}
	return nil
}
