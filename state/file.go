package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

const stateExt = ".state"

// FileStore keeps one JSON file per event under a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore returns a store rooted at dir on fs. The directory is created
// on the first Create.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: filepath.Clean(dir)}
}

func (s *FileStore) path(event string) string {
	return filepath.Join(s.dir, event+stateExt)
}

// Create writes the pairing for event unless a file already exists.
func (s *FileStore) Create(ctx context.Context, event string, pairs map[string]string) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("state: creating %s failed: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encoding %s failed: %w", event, err)
	}

	file, err := s.fs.OpenFile(s.path(event), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrEventExists, event)
		}
		return fmt.Errorf("state: creating %s failed: %w", s.path(event), err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		s.fs.Remove(s.path(event))
		return fmt.Errorf("state: writing %s failed: %w", s.path(event), err)
	}
	if err := file.Close(); err != nil {
		s.fs.Remove(s.path(event))
		return fmt.Errorf("state: closing %s failed: %w", s.path(event), err)
	}
	return nil
}

// Load reads the pairing for event.
func (s *FileStore) Load(ctx context.Context, event string) (map[string]string, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(event))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, event)
		}
		return nil, fmt.Errorf("state: reading %s failed: %w", s.path(event), err)
	}
	pairs := map[string]string{}
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("state: decoding %s failed: %w", s.path(event), err)
	}
	return pairs, nil
}

// Exists reports whether event has a state file.
func (s *FileStore) Exists(ctx context.Context, event string) (bool, error) {
	if err := validateEvent(event); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, s.path(event))
}

// List returns every event with a state file, sorted. A missing directory
// yields no events.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("state: listing %s failed: %w", s.dir, err)
	}
	events := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), stateExt) {
			continue
		}
		events = append(events, strings.TrimSuffix(entry.Name(), stateExt))
	}
	slices.Sort(events)
	return events, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
