package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/nalgeon/be"
	"github.com/spf13/afero"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "giftex.db"))
	be.Err(t, err, nil)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	be.Err(t, err, nil)

	stores := map[string]Store{
		"file":   NewFileStore(afero.NewMemMapFs(), "/state"),
		"sqlite": sqlite,
		"badger": NewBadgerStore(db),
	}
	t.Cleanup(func() {
		for _, store := range stores {
			store.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	pairs := map[string]string{"ann": "bob", "bob": "cat", "cat": "ann"}

	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			events, err := store.List(ctx)
			be.Err(t, err, nil)
			be.Equal(t, len(events), 0)

			ok, err := store.Exists(ctx, "xmas-2026")
			be.Err(t, err, nil)
			be.Equal(t, ok, false)

			_, err = store.Load(ctx, "xmas-2026")
			be.Err(t, err, ErrEventNotFound)

			be.Err(t, store.Create(ctx, "xmas-2026", pairs), nil)
			be.Err(t, store.Create(ctx, "birthday", map[string]string{"ann": "bob", "bob": "ann"}), nil)

			ok, err = store.Exists(ctx, "xmas-2026")
			be.Err(t, err, nil)
			be.Equal(t, ok, true)

			loaded, err := store.Load(ctx, "xmas-2026")
			be.Err(t, err, nil)
			be.Equal(t, loaded, pairs)

			err = store.Create(ctx, "xmas-2026", map[string]string{"ann": "cat"})
			be.Err(t, err, ErrEventExists)
			loaded, err = store.Load(ctx, "xmas-2026")
			be.Err(t, err, nil)
			be.Equal(t, loaded, pairs)

			events, err = store.List(ctx)
			be.Err(t, err, nil)
			be.Equal(t, events, []string{"birthday", "xmas-2026"})
		})
	}
}

func TestStoreRejectsInvalidEvent(t *testing.T) {
	ctx := context.Background()
	for name, store := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, event := range []string{"", "  ", " xmas", "xmas\n", "../etc", "a/b", ".."} {
				be.Err(t, store.Create(ctx, event, map[string]string{}), ErrInvalidEvent)
				_, err := store.Load(ctx, event)
				be.Err(t, err, ErrInvalidEvent)
			}
		})
	}
}

func TestFileStoreWritesPrettyJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs, "/var/giftex")
	be.Err(t, store.Create(context.Background(), "xmas", map[string]string{"ann": "bob", "bob": "ann"}), nil)

	data, err := afero.ReadFile(fs, "/var/giftex/xmas.state")
	be.Err(t, err, nil)
	be.Equal(t, string(data), "{\n  \"ann\": \"bob\",\n  \"bob\": \"ann\"\n}")

	be.Err(t, afero.WriteFile(fs, "/var/giftex/notes.txt", []byte("x"), 0o644), nil)
	events, err := store.List(context.Background())
	be.Err(t, err, nil)
	be.Equal(t, events, []string{"xmas"})
}

type failingWriteFs struct{ afero.Fs }

func (f failingWriteFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return failingWriteFile{file}, nil
}

type failingWriteFile struct{ afero.File }

func (failingWriteFile) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestFileStoreRemovesPartialWrite(t *testing.T) {
	ctx := context.Background()
	base := afero.NewMemMapFs()

	err := NewFileStore(failingWriteFs{base}, "/var/giftex").Create(ctx, "xmas", map[string]string{"ann": "bob"})
	be.Err(t, err, "disk full")

	store := NewFileStore(base, "/var/giftex")
	ok, err := store.Exists(ctx, "xmas")
	be.Err(t, err, nil)
	be.Equal(t, ok, false)
	be.Err(t, store.Create(ctx, "xmas", map[string]string{"ann": "bob", "bob": "ann"}), nil)
}

func TestOpen(t *testing.T) {
	store, err := Open(Options{Backend: BackendFile, Path: "/state", Fs: afero.NewMemMapFs()})
	be.Err(t, err, nil)
	be.Err(t, store.Close(), nil)

	store, err = Open(Options{Backend: BackendBadger, Path: t.TempDir()})
	be.Err(t, err, nil)
	be.Err(t, store.Close(), nil)

	store, err = Open(Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "state.db")})
	be.Err(t, err, nil)
	be.Err(t, store.Close(), nil)

	_, err = Open(Options{Backend: "mongo", Path: "/state"})
	be.Err(t, err, ErrUnknownBackend)

	_, err = Open(Options{Backend: BackendFile})
	be.Err(t, err, "path is required")
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewFileStore(afero.NewMemMapFs(), "/state")
	be.Err(t, store.Create(ctx, "xmas", map[string]string{}), context.Canceled)
}
