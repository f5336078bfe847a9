// Package runlog records one run's log lines so they can be saved next to the
// event they belong to.
//
// A Recorder is a slog.Handler sink: every record is kept in memory and, when
// a console writer is supplied, mirrored to it. Save appends the buffered run
// to "<dir>/<event>.log" under a dated banner.
package runlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Recorder buffers a run's log output.
type Recorder struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	runID  string
	logger *slog.Logger
	now    func() time.Time
}

// New returns a recorder logging at level. console may be nil.
func New(level slog.Leveler, console io.Writer) *Recorder {
	r := &Recorder{
		runID: uuid.NewString(),
		now:   time.Now,
	}
	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(&lockedWriter{r: r}, opts)}
	if console != nil {
		handlers = append(handlers, slog.NewTextHandler(console, opts))
	}
	r.logger = slog.New(fanout(handlers)).With("run", r.runID)
	return r
}

// RunID identifies this run in every line and in test-mode emails.
func (r *Recorder) RunID() string {
	return r.runID
}

// Logger returns the run logger.
func (r *Recorder) Logger() *slog.Logger {
	return r.logger
}

// String returns everything logged so far.
func (r *Recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// Save appends the run's lines to <dir>/<event>.log on fs.
func (r *Recorder) Save(fs afero.Fs, dir, event string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("runlog: log directory is required")
	}
	if strings.TrimSpace(event) == "" {
		event = "giftex"
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("runlog: creating %s failed: %w", dir, err)
	}

	path := filepath.Join(dir, event+".log")
	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("runlog: opening %s failed: %w", path, err)
	}
	banner := fmt.Sprintf("\n\n%s ========================================\n\n", r.now().Format(time.RFC3339))
	if _, err := io.WriteString(file, banner+r.String()); err != nil {
		file.Close()
		return fmt.Errorf("runlog: writing %s failed: %w", path, err)
	}
	return file.Close()
}

type lockedWriter struct {
	r *Recorder
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.r.mu.Lock()
	defer w.r.mu.Unlock()
	return w.r.buf.Write(p)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
