package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
)

// DisplayTransport writes messages to a writer instead of sending them.
type DisplayTransport struct {
	mu sync.Mutex
	w  io.Writer
}

// NewDisplayTransport returns a transport printing to w.
func NewDisplayTransport(w io.Writer) *DisplayTransport {
	return &DisplayTransport{w: w}
}

// Deliver prints env with a header line naming its recipients.
func (t *DisplayTransport) Deliver(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	header := fmt.Sprintf("==> message for %s", strings.Join(env.To, ", "))
	body := strings.ReplaceAll(string(env.Raw), "\r\n", "\n")
	if _, err := fmt.Fprintf(t.w, "%s\n%s\n", color.Bold.Sprint(header), body); err != nil {
		return fmt.Errorf("mailer: displaying message failed: %w", err)
	}
	return nil
}
