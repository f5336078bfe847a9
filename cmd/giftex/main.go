// Command giftex draws gift exchange pairs and emails every participant their
// giftee.
//
//	giftex run -e xmas-2026            # rehearsal: mail goes to admin/test accounts
//	giftex run -e xmas-2026 --execute  # the real thing
//	giftex remind -e xmas-2026 -r bob  # resend bob's assignment
//	giftex list                        # show past events
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.Red.Sprint("giftex:"), err)
		stop()
		os.Exit(1)
	}
}
