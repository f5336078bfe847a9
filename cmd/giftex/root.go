package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/spachava753/giftex/exchange"
	"github.com/spachava753/giftex/internal/app"
	"github.com/spachava753/giftex/mailer"
)

type cli struct {
	stdout       io.Writer
	stderr       io.Writer
	configPath   string
	templatePath string
	verbose      bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "giftex",
		Short:         "Draw gift exchange pairs and email everyone their giftee",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "configuration file (default $GIFTEX_CONFIG_PATH or ./config/config.json)")
	flags.StringVarP(&c.templatePath, "template", "t", "", "email template file (default $GIFTEX_TEMPLATE_PATH or the configured default_template)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "mirror the run log to stderr")

	root.AddCommand(c.runCommand(), c.remindCommand(), c.listCommand())
	return root
}

func (c *cli) runCommand() *cobra.Command {
	var (
		event   string
		execute bool
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Draw pairs and send the assignment emails",
		Long: `Draw pairs and send the assignment emails.

Without --execute this is a rehearsal: every message goes to the admin, except
those for admin and test participants, and the pairing is saved as
<event>` + app.TestEventSuffix + `. With --execute everyone gets their own message and the
event can never be drawn again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := c.open(dryRun)
			if err != nil {
				return err
			}
			defer s.close(event, &err)

			if execute {
				var snapshot exchange.Snapshot
				snapshot, err = s.app.Live(cmd.Context(), event)
				if err != nil {
					return err
				}
				c.status(color.Green, "%s run for %s: %d participants assigned", mailer.ModeLive, event, snapshot.Len())
				return nil
			}

			rehearsal, err := s.app.Test(cmd.Context(), event)
			if err != nil {
				return err
			}
			c.status(color.Green, "%s run for %s: %d participants assigned", mailer.ModeTest, event, rehearsal.Snapshot.Len())
			if !rehearsal.Saved {
				c.status(color.Yellow, "%s keeps an earlier rehearsal, this pairing was not saved", rehearsal.Event)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&event, "event", "e", "", "event name (required)")
	cmd.Flags().BoolVarP(&execute, "execute", "x", false, "really send to every participant")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print messages instead of sending them")
	return cmd
}

func (c *cli) remindCommand() *cobra.Command {
	var (
		event  string
		id     string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Resend one participant's assignment from a saved event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := c.open(dryRun)
			if err != nil {
				return err
			}
			defer s.close(event, &err)

			if err := s.app.Remind(cmd.Context(), event, id); err != nil {
				return err
			}
			c.status(color.Green, "reminder for %s sent (%s)", id, event)
			return nil
		},
	}
	cmd.Flags().StringVarP(&event, "event", "e", "", "event name (required)")
	cmd.Flags().StringVarP(&id, "id", "r", "", "participant id to remind (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the message instead of sending it")
	return cmd
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.open(true)
			if err != nil {
				return err
			}
			defer s.store.Close()

			events, err := s.app.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(events) == 0 {
				c.status(color.Yellow, "no events saved yet")
				return nil
			}

			table := tablewriter.NewWriter(c.stdout)
			table.SetHeader([]string{"Event", "Kind"})
			table.SetAutoWrapText(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetBorder(false)
			for _, event := range events {
				kind := "live"
				if strings.HasSuffix(event, app.TestEventSuffix) {
					kind = "test"
				}
				table.Append([]string{event, kind})
			}
			table.Render()
			return nil
		},
	}
}

func (c *cli) status(style color.Color, format string, args ...any) {
	fmt.Fprintln(c.stdout, style.Sprintf(format, args...))
}

// close records the outcome, saves the run log next to the event and closes
// the store. Failures are joined onto *err.
func (s *session) close(event string, err *error) {
	log := s.recorder.Logger().With("component", "main")
	if *err != nil {
		log.Error("run failed", "error", *err)
	} else {
		log.Info("run finished")
	}

	name := filepath.Base(strings.TrimSpace(event))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	if saveErr := s.recorder.Save(s.fs, s.file.Logger.LogPath, name); saveErr != nil {
		*err = errors.Join(*err, saveErr)
	}
	if closeErr := s.store.Close(); closeErr != nil {
		*err = errors.Join(*err, closeErr)
	}
}
