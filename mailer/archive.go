package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// IMAPConfig configures IMAPArchiver.
type IMAPConfig struct {
	Address   string
	Mailbox   string
	Username  string
	Password  string
	TLS       bool
	Timeout   time.Duration
	TLSConfig *tls.Config
}

// IMAPArchiver appends a copy of every delivered message to an IMAP mailbox,
// so the organizer keeps a record of what each participant was told.
type IMAPArchiver struct {
	cfg IMAPConfig
}

// NewIMAPArchiver validates cfg.
func NewIMAPArchiver(cfg IMAPConfig) (*IMAPArchiver, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("mailer: imap address is required")
	}
	if cfg.Username == "" {
		return nil, errors.New("mailer: imap username is required")
	}
	if strings.TrimSpace(cfg.Mailbox) == "" {
		cfg.Mailbox = "Gift Exchange"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &IMAPArchiver{cfg: cfg}, nil
}

// Archive appends env.Raw as a seen message, creating the mailbox on first use.
func (a *IMAPArchiver) Archive(ctx context.Context, env Envelope) error {
	imapClient, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer imapClient.Logout()

	if _, err := imapClient.Status(a.cfg.Mailbox, []imap.StatusItem{imap.StatusMessages}); err != nil {
		if err := imapClient.Create(a.cfg.Mailbox); err != nil {
			return fmt.Errorf("mailer: creating mailbox %q failed: %w", a.cfg.Mailbox, err)
		}
	}

	if err := imapClient.Append(a.cfg.Mailbox, []string{imap.SeenFlag}, time.Now(), bytes.NewBuffer(env.Raw)); err != nil {
		return fmt.Errorf("mailer: appending to %q failed: %w", a.cfg.Mailbox, err)
	}
	return nil
}

func (a *IMAPArchiver) connect(ctx context.Context) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: a.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", a.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("mailer: IMAP dial %s failed: %w", a.cfg.Address, err)
	}
	if a.cfg.TLS {
		tlsConfig := a.cfg.TLSConfig
		if tlsConfig == nil {
			host, _, _ := net.SplitHostPort(a.cfg.Address)
			tlsConfig = &tls.Config{ServerName: host}
		}
		conn = tls.Client(conn, tlsConfig)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mailer: IMAP greeting failed: %w", err)
	}
	imapClient.Timeout = a.cfg.Timeout

	if err := imapClient.Login(a.cfg.Username, a.cfg.Password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("mailer: IMAP login failed: %w", err)
	}
	return imapClient, nil
}
