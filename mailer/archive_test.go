package mailer

import (
	"context"
	"net"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/nalgeon/be"
)

// The memory backend ships a single "username"/"password" account.
func startIMAPServer(t *testing.T) string {
	t.Helper()
	srv := server.New(memory.New())
	srv.AllowInsecureAuth = true

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	be.Err(t, err, nil)
	go srv.Serve(listener)
	t.Cleanup(func() { srv.Close() })
	return listener.Addr().String()
}

func mailboxMessages(t *testing.T, address, mailbox string) uint32 {
	t.Helper()
	c, err := client.Dial(address)
	be.Err(t, err, nil)
	defer c.Logout()
	be.Err(t, c.Login("username", "password"), nil)
	status, err := c.Status(mailbox, []imap.StatusItem{imap.StatusMessages})
	be.Err(t, err, nil)
	return status.Messages
}

func TestIMAPArchiverAppends(t *testing.T) {
	address := startIMAPServer(t)
	archiver, err := NewIMAPArchiver(IMAPConfig{
		Address:  address,
		Mailbox:  "Gift Exchange",
		Username: "username",
		Password: "password",
	})
	be.Err(t, err, nil)

	be.Err(t, archiver.Archive(context.Background(), testEnvelope(t)), nil)
	be.Equal(t, mailboxMessages(t, address, "Gift Exchange"), uint32(1))

	be.Err(t, archiver.Archive(context.Background(), testEnvelope(t)), nil)
	be.Equal(t, mailboxMessages(t, address, "Gift Exchange"), uint32(2))
}

func TestIMAPArchiverExistingMailbox(t *testing.T) {
	address := startIMAPServer(t)
	before := mailboxMessages(t, address, "INBOX")

	archiver, err := NewIMAPArchiver(IMAPConfig{Address: address, Mailbox: "INBOX", Username: "username", Password: "password"})
	be.Err(t, err, nil)
	be.Err(t, archiver.Archive(context.Background(), testEnvelope(t)), nil)
	be.Equal(t, mailboxMessages(t, address, "INBOX"), before+1)
}

func TestIMAPArchiverLoginFailure(t *testing.T) {
	address := startIMAPServer(t)
	archiver, err := NewIMAPArchiver(IMAPConfig{Address: address, Username: "username", Password: "nope"})
	be.Err(t, err, nil)
	be.Err(t, archiver.Archive(context.Background(), testEnvelope(t)), "IMAP login failed")
}

func TestNewIMAPArchiverValidates(t *testing.T) {
	_, err := NewIMAPArchiver(IMAPConfig{Username: "username"})
	be.Err(t, err, "imap address is required")
	_, err = NewIMAPArchiver(IMAPConfig{Address: "imap.example.com:993"})
	be.Err(t, err, "imap username is required")

	archiver, err := NewIMAPArchiver(IMAPConfig{Address: "imap.example.com:993", Username: "santa"})
	be.Err(t, err, nil)
	be.Equal(t, archiver.cfg.Mailbox, "Gift Exchange")
}
