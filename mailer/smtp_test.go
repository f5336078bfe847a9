package mailer

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/nalgeon/be"
)

type receivedMail struct {
	from string
	to   []string
	data string
	user string
}

type smtpBackend struct {
	mu       sync.Mutex
	received []receivedMail
	password string
}

func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{backend: b}, nil
}

func (b *smtpBackend) messages() []receivedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]receivedMail(nil), b.received...)
}

type smtpSession struct {
	backend *smtpBackend
	current receivedMail
}

func (s *smtpSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *smtpSession) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.current.user = username
		return nil
	}), nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)
	s.backend.mu.Lock()
	s.backend.received = append(s.backend.received, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *smtpSession) Reset() {
	s.current = receivedMail{user: s.current.user}
}

func (s *smtpSession) Logout() error {
	return nil
}

func startSMTPServer(t *testing.T, password string) (*smtpBackend, string, int) {
	t.Helper()
	backend := &smtpBackend{password: password}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	be.Err(t, err, nil)
	go server.Serve(listener)
	t.Cleanup(func() { server.Close() })

	host, portText, err := net.SplitHostPort(listener.Addr().String())
	be.Err(t, err, nil)
	port, err := strconv.Atoi(portText)
	be.Err(t, err, nil)
	return backend, host, port
}

func testEnvelope(t *testing.T) Envelope {
	t.Helper()
	env, err := buildEnvelope(Message{
		From:     sender,
		To:       []string{"bob@example.com"},
		Subject:  "2026 Gift Exchange",
		TextBody: "Hi Bob,\nyou are buying a gift for Dan.",
	})
	be.Err(t, err, nil)
	return env
}

func TestSMTPTransportDelivers(t *testing.T) {
	backend, host, port := startSMTPServer(t, "hunter2")
	transport, err := NewSMTPTransport(SMTPConfig{
		Host:     host,
		Port:     port,
		Helo:     "giftex.local",
		Security: SecurityNone,
		Auth:     AuthPlain,
		Username: "santa@example.com",
		Password: "hunter2",
	})
	be.Err(t, err, nil)

	env := testEnvelope(t)
	be.Err(t, transport.Deliver(context.Background(), env), nil)

	received := backend.messages()
	be.Equal(t, len(received), 1)
	be.Equal(t, received[0].from, "santa@example.com")
	be.Equal(t, received[0].to, []string{"bob@example.com"})
	be.Equal(t, received[0].user, "santa@example.com")
	be.Equal(t, received[0].data, string(env.Raw))
}

func TestSMTPTransportRejectsBadCredentials(t *testing.T) {
	backend, host, port := startSMTPServer(t, "hunter2")
	transport, err := NewSMTPTransport(SMTPConfig{
		Host:     host,
		Port:     port,
		Security: SecurityNone,
		Username: "santa@example.com",
		Password: "wrong",
	})
	be.Err(t, err, nil)

	err = transport.Deliver(context.Background(), testEnvelope(t))
	be.Err(t, err, "SMTP auth failed")
	be.Equal(t, len(backend.messages()), 0)
}

func TestSMTPTransportWithoutAuth(t *testing.T) {
	backend, host, port := startSMTPServer(t, "")
	transport, err := NewSMTPTransport(SMTPConfig{Host: host, Port: port, Security: SecurityNone, Auth: AuthNone})
	be.Err(t, err, nil)

	be.Err(t, transport.Deliver(context.Background(), testEnvelope(t)), nil)
	be.Equal(t, len(backend.messages()), 1)
	be.Equal(t, backend.messages()[0].user, "")
}

func TestSMTPTransportDialFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	be.Err(t, err, nil)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	transport, err := NewSMTPTransport(SMTPConfig{Host: "127.0.0.1", Port: port, Security: SecurityNone, Timeout: time.Second})
	be.Err(t, err, nil)
	be.Err(t, transport.Deliver(context.Background(), testEnvelope(t)), "SMTP dial")
}

func TestNewSMTPTransportValidates(t *testing.T) {
	_, err := NewSMTPTransport(SMTPConfig{})
	be.Err(t, err, "smtp host is required")
	_, err = NewSMTPTransport(SMTPConfig{Host: "smtp.example.com", Security: "ssl3"})
	be.Err(t, err, "unknown smtp security")
	_, err = NewSMTPTransport(SMTPConfig{Host: "smtp.example.com", Auth: "cram-md5"})
	be.Err(t, err, "unknown smtp auth")

	transport, err := NewSMTPTransport(SMTPConfig{Host: "smtp.example.com"})
	be.Err(t, err, nil)
	be.Equal(t, transport.cfg.Port, 587)
	be.Equal(t, transport.cfg.Security, SecurityStartTLS)
	be.Equal(t, transport.cfg.Auth, AuthPlain)
	be.Equal(t, transport.saslClient() == nil, true)
}
