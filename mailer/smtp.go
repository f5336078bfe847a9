package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Security selects how the SMTP connection is protected.
type Security string

const (
	// SecurityTLS dials implicit TLS, usually port 465.
	SecurityTLS Security = "tls"
	// SecurityStartTLS upgrades a plain connection, usually port 587.
	SecurityStartTLS Security = "starttls"
	// SecurityNone sends in the clear. Only for local relays and tests.
	SecurityNone Security = "none"
)

// AuthMechanism selects the SASL mechanism.
type AuthMechanism string

const (
	AuthPlain AuthMechanism = "plain"
	AuthLogin AuthMechanism = "login"
	AuthNone  AuthMechanism = "none"
)

// SMTPConfig configures SMTPTransport.
type SMTPConfig struct {
	Host      string
	Port      int
	Helo      string
	Security  Security
	Auth      AuthMechanism
	Username  string
	Password  string
	Timeout   time.Duration
	TLSConfig *tls.Config
}

// SMTPTransport delivers envelopes over one SMTP session per message.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport validates cfg and applies defaults.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, errors.New("mailer: smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Security == "" {
		cfg.Security = SecurityStartTLS
	}
	if cfg.Auth == "" {
		cfg.Auth = AuthPlain
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	switch cfg.Security {
	case SecurityTLS, SecurityStartTLS, SecurityNone:
	default:
		return nil, fmt.Errorf("mailer: unknown smtp security %q", cfg.Security)
	}
	switch cfg.Auth {
	case AuthPlain, AuthLogin, AuthNone:
	default:
		return nil, fmt.Errorf("mailer: unknown smtp auth %q", cfg.Auth)
	}
	return &SMTPTransport{cfg: cfg}, nil
}

// Deliver sends env in a fresh SMTP session.
func (t *SMTPTransport) Deliver(ctx context.Context, env Envelope) error {
	smtpClient, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer smtpClient.Close()

	if err := smtpClient.Mail(env.From, nil); err != nil {
		return fmt.Errorf("mailer: MAIL FROM failed: %w", err)
	}
	for _, rcpt := range env.To {
		if err := smtpClient.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("mailer: RCPT TO %q failed: %w", rcpt, err)
		}
	}

	writer, err := smtpClient.Data()
	if err != nil {
		return fmt.Errorf("mailer: DATA failed: %w", err)
	}
	if _, err := writer.Write(env.Raw); err != nil {
		return fmt.Errorf("mailer: writing message failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("mailer: finalizing message failed: %w", err)
	}
	if err := smtpClient.Quit(); err != nil {
		return fmt.Errorf("mailer: QUIT failed: %w", err)
	}
	return nil
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	if t.cfg.TLSConfig != nil {
		return t.cfg.TLSConfig.Clone()
	}
	return &tls.Config{ServerName: t.cfg.Host}
}

func (t *SMTPTransport) connect(ctx context.Context) (*smtp.Client, error) {
	address := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	dialer := &net.Dialer{Timeout: t.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("mailer: SMTP dial %s failed: %w", address, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(t.cfg.Timeout))
	}
	if t.cfg.Security == SecurityTLS {
		conn = tls.Client(conn, t.tlsConfig())
	}

	smtpClient := smtp.NewClient(conn)
	if t.cfg.Helo != "" {
		if err := smtpClient.Hello(t.cfg.Helo); err != nil {
			smtpClient.Close()
			return nil, fmt.Errorf("mailer: SMTP EHLO failed: %w", err)
		}
	}
	if t.cfg.Security == SecurityStartTLS {
		if err := smtpClient.StartTLS(t.tlsConfig()); err != nil {
			smtpClient.Close()
			return nil, fmt.Errorf("mailer: SMTP STARTTLS failed: %w", err)
		}
	}

	if auth := t.saslClient(); auth != nil {
		if err := smtpClient.Auth(auth); err != nil {
			smtpClient.Close()
			return nil, fmt.Errorf("mailer: SMTP auth failed: %w", err)
		}
	}
	return smtpClient, nil
}

func (t *SMTPTransport) saslClient() sasl.Client {
	if t.cfg.Auth == AuthNone || t.cfg.Username == "" {
		return nil
	}
	if t.cfg.Auth == AuthLogin {
		return sasl.NewLoginClient(t.cfg.Username, t.cfg.Password)
	}
	return sasl.NewPlainClient("", t.cfg.Username, t.cfg.Password)
}
