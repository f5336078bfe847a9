package mailer

import (
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Message is one outgoing plain-text email.
type Message struct {
	From     mail.Address
	To       []string
	Subject  string
	TextBody string
	Date     time.Time
}

// Envelope is what a Transport delivers: SMTP envelope addresses plus the
// raw RFC 5322 message.
type Envelope struct {
	From      string
	To        []string
	MessageID string
	Raw       []byte
}

func validateMessage(msg Message) error {
	if strings.TrimSpace(msg.From.Address) == "" {
		return errors.New("mailer: sender address is required")
	}
	if len(uniqueRecipients(msg.To)) == 0 {
		return errors.New("mailer: at least one recipient is required")
	}
	if strings.TrimSpace(msg.TextBody) == "" {
		return errors.New("mailer: text body is required")
	}
	return nil
}

// buildEnvelope renders msg into a raw message with a fresh Message-ID.
func buildEnvelope(msg Message) (Envelope, error) {
	if err := validateMessage(msg); err != nil {
		return Envelope{}, err
	}
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	recipients := uniqueRecipients(msg.To)
	messageID := generateMessageID(msg.From.Address)

	subject := sanitizeHeader(msg.Subject)
	if subject == "" {
		subject = "(no subject)"
	}

	headers := []string{
		fmt.Sprintf("From: %s", msg.From.String()),
		fmt.Sprintf("To: %s", strings.Join(recipients, ", ")),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", subject)),
		fmt.Sprintf("Date: %s", date.Format(time.RFC1123Z)),
		fmt.Sprintf("Message-ID: %s", messageID),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 8bit",
	}
	raw := strings.Join(headers, "\r\n") + "\r\n\r\n" + normalizeBody(msg.TextBody) + "\r\n"

	return Envelope{
		From:      msg.From.Address,
		To:        recipients,
		MessageID: messageID,
		Raw:       []byte(raw),
	}, nil
}

// uniqueRecipients trims addresses and drops blanks and repeats, keeping the
// first occurrence.
func uniqueRecipients(recipients []string) []string {
	trimmed := lo.Map(recipients, func(r string, _ int) string {
		return strings.TrimSpace(r)
	})
	return lo.Uniq(lo.Compact(trimmed))
}

var headerBreaks = strings.NewReplacer("\r", " ", "\n", " ")

func sanitizeHeader(value string) string {
	return strings.TrimSpace(headerBreaks.Replace(value))
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// normalizeBody trims body and terminates every line with CRLF.
func normalizeBody(body string) string {
	lines := strings.Split(strings.TrimSpace(lineBreaks.Replace(body)), "\n")
	return strings.Join(lines, "\r\n")
}

func generateMessageID(address string) string {
	domain := "localhost"
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		domain = address[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
