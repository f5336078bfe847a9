package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/spachava753/giftex/exchange"
)

// Transport delivers a rendered envelope.
type Transport interface {
	Deliver(ctx context.Context, env Envelope) error
}

// Archiver keeps a copy of a delivered envelope.
type Archiver interface {
	Archive(ctx context.Context, env Envelope) error
}

// Options configures a Mailer.
type Options struct {
	Transport Transport
	// Archiver is optional.
	Archiver Archiver
	// Template defaults to DefaultTemplate.
	Template *Template
	Sender   mail.Address
	Mode     Mode
	// RunID is shown in test-mode messages.
	RunID  string
	Logger *slog.Logger
	Now    func() time.Time
}

// Mailer renders one message per recipient and hands it to a Transport.
type Mailer struct {
	transport Transport
	archiver  Archiver
	template  *Template
	sender    mail.Address
	policy    Policy
	runID     string
	log       *slog.Logger
	now       func() time.Time
}

// New returns a Mailer.
func New(opts Options) (*Mailer, error) {
	if opts.Transport == nil {
		return nil, errors.New("mailer: transport is required")
	}
	if strings.TrimSpace(opts.Sender.Address) == "" {
		return nil, errors.New("mailer: sender address is required")
	}
	switch opts.Mode {
	case ModeTest, ModeLive, ModeRemind:
	default:
		return nil, fmt.Errorf("mailer: unknown mode %q", opts.Mode)
	}
	m := &Mailer{
		transport: opts.Transport,
		archiver:  opts.Archiver,
		template:  opts.Template,
		sender:    opts.Sender,
		policy:    Policy{Mode: opts.Mode},
		runID:     opts.RunID,
		log:       opts.Logger,
		now:       opts.Now,
	}
	if m.template == nil {
		m.template = DefaultTemplate()
	}
	if m.log == nil {
		m.log = slog.New(slog.DiscardHandler)
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.log = m.log.With("component", "mailer", "mode", string(opts.Mode))
	return m, nil
}

// SendAll sends one message to each id, in order. Recipients without an
// address are skipped. The first delivery failure stops the run.
func (m *Mailer) SendAll(ctx context.Context, snapshot exchange.Snapshot, ids []string) error {
	m.log.Info("starting send_all", "recipients", len(ids))
	sent := 0
	for _, id := range ids {
		err := m.Send(ctx, snapshot, id)
		if errors.Is(err, ErrNoAddress) {
			m.log.Warn("skipping recipient without address", "id", id)
			continue
		}
		if err != nil {
			return err
		}
		sent++
	}
	m.log.Info("send_all done", "sent", sent, "skipped", len(ids)-sent)
	return nil
}

// Send renders and delivers the message for id.
func (m *Mailer) Send(ctx context.Context, snapshot exchange.Snapshot, id string) error {
	env, err := m.Render(snapshot, id)
	if err != nil {
		return err
	}

	m.log.Info("sending email", "id", id, "to", strings.Join(env.To, ","), "message_id", env.MessageID)
	if err := m.transport.Deliver(ctx, env); err != nil {
		m.log.Error("unable to send mail", "id", id, "error", err)
		return err
	}
	m.log.Info("email sent", "id", id)

	if m.archiver != nil {
		if err := m.archiver.Archive(ctx, env); err != nil {
			m.log.Warn("unable to archive mail", "id", id, "error", err)
		}
	}
	return nil
}

// Render resolves the address for id and renders its message without
// delivering it.
func (m *Mailer) Render(snapshot exchange.Snapshot, id string) (Envelope, error) {
	gifter, ok := snapshot.Participant(id)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownRecipient, id)
	}
	giftee, ok := snapshot.Giftee(id)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: giftee of %q", ErrUnknownRecipient, id)
	}
	address, err := m.policy.Resolve(snapshot, id)
	if err != nil {
		return Envelope{}, err
	}
	if address == "" {
		return Envelope{}, fmt.Errorf("%w: %q", ErrNoAddress, id)
	}

	now := m.now()
	subject, body, err := m.template.Render(m.data(gifter, giftee, address, now))
	if err != nil {
		return Envelope{}, err
	}
	m.log.Debug("rendered message", "id", id, "subject", subject)

	return buildEnvelope(Message{
		From:     m.sender,
		To:       []string{address},
		Subject:  subject,
		TextBody: body,
		Date:     now,
	})
}

func (m *Mailer) data(gifter, giftee exchange.Participant, address string, now time.Time) Data {
	data := Data{
		From:       m.sender.String(),
		To:         address,
		Year:       now.Format("2006"),
		GifterName: gifter.Name,
		GifteeName: giftee.Name,
		Signature:  fmt.Sprintf("%s | %s", m.sender.Name, m.sender.Address),
	}
	switch m.policy.Mode {
	case ModeTest:
		data.UniqueID = m.runID
		data.Test = " TEST"
	case ModeRemind:
		data.Reminder = " Reminder"
	}
	return data
}
