// Package app wires the exchange engine to its persistence and mailing
// collaborators for each run mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spachava753/giftex/exchange"
	"github.com/spachava753/giftex/mailer"
	"github.com/spachava753/giftex/state"
)

var (
	// ErrNoEvent is returned when a mode needing an event gets none.
	ErrNoEvent = errors.New("app: no event name specified, use list to see existing events")
	// ErrNoRecipient is returned by Remind without a participant id.
	ErrNoRecipient = errors.New("app: no participant specified for the reminder")
)

// Sender sends rendered messages to participants of a snapshot.
type Sender interface {
	SendAll(ctx context.Context, snapshot exchange.Snapshot, ids []string) error
	Send(ctx context.Context, snapshot exchange.Snapshot, id string) error
}

// SenderFactory builds the Sender for a mode, so test and live runs can
// differ in delivery policy.
type SenderFactory func(mode mailer.Mode) (Sender, error)

// App runs one mode against a participant list.
type App struct {
	Store   state.Store
	Senders SenderFactory
	People  map[string]exchange.Attributes
	Logger  *slog.Logger
	// EngineOptions are passed to every engine the app creates.
	EngineOptions []exchange.Option
}

// TestEventSuffix is appended to the event name a test run persists under,
// so a rehearsal never claims the live event.
const TestEventSuffix = "-test"

func (a *App) logger(component string) *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger.With("component", component)
}

func (a *App) engine() (*exchange.Engine, error) {
	opts := append([]exchange.Option{exchange.WithLogger(a.Logger)}, a.EngineOptions...)
	return exchange.New(a.People, opts...)
}

// List returns every persisted event.
func (a *App) List(ctx context.Context) ([]string, error) {
	a.logger("main").Info("showing list of all events")
	return a.Store.List(ctx)
}

// Rehearsal is the outcome of a test run.
type Rehearsal struct {
	Snapshot exchange.Snapshot
	// Event is the name the pairing is persisted under.
	Event string
	// Saved is false when Event already held an earlier rehearsal, which is
	// kept. The messages just sent then differ from what Event restores.
	Saved bool
}

// Test builds a pairing, persists it as event+TestEventSuffix unless an
// earlier rehearsal is stored there, and sends every participant's message
// under the test policy.
func (a *App) Test(ctx context.Context, event string) (Rehearsal, error) {
	if strings.TrimSpace(event) == "" {
		return Rehearsal{}, ErrNoEvent
	}
	log := a.logger("main").With("event", event)
	snapshot, err := a.build()
	if err != nil {
		return Rehearsal{}, err
	}

	sender, err := a.Senders(mailer.ModeTest)
	if err != nil {
		return Rehearsal{}, err
	}

	rehearsal := Rehearsal{Snapshot: snapshot, Event: event + TestEventSuffix, Saved: true}
	err = a.save(ctx, rehearsal.Event, snapshot)
	if errors.Is(err, state.ErrEventExists) {
		a.logger("statekeeper").Warn("earlier rehearsal kept, this pairing is not saved", "event", rehearsal.Event)
		rehearsal.Saved = false
	} else if err != nil {
		return Rehearsal{}, err
	}

	log.Info("sending test emails", "recipients", strings.Join(snapshot.TestRecipients(), ","))
	if err := sender.SendAll(ctx, snapshot, snapshot.TestRecipients()); err != nil {
		return Rehearsal{}, err
	}
	return rehearsal, nil
}

// Live refuses existing events, builds a pairing, persists it and only then
// sends it for real. A send that stops halfway leaves the event stored, so
// the remaining participants can be reached with Remind.
func (a *App) Live(ctx context.Context, event string) (exchange.Snapshot, error) {
	if strings.TrimSpace(event) == "" {
		return exchange.Snapshot{}, ErrNoEvent
	}
	log := a.logger("main").With("event", event)
	exists, err := a.Store.Exists(ctx, event)
	if err != nil {
		return exchange.Snapshot{}, err
	}
	if exists {
		return exchange.Snapshot{}, fmt.Errorf("%w: %s", state.ErrEventExists, event)
	}

	snapshot, err := a.build()
	if err != nil {
		return exchange.Snapshot{}, err
	}
	sender, err := a.Senders(mailer.ModeLive)
	if err != nil {
		return exchange.Snapshot{}, err
	}
	if err := a.save(ctx, event, snapshot); err != nil {
		return exchange.Snapshot{}, err
	}

	log.Warn("really actually sending emails to everyone")
	if err := sender.SendAll(ctx, snapshot, snapshot.LiveRecipients()); err != nil {
		log.Error("sending stopped, pairing is saved", "error", err)
		return exchange.Snapshot{}, fmt.Errorf("app: sending %s stopped, finish with remind: %w", event, err)
	}
	return snapshot, nil
}

// Remind restores the event's pairing and resends id's message.
func (a *App) Remind(ctx context.Context, event, id string) error {
	log := a.logger("main").With("event", event)
	if strings.TrimSpace(event) == "" {
		return ErrNoEvent
	}
	if strings.TrimSpace(id) == "" {
		return ErrNoRecipient
	}
	pairs, err := a.Store.Load(ctx, event)
	if err != nil {
		return err
	}
	engine, err := a.engine()
	if err != nil {
		return err
	}
	if err := engine.LoadState(pairs); err != nil {
		return err
	}
	snapshot, err := engine.Snapshot()
	if err != nil {
		return fmt.Errorf("app: restored state for %s: %w", event, err)
	}

	sender, err := a.Senders(mailer.ModeRemind)
	if err != nil {
		return err
	}
	log.Info("sending reminder email", "id", id)
	return sender.Send(ctx, snapshot, id)
}

func (a *App) build() (exchange.Snapshot, error) {
	engine, err := a.engine()
	if err != nil {
		return exchange.Snapshot{}, err
	}
	return engine.Build()
}

func (a *App) save(ctx context.Context, event string, snapshot exchange.Snapshot) error {
	if err := a.Store.Create(ctx, event, snapshot.Pairs()); err != nil {
		return err
	}
	a.logger("statekeeper").Info("state written", "event", event)
	return nil
}
