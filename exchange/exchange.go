package exchange

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// DefaultMaxAttempts bounds the number of whole-registry attempts Build makes
// before giving up.
const DefaultMaxAttempts = 25

// Attributes is the configuration input for one participant.
type Attributes struct {
	Name      string
	Email     string
	Blacklist []string
	Admin     bool
	Test      bool
}

// Participant is one member of the exchange.
//
// Assigned is true once the participant has been chosen as someone's giftee.
// Giftee is the id of the participant this participant gives a gift to.
type Participant struct {
	ID        string
	Name      string
	Email     string
	Blacklist []string
	Admin     bool
	Test      bool
	Assigned  bool
	Giftee    string
}

// Excludes reports whether id is on the participant's blacklist.
func (p Participant) Excludes(id string) bool {
	return slices.Contains(p.Blacklist, id)
}

func (p Participant) clone() Participant {
	p.Blacklist = slices.Clone(p.Blacklist)
	return p
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for shuffling and sampling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithLogger sets the logger progress lines are written to.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// Engine owns the participant registry and produces pairings over it.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	registry    map[string]*Participant
	attempts    int
	maxAttempts int
	rand        *rand.Rand
	log         *slog.Logger
}

// New builds an engine over people, keyed by participant id.
func New(people map[string]Attributes, opts ...Option) (*Engine, error) {
	if len(people) == 0 {
		return nil, fmt.Errorf("%w: participant list is empty", ErrInvalidInput)
	}

	registry := make(map[string]*Participant, len(people))
	for id, attrs := range people {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
		}
		if strings.TrimSpace(attrs.Name) == "" {
			return nil, fmt.Errorf("%w: participant %q has no name", ErrInvalidInput, id)
		}
		registry[id] = &Participant{
			ID:        id,
			Name:      attrs.Name,
			Email:     attrs.Email,
			Blacklist: lo.Uniq(attrs.Blacklist),
			Admin:     attrs.Admin,
			Test:      attrs.Test,
		}
	}

	e := &Engine{
		registry:    registry,
		maxAttempts: DefaultMaxAttempts,
		rand:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "distribution")
	return e, nil
}

// Build assigns a giftee to every participant.
//
// Each attempt walks the participants in a fresh random order and picks a
// random eligible giftee for each. An attempt that reaches a participant with
// no eligible giftee is abandoned and the registry is reset. When all attempts
// fail the registry keeps the last partial assignment, Valid reports false and
// the returned error wraps ErrAssignmentExhausted.
func (e *Engine) Build() (Snapshot, error) {
	e.log.Info("building exchange distribution", "participants", len(e.registry))
	e.attempts = 0
	e.reset()

	for {
		err := e.attempt()
		if err == nil {
			break
		}
		e.log.Warn("attempt failed", "error", err)
		e.attempts++
		if e.attempts >= e.maxAttempts {
			e.log.Error("giving up", "attempts", e.attempts)
			return Snapshot{}, fmt.Errorf("%w after %d attempts: %w", ErrAssignmentExhausted, e.attempts, err)
		}
		e.reset()
	}

	e.log.Info("distribution built", "attempts", e.attempts+1)
	return e.Snapshot()
}

func (e *Engine) attempt() error {
	order := e.ids()
	e.rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for _, id := range order {
		candidates, err := e.candidatesFor(id)
		if err != nil {
			return err
		}
		giftee := candidates[e.rand.IntN(len(candidates))]
		e.log.Debug("selected giftee", "id", id, "giftee", giftee)
		e.registry[id].Giftee = giftee
		e.registry[giftee].Assigned = true
	}
	return nil
}

// candidatesFor lists the ids id may still be assigned to, sorted.
func (e *Engine) candidatesFor(id string) ([]string, error) {
	giver := e.registry[id]
	candidates := lo.Filter(e.ids(), func(c string, _ int) bool {
		return c != id && !e.registry[c].Assigned && !giver.Excludes(c)
	})
	e.log.Debug("candidates", "id", id, "candidates", strings.Join(candidates, ","))
	if len(candidates) == 0 {
		return nil, &NoCandidateError{ID: id, Name: giver.Name, Attempt: e.attempts + 1}
	}
	return candidates, nil
}

func (e *Engine) reset() {
	for _, p := range e.registry {
		p.Assigned = false
		p.Giftee = ""
	}
	e.log.Debug("distribution reset")
}

// Valid reports whether every participant has been assigned as a giftee and
// has a giftee of their own.
func (e *Engine) Valid() bool {
	for _, p := range e.registry {
		if !p.Assigned || p.Giftee == "" {
			return false
		}
	}
	return true
}

// LoadState restores a previously persisted giver -> giftee pairing.
//
// Participants absent from pairs are dropped from the registry first. The
// restored pairing is trusted: blacklists and self-assignment are not checked.
// When pairs names an unknown id the registry is left untouched.
func (e *Engine) LoadState(pairs map[string]string) error {
	for giver, giftee := range pairs {
		if _, ok := e.registry[giver]; !ok {
			return fmt.Errorf("%w: giver %q", ErrUnknownParticipant, giver)
		}
		if _, ok := e.registry[giftee]; !ok {
			return fmt.Errorf("%w: giftee %q of %q", ErrUnknownParticipant, giftee, giver)
		}
	}

	for id := range e.registry {
		if _, ok := pairs[id]; !ok {
			delete(e.registry, id)
		}
	}
	e.reset()
	for giver, giftee := range pairs {
		e.registry[giver].Giftee = giftee
		e.registry[giftee].Assigned = true
	}
	e.log.Info("state loaded", "pairs", len(pairs))
	return nil
}

// Attempts returns the number of failed attempts of the last Build.
func (e *Engine) Attempts() int {
	return e.attempts
}

// Len returns the number of participants in the registry.
func (e *Engine) Len() int {
	return len(e.registry)
}

// Participant returns a copy of the participant with the given id.
func (e *Engine) Participant(id string) (Participant, bool) {
	p, ok := e.registry[id]
	if !ok {
		return Participant{}, false
	}
	return p.clone(), true
}

// Pairs exports the giver -> giftee mapping for persistence.
func (e *Engine) Pairs() map[string]string {
	return pairsOf(e.registry)
}

// LiveRecipients returns the sorted ids of participants with an email address.
func (e *Engine) LiveRecipients() []string {
	return liveRecipientsOf(e.registry)
}

// TestRecipients returns every participant id, sorted.
func (e *Engine) TestRecipients() []string {
	return e.ids()
}

// Snapshot returns an immutable copy of a complete registry.
func (e *Engine) Snapshot() (Snapshot, error) {
	if !e.Valid() {
		return Snapshot{}, ErrIncompletePairing
	}
	participants := make(map[string]*Participant, len(e.registry))
	for id, p := range e.registry {
		c := p.clone()
		participants[id] = &c
	}
	return Snapshot{participants: participants}, nil
}

func (e *Engine) ids() []string {
	return sortedIDs(e.registry)
}

func sortedIDs(registry map[string]*Participant) []string {
	ids := lo.Keys(registry)
	slices.Sort(ids)
	return ids
}

func pairsOf(registry map[string]*Participant) map[string]string {
	return lo.MapValues(registry, func(p *Participant, _ string) string {
		return p.Giftee
	})
}

func liveRecipientsOf(registry map[string]*Participant) []string {
	return lo.Filter(sortedIDs(registry), func(id string, _ int) bool {
		return registry[id].Email != ""
	})
}
