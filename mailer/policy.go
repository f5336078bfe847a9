package mailer

import (
	"errors"
	"fmt"

	"github.com/spachava753/giftex/exchange"
)

var (
	// ErrNoAdmin is returned in test mode when nobody is flagged as admin, since
	// redirected mail would have nowhere to go.
	ErrNoAdmin = errors.New("mailer: test mode requires an admin participant")
	// ErrUnknownRecipient is returned for ids missing from the snapshot.
	ErrUnknownRecipient = errors.New("mailer: unknown recipient")
	// ErrNoAddress is returned when a recipient resolves to no address.
	ErrNoAddress = errors.New("mailer: recipient has no email address")
)

// Mode controls address resolution and template markers.
type Mode string

const (
	// ModeTest redirects everyone but admin and test accounts to the admin.
	ModeTest Mode = "test"
	// ModeLive sends to every participant's own address.
	ModeLive Mode = "live"
	// ModeRemind resends one participant's assignment to their own address.
	ModeRemind Mode = "remind"
)

// Policy resolves where a recipient's message is delivered.
type Policy struct {
	Mode Mode
}

// Resolve returns the delivery address for id. An empty address with a nil
// error means the participant has no address and should be skipped.
func (p Policy) Resolve(snapshot exchange.Snapshot, id string) (string, error) {
	participant, ok := snapshot.Participant(id)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRecipient, id)
	}
	if p.Mode != ModeTest || participant.Admin || participant.Test {
		return participant.Email, nil
	}
	admin, ok := snapshot.Admin()
	if !ok {
		return "", ErrNoAdmin
	}
	return admin.Email, nil
}
