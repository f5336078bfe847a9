package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned by New when the participant list is empty or
	// a participant is missing a required field.
	ErrInvalidInput = errors.New("exchange: invalid input")
	// ErrAssignmentExhausted is returned by Build when every attempt ran into a
	// participant without candidates.
	ErrAssignmentExhausted = errors.New("exchange: assignment attempts exhausted")
	// ErrIncompletePairing is returned when a snapshot is requested before the
	// registry holds a complete pairing.
	ErrIncompletePairing = errors.New("exchange: pairing is incomplete")
	// ErrUnknownParticipant is returned by LoadState when a restored pairing
	// references an id the registry does not know.
	ErrUnknownParticipant = errors.New("exchange: unknown participant")
)

// NoCandidateError reports that a participant ran out of eligible giftees
// during one build attempt.
type NoCandidateError struct {
	ID      string
	Name    string
	Attempt int
}

// Error returns the formatted error message.
func (e *NoCandidateError) Error() string {
	if e == nil {
		return "exchange: <nil>"
	}
	return fmt.Sprintf("exchange: (%d) no candidates found for %s (%s)", e.Attempt, e.Name, e.ID)
}
