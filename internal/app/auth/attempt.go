package auth

import (
	"errors"
	"fmt"
)

// AttemptState is the progress of a magic-link sign-in.
type AttemptState string

const (
	AttemptIdle    AttemptState = "idle"
	AttemptSending AttemptState = "sending"
	AttemptSent    AttemptState = "sent"
)

var ErrIllegalTransition = errors.New("illegal magic link attempt transition")

// MagicLinkAttempt tracks one email sign-in attempt:
//
//	Idle -> Sending -> Sent
//	Sending -> Idle (with Err set)
//
// Sent is terminal except through Reset, which starts over for a different email.
type MagicLinkAttempt struct {
	State AttemptState
	Email string

	// Verifier is the PKCE verifier bound to the link. Set once the attempt is Sent.
	Verifier string

	// Err is the failure that returned the attempt to Idle.
	Err error
}

func NewAttempt() MagicLinkAttempt {
	return MagicLinkAttempt{State: AttemptIdle}
}

func (a *MagicLinkAttempt) begin(email string) error {
	if a.State != AttemptIdle {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.State, AttemptSending)
	}
	a.State = AttemptSending
	a.Email = email
	a.Err = nil
	return nil
}

func (a *MagicLinkAttempt) succeed(verifier string) error {
	if a.State != AttemptSending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.State, AttemptSent)
	}
	a.State = AttemptSent
	a.Verifier = verifier
	return nil
}

func (a *MagicLinkAttempt) fail(err error) error {
	if a.State != AttemptSending {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.State, AttemptIdle)
	}
	a.State = AttemptIdle
	a.Err = err
	return nil
}

// Reset returns the attempt to Idle so a different email can be tried.
func (a *MagicLinkAttempt) Reset() {
	*a = NewAttempt()
}
