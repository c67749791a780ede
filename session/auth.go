package session

import (
	"context"

	"github.com/ianchi/ifit"
)

// ActivationCodeSize is the fixed width of the secret enable accepts. The
// core never parses or stores it; it is opaque bytes from an external
// collaborator (SPEC_FULL.md §6).
const ActivationCodeSize = 36

// Enable authenticates the session with a 36-byte activation code. Success
// transitions Connected -> Authenticated; a rejected code leaves the session
// in Connected and returns AuthenticationFailed (S6).
func (s *Session) Enable(ctx context.Context, code [ActivationCodeSize]byte) error {
	if !s.atLeast(Connected) {
		return s.notConnected(Connected)
	}

	env, err := s.call(ctx, ifit.CommandEnable, ifit.CommandEnable, code[:])
	if err != nil {
		return err
	}
	if len(env.Payload) < 1 {
		return &ifit.MalformedValue{Name: "enable_response", Raw: env.Payload}
	}
	if env.Payload[0] != responseOK {
		return &ifit.AuthenticationFailed{Got: env.Payload[0]}
	}

	s.setState(Authenticated)
	return nil
}
