package pkcs11

import (
	"github.com/miekg/pkcs11"
	"go.uber.org/zap"

	"github.com/systmms/keyops/pkg/requests"
)

// sessionMode selects read-only or read-write session flags.
type sessionMode uint

const (
	readOnlySession sessionMode = iota
	readWriteSession
)

// session is a transient channel to the token, scoped to a single
// provider method: acquired at the start of an operation and released
// on every exit path through close.
type session struct {
	provider *Provider
	handle   pkcs11.SessionHandle
	loggedIn bool
}

// openSession opens a raw session against the configured slot and logs
// it in unconditionally. Some token drivers misbehave when only a
// subset of concurrent sessions is authenticated, so every session is
// logged in regardless of the operation it serves.
func (p *Provider) openSession(mode sessionMode) (*session, error) {
	p.logger.Debug("opening session", zap.Uint("slot", p.slotNumber))

	flags := uint(pkcs11.CKF_SERIAL_SESSION)
	if mode == readWriteSession {
		flags |= pkcs11.CKF_RW_SESSION
	}

	handle, err := p.token.OpenSession(p.slotNumber, flags)
	if err != nil {
		p.logger.Error("error opening session",
			zap.Uint("slot", p.slotNumber), zap.Error(err))
		return nil, requests.PsaErrorCommunicationFailure
	}

	s := &session{provider: p, handle: handle}
	if err := s.login(); err != nil {
		if closeErr := p.token.CloseSession(handle); closeErr != nil {
			p.logger.Error("failed to close session after login failure",
				zap.Uint("session", uint(handle)), zap.Error(closeErr))
		}
		return nil, err
	}
	return s, nil
}

// login implements the shared-counter protocol. The token's login
// primitive runs only on the 0 -> 1 transition; the counter mutex is a
// leaf lock held for the counter update plus the primitive call.
func (s *session) login() error {
	p := s.provider
	p.countMu.Lock()
	defer p.countMu.Unlock()

	switch {
	case s.loggedIn:
		p.logger.Debug("session already requested authentication",
			zap.Uint("session", uint(s.handle)))
		return nil
	case p.loggedSessions > 0:
		p.logger.Debug("login ignored, sessions already require authentication",
			zap.Uint64("logged_sessions", p.loggedSessions))
		p.loggedSessions++
		s.loggedIn = true
		return nil
	case p.userPin != nil:
		locked, err := p.userPin.Open()
		if err != nil {
			p.logger.Error("could not open the user PIN buffer", zap.Error(err))
			return requests.PsaErrorHardwareFailure
		}
		defer locked.Destroy()
		if err := p.token.Login(s.handle, pkcs11.CKU_USER, locked.String()); err != nil {
			p.logger.Error("login operation failed", zap.Error(err))
			return requests.PsaErrorHardwareFailure
		}
		p.logger.Debug("logged in session", zap.Uint("session", uint(s.handle)))
		p.loggedSessions++
		s.loggedIn = true
		return nil
	default:
		p.logger.Warn("authentication requested but the provider has no user PIN set")
		s.loggedIn = true
		return nil
	}
}

// logout implements the shared-counter protocol. The token's logout
// primitive runs only on the 1 -> 0 transition.
func (s *session) logout() error {
	p := s.provider
	p.countMu.Lock()
	defer p.countMu.Unlock()

	switch {
	case !s.loggedIn:
		p.logger.Debug("session has already logged out",
			zap.Uint("session", uint(s.handle)))
		return nil
	case p.loggedSessions == 0:
		p.logger.Debug("the user is already logged out, ignoring")
		return nil
	case p.loggedSessions == 1:
		// Only this session still requires authentication.
		if err := p.token.Logout(s.handle); err != nil {
			p.logger.Error("failed to log out from session",
				zap.Uint("session", uint(s.handle)), zap.Error(err))
			return requests.PsaErrorHardwareFailure
		}
		p.logger.Debug("logged out in session", zap.Uint("session", uint(s.handle)))
		p.loggedSessions--
		s.loggedIn = false
		return nil
	default:
		p.logger.Debug("sessions still requiring authentication, not logging out",
			zap.Uint64("logged_sessions", p.loggedSessions))
		p.loggedSessions--
		s.loggedIn = false
		return nil
	}
}

// close releases the session: logout first, then close, in that order.
// Failures on this path are logged and swallowed; the operation that
// owned the session has already produced its result.
func (s *session) close() {
	p := s.provider
	if err := s.logout(); err != nil {
		p.logger.Error("error while logging out, continuing",
			zap.Uint("session", uint(s.handle)), zap.Error(err))
	}
	if err := p.token.CloseSession(s.handle); err != nil {
		p.logger.Error("failed to close session, continuing",
			zap.Uint("session", uint(s.handle)), zap.Error(err))
		return
	}
	p.logger.Debug("session closed", zap.Uint("session", uint(s.handle)))
}
