package websession

import (
	"sync"
	"time"

	"github.com/l9g/oidc-info/session"
)

// EndReason tells an EndFunc why a session ended.
type EndReason string

const (
	ReasonLogout      EndReason = "logout"
	ReasonIdleTimeout EndReason = "idle-timeout"
	ReasonInvalidated EndReason = "invalidated"
)

// Tokens are the raw tokens received when the session logged in.
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Session is one local web session. It satisfies session.Handle, so the
// correlation store can end it when the provider reports a logout.
type Session struct {
	id        string
	manager   *Manager
	createdAt time.Time

	mu         sync.Mutex
	lastAccess time.Time
	ended      bool
	sid        string
	sub        string
	tokens     Tokens
}

var _ session.Handle = (*Session)(nil)

// ID implements the session.Handle interface.
func (s *Session) ID() string { return s.id }

// Invalidate ends the session. Invalidating a session which already ended
// returns an error wrapping session.ErrAlreadyInvalidated.
func (s *Session) Invalidate() error {
	return s.manager.end(s, ReasonInvalidated)
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastAccess returns when the session was last used.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// Ended reports whether the session has ended.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// SetLogin records the identity and tokens of a completed login.
func (s *Session) SetLogin(sid, sub string, t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sid, s.sub, s.tokens = sid, sub, t
}

// ProviderSessionID returns the sid claim the session logged in with.
func (s *Session) ProviderSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// Subject returns the sub claim the session logged in with.
func (s *Session) Subject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// Tokens returns the tokens the session logged in with.
func (s *Session) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// touch marks the session used at now. It reports false if the session has
// ended or has been idle for longer than idle.
func (s *Session) touch(now time.Time, idle time.Duration) (live bool, timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.ended:
		return false, false
	case now.Sub(s.lastAccess) >= idle:
		return false, true
	}
	s.lastAccess = now
	return true, false
}

func (s *Session) idle(now time.Time, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended && now.Sub(s.lastAccess) >= idle
}
