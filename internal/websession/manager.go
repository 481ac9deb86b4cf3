package websession

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"

	"github.com/l9g/oidc-info/sdk/id"
	"github.com/l9g/oidc-info/session"
)

// Manager keeps the local web sessions in memory, ends them after an idle
// timeout and carries their ids in a cookie.
//
// See NewManager(...) to create a Manager and Manager.Close() which must be
// called to stop its background cleanup.
type Manager struct {
	idleTimeout time.Duration
	clock       clockwork.Clock
	logger      hclog.Logger
	onEnd       EndFunc
	cookie      CookieOptions

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewManager creates a Manager and starts its idle session cleanup.
//
// Supports the options: WithIdleTimeout, WithCleanupInterval, WithClock,
// WithLogger, WithEndFunc and WithCookieOptions.
func NewManager(opt ...Option) (*Manager, error) {
	const op = "websession.NewManager"
	opts := getOpts(opt...)
	switch {
	case opts.withIdleTimeout <= 0:
		return nil, fmt.Errorf("%s: idle timeout must be greater than zero: %w", op, ErrInvalidParameter)
	case opts.withCleanupInterval <= 0:
		return nil, fmt.Errorf("%s: cleanup interval must be greater than zero: %w", op, ErrInvalidParameter)
	case opts.withClock == nil:
		return nil, fmt.Errorf("%s: clock is nil: %w", op, ErrInvalidParameter)
	}
	if opts.withLogger == nil {
		opts.withLogger = hclog.NewNullLogger()
	}
	m := &Manager{
		idleTimeout: opts.withIdleTimeout,
		clock:       opts.withClock,
		logger:      opts.withLogger,
		onEnd:       opts.withEndFunc,
		cookie:      opts.withCookieOptions,
		sessions:    map[string]*Session{},
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go m.cleanupLoop(opts.withCleanupInterval)
	return m, nil
}

// SetEndFunc replaces the hook called when a session ends. It lets callers
// wire a hook which itself needs the Manager.
func (m *Manager) SetEndFunc(fn EndFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = fn
}

// Create starts a new session.
func (m *Manager) Create() (*Session, error) {
	const op = "websession.(Manager).Create"
	sessionID, err := id.New("")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := m.clock.Now()
	s := &Session{
		id:         sessionID,
		manager:    m,
		createdAt:  now,
		lastAccess: now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("%s: %w", op, ErrClosed)
	}
	m.sessions[sessionID] = s
	m.logger.Debug("session created", "local_id", sessionID)
	return s, nil
}

// Get returns the live session with the given id and marks it used. A
// session found idle past its timeout is ended and not returned.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	if sessionID == "" {
		return nil, false
	}
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	live, timedOut := s.touch(m.clock.Now(), m.idleTimeout)
	if timedOut {
		_ = m.end(s, ReasonIdleTimeout)
	}
	return s, live
}

// FromRequest returns the live session named by the request's cookie.
func (m *Manager) FromRequest(r *http.Request) (*Session, bool) {
	return m.Get(cookieValue(r))
}

// WriteCookie issues the cookie naming s.
func (m *Manager) WriteCookie(w http.ResponseWriter, s *Session) {
	SetCookie(w, s.ID(), time.Time{}, m.cookie)
}

// Logout ends s and clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, s *Session) error {
	ClearCookie(w, m.cookie)
	return m.end(s, ReasonLogout)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) end(s *Session, reason EndReason) error {
	const op = "websession.(Manager).end"
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return fmt.Errorf("%s: local session %s: %w", op, s.id, session.ErrAlreadyInvalidated)
	}
	s.ended = true
	s.mu.Unlock()

	m.mu.Lock()
	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
	onEnd := m.onEnd
	m.mu.Unlock()

	m.logger.Debug("session ended", "local_id", s.id, "reason", reason)
	if onEnd != nil {
		onEnd(s.id, reason)
	}
	return nil
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer close(m.done)
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.Chan():
			m.reclaim()
		}
	}
}

// reclaim ends every idle session and returns how many it ended.
func (m *Manager) reclaim() int {
	now := m.clock.Now()
	var idle []*Session
	m.mu.RLock()
	for _, s := range m.sessions {
		if s.idle(now, m.idleTimeout) {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	var n int
	for _, s := range idle {
		if err := m.end(s, ReasonIdleTimeout); err == nil {
			n++
		}
	}
	if n > 0 {
		m.logger.Debug("ended idle sessions", "count", n)
	}
	return n
}

// Close stops the idle cleanup and forgets every session without calling the
// end hook.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done
		m.mu.Lock()
		m.closed = true
		clear(m.sessions)
		m.mu.Unlock()
	})
	return nil
}
