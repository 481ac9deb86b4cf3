package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
)

// binding is one correlation entry. The same *binding is referenced from the
// forward (sid) and reverse (local id) index, and is never mutated after it is
// published, so pointer equality identifies "this exact entry".
type binding struct {
	sid       string
	localID   string
	handle    Handle
	expiresAt time.Time
}

func (b *binding) expired(now time.Time) bool {
	return !now.Before(b.expiresAt)
}

type storeShard struct {
	bySid     map[string]*binding
	byLocalID map[string]*binding
}

// Store is a dual-indexed, time-bounded cache which correlates provider
// session ids (sid) with local session Handles. Every entry in the sid index
// has a mirror entry in the local id index and vice versa; both are changed
// under the same set of stripe locks.
//
// Locks are striped, not per key: with the default 64 stripes (see
// WithShards) two unrelated keys share a stripe with probability 1/64, and a
// lookup may then wait for a concurrent update of the other key. Lookups of
// keys on distinct stripes never wait on each other or on updates.
//
// See NewStore(...) to create a Store and Store.Close() which must be called
// to stop its background cleanup.
type Store struct {
	ttl     time.Duration
	clock   clockwork.Clock
	logger  hclog.Logger
	onEvict EvictionFunc

	stripes *stripes
	shards  []storeShard

	closed    atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewStore creates a Store and starts its background cleanup of expired
// entries.
//
// Supports the options: WithTTL, WithCleanupInterval, WithClock, WithLogger,
// WithEvictionFunc and WithShards.
func NewStore(opt ...Option) (*Store, error) {
	const op = "session.NewStore"
	opts := getStoreOpts(opt...)
	switch {
	case opts.withTTL <= 0:
		return nil, fmt.Errorf("%s: ttl must be greater than zero: %w", op, ErrInvalidParameter)
	case opts.withCleanupInterval <= 0:
		return nil, fmt.Errorf("%s: cleanup interval must be greater than zero: %w", op, ErrInvalidParameter)
	case opts.withShards <= 0:
		return nil, fmt.Errorf("%s: shards must be greater than zero: %w", op, ErrInvalidParameter)
	case isNil(opts.withClock):
		return nil, fmt.Errorf("%s: clock is nil: %w", op, ErrNilParameter)
	}
	if isNil(opts.withLogger) {
		opts.withLogger = hclog.NewNullLogger()
	}

	s := &Store{
		ttl:     opts.withTTL,
		clock:   opts.withClock,
		logger:  opts.withLogger,
		onEvict: opts.withEvictionFunc,
		stripes: newStripes(opts.withShards),
		shards:  make([]storeShard, opts.withShards),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = storeShard{
			bySid:     map[string]*binding{},
			byLocalID: map[string]*binding{},
		}
	}

	go s.cleanupLoop(opts.withCleanupInterval)
	return s, nil
}

// TTL returns the time-to-live applied to every entry.
func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) shard(key string) *storeShard {
	return &s.shards[s.stripes.index(key)]
}

// Put binds sid to h and h.ID() to h. Both bindings become visible together.
// A previous binding for the same sid is replaced without invalidating its
// handle, and a previous binding of the same handle under another sid is
// dropped, so each index keeps mirroring the other. Put restarts the entry's
// TTL.
func (s *Store) Put(sid string, h Handle) error {
	const op = "session.(Store).Put"
	switch {
	case sid == "":
		return fmt.Errorf("%s: missing provider session id: %w", op, ErrInvalidParameter)
	case isNil(h):
		return fmt.Errorf("%s: missing local session handle: %w", op, ErrNilParameter)
	}
	localID := h.ID()
	if localID == "" {
		return fmt.Errorf("%s: local session handle has an empty id: %w", op, ErrInvalidParameter)
	}

	b := &binding{
		sid:       sid,
		localID:   localID,
		handle:    h,
		expiresAt: s.clock.Now().Add(s.ttl),
	}
	var closed bool
	s.stripes.update([]string{sid, localID}, func() ([]string, func()) {
		if closed = s.closed.Load(); closed {
			return nil, nil
		}
		prevBySid := s.shard(sid).bySid[sid]
		prevByLocal := s.shard(localID).byLocalID[localID]
		var more []string
		if prevBySid != nil && prevBySid.localID != localID {
			more = append(more, prevBySid.localID)
		}
		if prevByLocal != nil && prevByLocal.sid != sid {
			more = append(more, prevByLocal.sid)
		}
		return more, func() {
			if prevBySid != nil {
				s.unlink(prevBySid)
			}
			if prevByLocal != nil {
				s.unlink(prevByLocal)
			}
			s.shard(sid).bySid[sid] = b
			s.shard(localID).byLocalID[localID] = b
		}
	})
	if closed {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	s.logger.Debug("bound provider session", "sid", sid, "local_id", localID)
	return nil
}

// unlink removes b from both indexes, leaving any other entry under the same
// keys alone. The caller must hold the stripes for b.sid and b.localID.
func (s *Store) unlink(b *binding) bool {
	var removed bool
	if fwd := s.shard(b.sid); fwd.bySid[b.sid] == b {
		delete(fwd.bySid, b.sid)
		removed = true
	}
	if rev := s.shard(b.localID); rev.byLocalID[b.localID] == b {
		delete(rev.byLocalID, b.localID)
		removed = true
	}
	return removed
}

func (s *Store) lookup(key string, index func(*storeShard) map[string]*binding) (*binding, bool) {
	if key == "" {
		return nil, false
	}
	i, unlock := s.stripes.rlock(key)
	b := index(&s.shards[i])[key]
	unlock()
	if b == nil || b.expired(s.clock.Now()) {
		return nil, false
	}
	return b, true
}

func bySid(sh *storeShard) map[string]*binding     { return sh.bySid }
func byLocalID(sh *storeShard) map[string]*binding { return sh.byLocalID }

// GetByProviderSessionID returns the handle bound to sid. It reports false
// when sid was never bound, was removed or has expired.
func (s *Store) GetByProviderSessionID(sid string) (Handle, bool) {
	b, ok := s.lookup(sid, bySid)
	if !ok {
		return nil, false
	}
	return b.handle, true
}

// GetByLocalSessionID returns the handle whose ID() is localID. It reports
// false when no live entry exists for it.
func (s *Store) GetByLocalSessionID(localID string) (Handle, bool) {
	b, ok := s.lookup(localID, byLocalID)
	if !ok {
		return nil, false
	}
	return b.handle, true
}

// Remove drops the entry for sid from both indexes. Removing an unknown sid
// is not an error. Remove never invalidates the handle.
func (s *Store) Remove(sid string) {
	s.removeBySid(sid)
}

func (s *Store) removeBySid(sid string) *binding {
	if sid == "" {
		return nil
	}
	var removed *binding
	s.stripes.update([]string{sid}, func() ([]string, func()) {
		b := s.shard(sid).bySid[sid]
		if b == nil {
			return nil, nil
		}
		return []string{b.localID}, func() {
			if s.unlink(b) {
				removed = b
			}
		}
	})
	return removed
}

// RemoveByLocalSessionID drops the entry for localID from both indexes. It is
// used when a local session ends without a back-channel logout (timeout,
// manual logout). Removing an unknown id is not an error.
func (s *Store) RemoveByLocalSessionID(localID string) {
	s.removeByLocalID(localID)
}

func (s *Store) removeByLocalID(localID string) *binding {
	if localID == "" {
		return nil
	}
	var removed *binding
	s.stripes.update([]string{localID}, func() ([]string, func()) {
		b := s.shard(localID).byLocalID[localID]
		if b == nil {
			return nil, nil
		}
		return []string{b.sid}, func() {
			if s.unlink(b) {
				removed = b
			}
		}
	})
	return removed
}

func (s *Store) removeBinding(b *binding) bool {
	var removed bool
	s.stripes.update([]string{b.sid, b.localID}, func() ([]string, func()) {
		return nil, func() {
			removed = s.unlink(b)
		}
	})
	return removed
}

// InvalidateByProviderSessionID invalidates the local session bound to sid and
// then removes its entry. An unknown or expired sid is a no-op, so stale or
// replayed logout notifications succeed. A handle which reports
// ErrAlreadyInvalidated counts as successfully invalidated.
//
// Any other invalidation failure keeps the entry and is returned wrapping
// ErrInvalidationFailed.
func (s *Store) InvalidateByProviderSessionID(sid string) error {
	_, err := s.invalidate(sid)
	return err
}

// invalidate returns the entry it invalidated, if any.
func (s *Store) invalidate(sid string) (*binding, error) {
	b, ok := s.lookup(sid, bySid)
	if !ok {
		s.logger.Debug("no local session for provider session", "sid", sid)
		return nil, nil
	}
	if err := s.invalidateBinding(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) invalidateBinding(b *binding) error {
	const op = "session.(Store).InvalidateByProviderSessionID"
	s.logger.Debug("invalidating local session", "sid", b.sid, "local_id", b.localID)
	if err := b.handle.Invalidate(); err != nil {
		if !errors.Is(err, ErrAlreadyInvalidated) {
			s.logger.Warn("unable to invalidate local session", "sid", b.sid, "local_id", b.localID, "error", err)
			return fmt.Errorf("%s: local session %q: %w: %w", op, b.localID, ErrInvalidationFailed, err)
		}
		s.logger.Debug("local session was already invalidated", "sid", b.sid, "local_id", b.localID)
	}
	s.removeBinding(b)
	return nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	now := s.clock.Now()
	var n int
	for i := range s.shards {
		s.stripes.locks[i].RLock()
		for _, b := range s.shards[i].bySid {
			if !b.expired(now) {
				n++
			}
		}
		s.stripes.locks[i].RUnlock()
	}
	return n
}

func (s *Store) cleanupLoop(interval time.Duration) {
	defer close(s.done)
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.Chan():
			s.reclaim()
		}
	}
}

// reclaim physically removes expired entries and returns how many it
// removed.
func (s *Store) reclaim() int {
	now := s.clock.Now()
	var expired []*binding
	for i := range s.shards {
		s.stripes.locks[i].RLock()
		for _, b := range s.shards[i].bySid {
			if b.expired(now) {
				expired = append(expired, b)
			}
		}
		s.stripes.locks[i].RUnlock()
	}
	var n int
	for _, b := range expired {
		if !s.removeBinding(b) {
			// replaced or removed since the scan
			continue
		}
		n++
		if s.onEvict != nil {
			s.onEvict(b.sid, b.localID)
		}
	}
	if n > 0 {
		s.logger.Debug("reclaimed expired correlation entries", "count", n)
	}
	return n
}

// Close stops the background cleanup and clears both indexes. Handles are not
// invalidated. Close is idempotent; Put fails with ErrClosed afterwards.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		<-s.done

		all := s.stripes.all()
		s.stripes.lock(all)
		for i := range s.shards {
			clear(s.shards[i].bySid)
			clear(s.shards[i].byLocalID)
		}
		s.stripes.unlock(all)
		s.logger.Debug("correlation store closed")
	})
	return nil
}
