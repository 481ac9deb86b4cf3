package session

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Registry holds the hooks the rest of the application calls to keep the
// correlation Store and SubjectIndex current: one login hook, one back-channel
// logout hook and one hook for local sessions ending any other way.
//
// The Registry owns neither the handles nor the web sessions behind them.
type Registry struct {
	store    *Store
	subjects *SubjectIndex
	logger   hclog.Logger
}

// NewRegistry creates a Registry over store and subjects. Supports the
// WithLogger option.
func NewRegistry(store *Store, subjects *SubjectIndex, opt ...Option) (*Registry, error) {
	const op = "session.NewRegistry"
	switch {
	case store == nil:
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	case subjects == nil:
		return nil, fmt.Errorf("%s: subject index is nil: %w", op, ErrNilParameter)
	}
	opts := getRegistryOpts(opt...)
	if isNil(opts.withLogger) {
		opts.withLogger = hclog.NewNullLogger()
	}
	return &Registry{
		store:    store,
		subjects: subjects,
		logger:   opts.withLogger,
	}, nil
}

// Store returns the registry's correlation store.
func (r *Registry) Store() *Store { return r.store }

// Subjects returns the registry's subject index.
func (r *Registry) Subjects() *SubjectIndex { return r.subjects }

// OnLoginSuccess is called once per successful authentication. It binds sid
// to the local session h and, when sub is not empty, adds h to the subject's
// sessions.
func (r *Registry) OnLoginSuccess(sid, sub string, h Handle) error {
	const op = "session.(Registry).OnLoginSuccess"
	if err := r.store.Put(sid, h); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub != "" {
		if err := r.subjects.BindSubjectToSession(sub, h.ID()); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	r.logger.Debug("login bound", "sid", sid, "sub", sub, "local_id", h.ID())
	return nil
}

// OnSubjectLogin is OnLoginSuccess for an authentication which carried no sid.
// No correlation entry is created. The subject index keeps h instead, so a
// logout naming sub still reaches it.
func (r *Registry) OnSubjectLogin(sub string, h Handle) error {
	const op = "session.(Registry).OnSubjectLogin"
	if err := r.subjects.BindSubjectToHandle(sub, h); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.logger.Debug("login bound to subject only", "sub", sub, "local_id", h.ID())
	return nil
}

// OnBackchannelLogout is called once per received logout notification with
// the claims of its logout token. The session named by the "sid" claim is
// invalidated. A token without "sid" but with "sub" logs out every session
// of that subject. Unknown, expired or missing identifiers are not errors.
func (r *Registry) OnBackchannelLogout(claims map[string]string) error {
	const op = "session.(Registry).OnBackchannelLogout"
	sid, sub := claims["sid"], claims["sub"]
	switch {
	case sid != "":
		b, err := r.store.invalidate(sid)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if b != nil {
			r.subjects.UnbindBySessionID(b.localID)
			r.logger.Info("back-channel logout", "sid", sid, "local_id", b.localID)
		}
		return nil
	case sub != "":
		if err := r.InvalidateSubject(sub); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	default:
		r.logger.Debug("logout token carries neither sid nor sub")
		return nil
	}
}

// InvalidateSubject invalidates every local session bound to sub. Failures
// for individual sessions do not stop the others; they are returned together.
func (r *Registry) InvalidateSubject(sub string) error {
	var retErr *multierror.Error
	ids := r.subjects.SessionsForSubject(sub)
	for _, localID := range ids {
		if err := r.invalidateLocal(localID); err != nil {
			retErr = multierror.Append(retErr, err)
			continue
		}
		r.subjects.UnbindBySessionID(localID)
	}
	if len(ids) > 0 {
		r.logger.Info("back-channel logout for subject", "sub", sub, "sessions", len(ids))
	}
	return retErr.ErrorOrNil()
}

// invalidateLocal invalidates localID through its correlation entry or, for a
// session bound without a sid, through the handle the subject index keeps.
func (r *Registry) invalidateLocal(localID string) error {
	const op = "session.(Registry).InvalidateSubject"
	if b, ok := r.store.lookup(localID, byLocalID); ok {
		return r.store.invalidateBinding(b)
	}
	h, ok := r.subjects.handle(localID)
	if !ok {
		return nil
	}
	if err := h.Invalidate(); err != nil && !errors.Is(err, ErrAlreadyInvalidated) {
		r.logger.Warn("unable to invalidate local session", "local_id", localID, "error", err)
		return fmt.Errorf("%s: local session %q: %w: %w", op, localID, ErrInvalidationFailed, err)
	}
	return nil
}

// OnLocalSessionEnded is called whenever a local session ends through a path
// other than a back-channel logout, for example an idle timeout or a manual
// logout. It drops the session from both correlation indexes and from the
// subject index.
func (r *Registry) OnLocalSessionEnded(localID string) {
	r.store.RemoveByLocalSessionID(localID)
	r.subjects.UnbindBySessionID(localID)
	r.logger.Debug("local session ended", "local_id", localID)
}

// Close closes the store and clears the subject index.
func (r *Registry) Close() error {
	var retErr *multierror.Error
	if err := r.store.Close(); err != nil {
		retErr = multierror.Append(retErr, err)
	}
	r.subjects.Close()
	return retErr.ErrorOrNil()
}
