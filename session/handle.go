package session

// Handle is the relying party's local session as seen by this package. It is
// created, extended and destroyed by the web layer; a Store only holds it for
// lookups.
type Handle interface {
	// ID returns the local session id. It must be stable for the lifetime of
	// the session and must not be empty.
	ID() string

	// Invalidate terminates the local session. Implementations should return
	// an error wrapping ErrAlreadyInvalidated when the session has already
	// ended.
	Invalidate() error
}
