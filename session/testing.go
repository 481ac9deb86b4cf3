package session

import (
	"fmt"
	"sync"
)

// TestHandle is a Handle for tests. It counts calls to Invalidate and reports
// ErrAlreadyInvalidated for every call after the first.
type TestHandle struct {
	id string

	mu            sync.Mutex
	invalidations int
	invalidateErr error
}

var _ Handle = (*TestHandle)(nil)

// NewTestHandle returns a TestHandle with the given id.
func NewTestHandle(id string) *TestHandle {
	return &TestHandle{id: id}
}

// ID implements the Handle.ID() interface function.
func (h *TestHandle) ID() string { return h.id }

// Invalidate implements the Handle.Invalidate() interface function.
func (h *TestHandle) Invalidate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidations++
	switch {
	case h.invalidateErr != nil:
		return h.invalidateErr
	case h.invalidations > 1:
		return fmt.Errorf("test handle %s: %w", h.id, ErrAlreadyInvalidated)
	}
	return nil
}

// Invalidations returns how many times Invalidate was called.
func (h *TestHandle) Invalidations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.invalidations
}

// SetInvalidateErr makes every following Invalidate call return err.
func (h *TestHandle) SetInvalidateErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateErr = err
}
