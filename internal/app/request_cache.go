package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/cap/oidc"
)

// requestCache keeps the login attempts in flight, keyed by state. It
// implements callback.RequestReader.
type requestCache struct {
	m sync.Mutex
	c map[string]oidc.Request
}

func newRequestCache() *requestCache {
	return &requestCache{
		c: map[string]oidc.Request{},
	}
}

// Read implements the callback.RequestReader interface. Expired attempts are
// dropped and reported as not found.
func (rc *requestCache) Read(_ context.Context, state string) (oidc.Request, error) {
	const op = "requestCache.Read"
	rc.m.Lock()
	defer rc.m.Unlock()
	if oidcRequest, ok := rc.c[state]; ok {
		if oidcRequest.IsExpired() {
			delete(rc.c, state)
			return nil, fmt.Errorf("%s: state %s not found (expired)", op, state)
		}
		return oidcRequest, nil
	}
	return nil, fmt.Errorf("%s: state %s not found", op, state)
}

// Add caches r and drops every expired attempt.
func (rc *requestCache) Add(r oidc.Request) {
	rc.m.Lock()
	defer rc.m.Unlock()
	for state, cached := range rc.c {
		if cached.IsExpired() {
			delete(rc.c, state)
		}
	}
	rc.c[r.State()] = r
}

func (rc *requestCache) Delete(state string) {
	rc.m.Lock()
	defer rc.m.Unlock()
	delete(rc.c, state)
}

func (rc *requestCache) Len() int {
	rc.m.Lock()
	defer rc.m.Unlock()
	return len(rc.c)
}
