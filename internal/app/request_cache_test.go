package app

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/cap/oidc"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCache(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	// requests compare their expiration against the wall clock, so stale
	// ones are issued from a clock set in the past.
	past := clockwork.NewFakeClockAt(time.Now().Add(-2 * time.Minute))
	rc := newRequestCache()

	stale, err := oidc.NewRequest(time.Minute, "http://localhost/callback", oidc.WithNow(past.Now))
	require.NoError(err)
	live, err := oidc.NewRequest(time.Hour, "http://localhost/callback")
	require.NoError(err)
	rc.Add(stale)
	rc.Add(live)
	assert.Equal(2, rc.Len())

	got, err := rc.Read(ctx, live.State())
	require.NoError(err)
	assert.Equal(live.State(), got.State())

	_, err = rc.Read(ctx, "unknown")
	assert.Error(err)

	_, err = rc.Read(ctx, stale.State())
	assert.Error(err)
	assert.Equal(1, rc.Len())

	rc.Add(stale)
	other, err := oidc.NewRequest(time.Minute, "http://localhost/callback")
	require.NoError(err)
	rc.Add(other)
	assert.Equal(2, rc.Len())

	rc.Delete(other.State())
	rc.Delete(live.State())
	assert.Equal(0, rc.Len())
}
