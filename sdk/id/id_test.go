package id

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	idLen := base64.RawURLEncoding.EncodedLen(DefaultLen)
	tests := []struct {
		name    string
		prefix  string
		wantLen int
	}{
		{
			name:    "valid",
			prefix:  "s",
			wantLen: idLen + len("s_"),
		},
		{
			name:    "no-prefix",
			wantLen: idLen,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := New(tt.prefix)
			require.NoError(err)
			if tt.prefix != "" {
				assert.True(strings.HasPrefix(got, tt.prefix+"_"))
			}
			assert.Len(got, tt.wantLen)

			other, err := New(tt.prefix)
			require.NoError(err)
			assert.NotEqual(got, other)
		})
	}
}
