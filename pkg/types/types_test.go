package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func TestEnvironment_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.EnvProduction.Valid())
	assert.True(t, domain.EnvSandbox.Valid())
	assert.False(t, domain.Environment("").Valid())
	assert.False(t, domain.Environment("staging").Valid())
}

func TestAPIFamily_Valid(t *testing.T) {
	t.Parallel()

	for _, f := range domain.AllFamilies {
		assert.True(t, f.Valid(), "family %s", f)
	}
	assert.False(t, domain.APIFamily("").Valid())
	assert.False(t, domain.APIFamily("Orders").Valid())
}

func TestRunStatus_Terminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status domain.RunStatus
		want   bool
	}{
		{domain.RunRunning, false},
		{domain.RunSuccess, true},
		{domain.RunError, true},
		{domain.RunStale, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.status.Terminal())
		})
	}
}

func TestCursor(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.Cursor{}.IsZero())
	assert.False(t, domain.Cursor{Type: "position"}.IsZero())

	s := domain.SyncState{CursorType: "position", CursorValue: `{"offset":3}`}
	assert.Equal(t, domain.Cursor{Type: "position", Value: `{"offset":3}`}, s.Cursor())
}

func TestToken_SecretsNotSerialized(t *testing.T) {
	t.Parallel()

	access, refresh := "v^1.1#access", "v^1.1#refresh"
	data, err := json.Marshal(domain.Token{
		AccountID:    "acct-1",
		Environment:  domain.EnvProduction,
		AccessToken:  &access,
		RefreshToken: &refresh,
	})
	require.NoError(t, err)

	assert.NotContains(t, string(data), access)
	assert.NotContains(t, string(data), refresh)
	assert.Contains(t, string(data), `"account_id":"acct-1"`)
}
