package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/vault"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func TestEncryptLegacyTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemoryStore()
	v := testVault(t)

	legacy := seedAccount(t, s, "legacy")
	access, refresh := "plain-access", "plain-refresh"
	seedToken(t, s, legacy.ID, &access, &refresh, time.Now().Add(time.Hour))

	sealed := seedAccount(t, s, "sealed")
	seedToken(t, s, sealed.ID, seal(t, v, "a"), seal(t, v, "r"), time.Now().Add(time.Hour))

	partial := seedAccount(t, s, "partial")
	seedToken(t, s, partial.ID, seal(t, v, "a"), nil, time.Now().Add(time.Hour))

	n, err := EncryptLegacyTokens(ctx, s, v)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tok, err := s.GetToken(ctx, legacy.ID, domain.EnvProduction)
	require.NoError(t, err)
	assert.True(t, vault.IsEncrypted(*tok.AccessToken))
	assert.Equal(t, "plain-access", v.Decrypt(*tok.AccessToken))
	assert.Equal(t, "plain-refresh", v.Decrypt(*tok.RefreshToken))

	tok, err = s.GetToken(ctx, partial.ID, domain.EnvProduction)
	require.NoError(t, err)
	assert.Nil(t, tok.RefreshToken)

	n, err = EncryptLegacyTokens(ctx, s, v)
	require.NoError(t, err)
	assert.Zero(t, n, "second pass finds nothing to migrate")
}
