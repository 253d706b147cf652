package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

func seedAccount(t *testing.T, s store.Store, name string) *domain.Account {
	t.Helper()
	a := &domain.Account{EbayUserID: name, DisplayName: name, Active: true}
	require.NoError(t, s.UpsertAccount(context.Background(), a))
	return a
}

// seedToken stores a token and then records a failed refresh on it, the
// way the provider does. UpsertToken itself clears refresh errors.
func seedToken(t *testing.T, s store.Store, accountID string) *domain.Token {
	t.Helper()
	ctx := context.Background()
	access, refresh := "ENC:v1:access", "ENC:v1:refresh"
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := &domain.Token{
		AccountID:       accountID,
		Environment:     domain.EnvProduction,
		AccessToken:     &access,
		RefreshToken:    &refresh,
		AccessExpiresAt: &expires,
	}
	require.NoError(t, s.UpsertToken(ctx, tok))
	require.NoError(t, s.SaveTokenRefreshError(ctx, tok.ID, "NETWORK_ERROR", "dial tcp: timeout"))
	return tok
}
