package tokens

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/notify"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/vault"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// quietLogger returns a logger that discards output for tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockOAuth struct {
	mock.Mock
}

func (m *mockOAuth) Refresh(ctx context.Context, refreshToken, scopes string) (*ebay.TokenGrant, error) {
	args := m.Called(ctx, refreshToken, scopes)
	grant, _ := args.Get(0).(*ebay.TokenGrant)
	return grant, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendAccountAlert(ctx context.Context, alert notify.AccountAlert) error {
	return m.Called(ctx, alert).Error(0)
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New("test-secret", vault.WithLogger(quietLogger()))
	require.NoError(t, err)
	return v
}

func seal(t *testing.T, v *vault.Vault, plaintext string) *string {
	t.Helper()
	out, err := v.Encrypt(plaintext)
	require.NoError(t, err)
	return &out
}

func seedAccount(t *testing.T, s store.Store, name string) *domain.Account {
	t.Helper()
	a := &domain.Account{EbayUserID: name, DisplayName: "House " + name, Active: true}
	require.NoError(t, s.UpsertAccount(context.Background(), a))
	return a
}

// seedToken stores a token whose strings are already in their stored form.
func seedToken(
	t *testing.T,
	s store.Store,
	accountID string,
	access, refresh *string,
	expiresAt time.Time,
) *domain.Token {
	t.Helper()
	tok := &domain.Token{
		AccountID:       accountID,
		Environment:     domain.EnvProduction,
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: &expiresAt,
		Scopes:          "https://api.ebay.com/oauth/api_scope",
	}
	require.NoError(t, s.UpsertToken(context.Background(), tok))
	return tok
}

func grant(access string, expiresAt time.Time) *ebay.TokenGrant {
	return &ebay.TokenGrant{AccessToken: access, TokenType: "User Access Token", ExpiresAt: expiresAt}
}
