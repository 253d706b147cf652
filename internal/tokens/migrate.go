package tokens

import (
	"context"
	"fmt"

	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/vault"
)

// EncryptLegacyTokens re-encrypts stored token strings that are still
// legacy plaintext. It returns the number of token rows updated.
func EncryptLegacyTokens(ctx context.Context, s store.Store, c Cipher) (int, error) {
	toks, err := s.ListTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing tokens: %w", err)
	}

	updated := 0
	for i := range toks {
		t := &toks[i]
		access, accessChanged, err := sealLegacy(c, t.AccessToken)
		if err != nil {
			return updated, fmt.Errorf("encrypting access token of %s: %w", t.AccountID, err)
		}
		refresh, refreshChanged, err := sealLegacy(c, t.RefreshToken)
		if err != nil {
			return updated, fmt.Errorf("encrypting refresh token of %s: %w", t.AccountID, err)
		}
		if !accessChanged && !refreshChanged {
			continue
		}
		if err := s.UpdateTokenSecrets(ctx, t.ID, access, refresh); err != nil {
			return updated, fmt.Errorf("updating token of %s: %w", t.AccountID, err)
		}
		updated++
	}
	return updated, nil
}

// sealLegacy encrypts a non-empty plaintext value; encrypted and missing
// values are returned as they are.
func sealLegacy(c Cipher, value *string) (*string, bool, error) {
	if value == nil || *value == "" || vault.IsEncrypted(*value) {
		return value, false, nil
	}
	sealed, err := c.Encrypt(*value)
	if err != nil {
		return nil, false, err
	}
	return &sealed, true, nil
}
