// Package vault encrypts long-lived credentials at rest.
//
// Ciphertext is a self-describing string "ENC:v1:<base64(nonce||sealed)>"
// produced with AES-256-GCM. The key is derived from a single application
// secret with HKDF-SHA256. Values without the prefix are legacy plaintext and
// pass through Decrypt unchanged so old rows keep working.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Prefix marks a value produced by Encrypt.
const Prefix = "ENC:v1:"

const (
	keySize   = 32
	nonceSize = 12
	hkdfSalt  = "ebay-seller-sync/vault"
	hkdfInfo  = "token-encryption-v1"
)

// ErrEmptySecret is returned when no application secret is configured.
var ErrEmptySecret = errors.New("vault secret is empty")

// Vault encrypts and decrypts token strings. Safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
	rand io.Reader
	log  *slog.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the logger used to report decryption failures.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) {
		v.log = l
	}
}

// WithRandReader overrides the nonce source. Intended for tests.
func WithRandReader(r io.Reader) Option {
	return func(v *Vault) {
		v.rand = r
	}
}

// New derives the encryption key from secret and returns a Vault.
func New(secret string, opts ...Option) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(hkdfSalt), []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving vault key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	v := &Vault{
		aead: aead,
		rand: rand.Reader,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// IsEncrypted reports whether s carries the vault prefix. A Decrypt result
// for which this is still true means decryption failed.
func IsEncrypted(s string) bool {
	return strings.HasPrefix(s, Prefix)
}

// Encrypt seals plaintext with a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(v.rand, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// EncryptNullable is Encrypt for optional columns: nil in, nil out.
func (v *Vault) EncryptNullable(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	out, err := v.Encrypt(*plaintext)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Decrypt opens a value produced by Encrypt. It never fails: legacy
// plaintext is returned as is, and a prefixed value that cannot be opened is
// returned unchanged after logging the failure.
func (v *Vault) Decrypt(value string) string {
	if !IsEncrypted(value) {
		return value
	}

	plaintext, err := v.open(strings.TrimPrefix(value, Prefix))
	if err != nil {
		v.log.Error("token decryption failed",
			"error_type", fmt.Sprintf("%T", errors.Unwrap(err)),
			"reason", err.Error(),
		)
		return value
	}
	return plaintext
}

// DecryptNullable is Decrypt for optional columns: nil in, nil out.
func (v *Vault) DecryptNullable(value *string) *string {
	if value == nil {
		return nil
	}
	out := v.Decrypt(*value)
	return &out
}

// decryptError keeps the failure stage without leaking payload bytes.
type decryptError struct {
	stage string
	err   error
}

func (e *decryptError) Error() string {
	return e.stage
}

func (e *decryptError) Unwrap() error {
	return e.err
}

func (v *Vault) open(payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &decryptError{stage: "invalid base64 payload", err: err}
	}
	if len(raw) < nonceSize+v.aead.Overhead() {
		return "", &decryptError{stage: "payload too short", err: io.ErrUnexpectedEOF}
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &decryptError{stage: "authentication failed", err: err}
	}
	return string(plaintext), nil
}
