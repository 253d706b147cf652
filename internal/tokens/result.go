// Package tokens resolves usable eBay access tokens for connected accounts
// and keeps stored credentials fresh.
package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"time"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// ErrorCode classifies a failed token resolution.
type ErrorCode string

// Error codes.
const (
	CodeNoToken             ErrorCode = "NO_TOKEN"
	CodeNoRefreshToken      ErrorCode = "NO_REFRESH_TOKEN"
	CodeAuthFailed          ErrorCode = "AUTH_FAILED"
	CodeNetworkError        ErrorCode = "NETWORK_ERROR"
	CodeTokenStillEncrypted ErrorCode = "TOKEN_STILL_ENCRYPTED"
	CodeEncryptFailed       ErrorCode = "ENCRYPT_FAILED"
	CodeUnknown             ErrorCode = "UNKNOWN_ERROR"
)

// TerminalCodes can only be cleared by the seller authorizing again. The
// refresh sweep never retries them.
var TerminalCodes = []ErrorCode{CodeNoRefreshToken, CodeAuthFailed}

// Terminal reports whether the code requires re-authorization.
func (c ErrorCode) Terminal() bool {
	return slices.Contains(TerminalCodes, c)
}

// sweepExcludedCodes are never retried by the refresh sweep: terminal codes
// wait for a new authorization and TOKEN_STILL_ENCRYPTED waits for the vault
// secret to be fixed.
func sweepExcludedCodes() []string {
	out := make([]string, 0, len(TerminalCodes)+1)
	for _, c := range TerminalCodes {
		out = append(out, string(c))
	}
	return append(out, string(CodeTokenStillEncrypted))
}

// Source tells where a returned access token came from.
type Source string

// Token sources.
const (
	SourceCache   Source = "cache"
	SourceRefresh Source = "refresh"
)

// Request asks for a usable access token.
type Request struct {
	AccountID    string
	APIFamily    domain.APIFamily
	ForceRefresh bool
	TriggeredBy  domain.TriggerSource
}

// Result is the structured outcome of a token lookup. AccessToken is never
// serialized.
type Result struct {
	Success      bool               `json:"success"`
	AccessToken  string             `json:"-"`
	ErrorCode    ErrorCode          `json:"error_code,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Source       Source             `json:"source"`
	Environment  domain.Environment `json:"environment"`
	TokenHash    string             `json:"token_hash,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
}

func failure(env domain.Environment, source Source, code ErrorCode, msg string) Result {
	return Result{
		ErrorCode:    code,
		ErrorMessage: msg,
		Source:       source,
		Environment:  env,
	}
}

// resultLabel is the metric label for a result.
func resultLabel(r *Result) string {
	if r.Success {
		return "success"
	}
	return "failure"
}

// HashToken returns a short, non-reversible fingerprint of a token suitable
// for logs.
func HashToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}
