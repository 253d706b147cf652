package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

const (
	productionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"         //nolint:gosec // not a credential
	sandboxTokenURL    = "https://api.sandbox.ebay.com/identity/v1/oauth2/token" //nolint:gosec // not a credential

	defaultConnectTimeout = 5 * time.Second
	defaultRequestTimeout = 20 * time.Second
)

// TokenURL returns the OAuth token endpoint for the given environment.
func TokenURL(env domain.Environment) string {
	if env == domain.EnvSandbox {
		return sandboxTokenURL
	}
	return productionTokenURL
}

// TokenGrant is a successful response from the token endpoint with the
// relative lifetimes resolved to absolute times.
type TokenGrant struct {
	AccessToken      string
	TokenType        string
	ExpiresAt        time.Time
	RefreshToken     string
	RefreshExpiresAt *time.Time
}

// TokenError is returned when the token endpoint answers with a non-200
// status. Code and Description come from eBay's error body when present.
type TokenError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf(
		"token request failed (status %d): %s - %s",
		e.StatusCode, e.Code, e.Description,
	)
}

// AuthRejected reports whether eBay rejected the credentials themselves
// (revoked or invalid refresh token, bad client), as opposed to a server
// side failure.
func (e *TokenError) AuthRejected() bool {
	return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnauthorized
}

// IsNetworkError reports whether err is a transient transport failure:
// a timeout, a dial or read error, or a DNS lookup failure. TLS
// verification and malformed URL errors are configuration problems and
// return false, even though *url.Error satisfies net.Error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Refresher exchanges refresh tokens for new access tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string, scopes string) (*TokenGrant, error)
}

// OAuthClient implements Refresher against eBay's OAuth token endpoint using
// the refresh_token grant with Basic client authentication.
type OAuthClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client
	nowFunc      func() time.Time
}

// OAuthOption configures the OAuthClient.
type OAuthOption func(*OAuthClient)

// WithTokenURL overrides the default eBay token endpoint.
func WithTokenURL(u string) OAuthOption {
	return func(c *OAuthClient) {
		c.tokenURL = u
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) OAuthOption {
	return func(c *OAuthClient) {
		c.client = hc
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) OAuthOption {
	return func(c *OAuthClient) {
		c.nowFunc = f
	}
}

// NewOAuthClient creates a token endpoint client for the given application
// credentials.
func NewOAuthClient(clientID, clientSecret string, opts ...OAuthOption) *OAuthClient {
	c := &OAuthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     productionTokenURL,
		client:       NewHTTPClient(defaultConnectTimeout, defaultRequestTimeout),
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient returns an HTTP client with both a dial timeout and a total
// request timeout so a hung endpoint cannot stall a sweep. Requests are
// traced through otelhttp.
func NewHTTPClient(connectTimeout, totalTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	return &http.Client{
		Timeout:   totalTimeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	ExpiresIn             int    `json:"expires_in"`
	TokenType             string `json:"token_type"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh performs the refresh_token grant. Non-200 responses are returned
// as *TokenError; transport failures are wrapped and satisfy IsNetworkError.
func (c *OAuthClient) Refresh(
	ctx context.Context,
	refreshToken string,
	scopes string,
) (*TokenGrant, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if scopes != "" {
		form.Set("scope", scopes)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.tokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	creds := base64.StdEncoding.EncodeToString(
		[]byte(c.clientID + ":" + c.clientSecret),
	)
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		_ = json.Unmarshal(body, &errResp) //nolint:errcheck // best-effort error parsing
		return nil, &TokenError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("parsing token response: empty access_token")
	}

	now := c.nowFunc()
	grant := &TokenGrant{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    tokenResp.TokenType,
		ExpiresAt:    now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		RefreshToken: tokenResp.RefreshToken,
	}
	if tokenResp.RefreshToken != "" && tokenResp.RefreshTokenExpiresIn > 0 {
		exp := now.Add(time.Duration(tokenResp.RefreshTokenExpiresIn) * time.Second)
		grant.RefreshExpiresAt = &exp
	}

	return grant, nil
}
