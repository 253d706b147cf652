package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/metrics"
	"github.com/donaldgifford/ebay-seller-sync/internal/notify"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/telemetry"
	"github.com/donaldgifford/ebay-seller-sync/internal/vault"
	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// DefaultRefreshMargin is how close to expiry a cached access token may be
// before it is refreshed instead of returned.
const DefaultRefreshMargin = 5 * time.Minute

// Cipher seals and opens stored token strings. *vault.Vault implements it.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(value string) string
}

// Provider resolves valid, decrypted access tokens and refreshes them
// against eBay when needed. Safe for concurrent use.
type Provider struct {
	store    store.Store
	cipher   Cipher
	oauth    ebay.Refresher
	notifier notify.Notifier
	log      *slog.Logger
	tracer   trace.Tracer
	env      domain.Environment
	margin   time.Duration
	nowFunc  func() time.Time

	flights singleflight.Group
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.log = l
	}
}

// WithNotifier sets the operator notifier used for reconnect and
// configuration alerts.
func WithNotifier(n notify.Notifier) ProviderOption {
	return func(p *Provider) {
		p.notifier = n
	}
}

// WithEnvironment selects which stored token variant the provider manages.
func WithEnvironment(env domain.Environment) ProviderOption {
	return func(p *Provider) {
		p.env = env
	}
}

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.margin = d
	}
}

// WithTracer sets the tracer used for token spans.
func WithTracer(t trace.Tracer) ProviderOption {
	return func(p *Provider) {
		p.tracer = t
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowFunc = f
	}
}

// NewProvider creates a Provider.
func NewProvider(s store.Store, c Cipher, oauth ebay.Refresher, opts ...ProviderOption) *Provider {
	p := &Provider{
		store:   s,
		cipher:  c,
		oauth:   oauth,
		log:     slog.Default(),
		env:     domain.EnvProduction,
		margin:  DefaultRefreshMargin,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.notifier == nil {
		p.notifier = notify.NewNoOpNotifier(p.log)
	}
	if p.tracer == nil {
		p.tracer = telemetry.Tracer()
	}
	return p
}

// Environment returns the token environment this provider manages.
func (p *Provider) Environment() domain.Environment {
	return p.env
}

// GetValidAccessToken returns a usable access token for the account,
// refreshing it first when it is missing, expiring within the refresh
// margin, or when ForceRefresh is set. Expected failures are reported in
// the Result, never as a panic or error.
func (p *Provider) GetValidAccessToken(ctx context.Context, req Request) Result {
	if req.TriggeredBy == "" {
		req.TriggeredBy = domain.TriggerInternal
	}

	ctx, span := p.tracer.Start(ctx, "tokens.GetValidAccessToken", trace.WithAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.String("api_family", string(req.APIFamily)),
		attribute.String("triggered_by", string(req.TriggeredBy)),
		attribute.Bool("force_refresh", req.ForceRefresh),
	))
	defer span.End()

	res := p.resolve(ctx, req)

	span.SetAttributes(
		attribute.String("token.source", string(res.Source)),
		attribute.Bool("token.success", res.Success),
	)
	if !res.Success {
		span.SetStatus(codes.Error, string(res.ErrorCode))
	}
	metrics.TokenRequestsTotal.WithLabelValues(string(res.Source), resultLabel(&res)).Inc()

	return res
}

// FetchActiveToken is the single entry point for code that only needs a
// bearer token. It never returns ciphertext.
func (p *Provider) FetchActiveToken(
	ctx context.Context,
	accountID string,
	triggeredBy domain.TriggerSource,
	family domain.APIFamily,
) (string, bool) {
	res := p.GetValidAccessToken(ctx, Request{
		AccountID:   accountID,
		APIFamily:   family,
		TriggeredBy: triggeredBy,
	})
	if !res.Success {
		return "", false
	}
	return res.AccessToken, true
}

func (p *Provider) resolve(ctx context.Context, req Request) Result {
	tok, err := p.store.GetToken(ctx, req.AccountID, p.env)
	if errors.Is(err, store.ErrNotFound) {
		return failure(p.env, SourceCache, CodeNoToken, "no token stored for account")
	}
	if err != nil {
		p.log.Error("loading token failed", "account_id", req.AccountID, "error", err)
		return failure(p.env, SourceCache, CodeUnknown, fmt.Sprintf("loading token: %v", err))
	}

	if !req.ForceRefresh {
		if res, ok := p.cached(tok); ok {
			return res
		}
	}

	key := req.AccountID + "/" + string(p.env)
	v, _, shared := p.flights.Do(key, func() (any, error) {
		// A refresh outlives any single waiting caller.
		return p.refresh(context.WithoutCancel(ctx), req, tok), nil
	})
	if shared {
		p.log.Debug("joined in-flight token refresh", "account_id", req.AccountID)
	}
	return v.(Result)
}

// cached returns the stored access token when it is decrypted and not
// expiring within the margin.
func (p *Provider) cached(tok *domain.Token) (Result, bool) {
	if tok.AccessToken == nil || tok.AccessExpiresAt == nil {
		return Result{}, false
	}

	access := p.cipher.Decrypt(*tok.AccessToken)
	if access == "" {
		return Result{}, false
	}
	if vault.IsEncrypted(access) {
		p.log.Warn("cached access token still encrypted, refreshing",
			"account_id", tok.AccountID,
		)
		return Result{}, false
	}
	if !tok.AccessExpiresAt.After(p.nowFunc().Add(p.margin)) {
		return Result{}, false
	}

	exp := *tok.AccessExpiresAt
	return Result{
		Success:     true,
		AccessToken: access,
		Source:      SourceCache,
		Environment: p.env,
		TokenHash:   HashToken(access),
		ExpiresAt:   &exp,
	}, true
}

// refresh performs one refresh attempt and records exactly one refresh log.
// A panic after the log is written leaves the computed result in place.
func (p *Provider) refresh(ctx context.Context, req Request, tok *domain.Token) (res Result) {
	entry := &domain.TokenRefreshLog{
		AccountID:    req.AccountID,
		Environment:  p.env,
		APIFamily:    string(req.APIFamily),
		TriggeredBy:  req.TriggeredBy,
		StartedAt:    p.nowFunc(),
		OldExpiresAt: tok.AccessExpiresAt,
	}

	res, usedHash := p.safeExchange(ctx, tok)

	entry.FinishedAt = p.nowFunc()
	entry.Success = res.Success
	entry.ErrorCode = string(res.ErrorCode)
	entry.ErrorMessage = res.ErrorMessage
	entry.NewExpiresAt = res.ExpiresAt
	entry.TokenHash = res.TokenHash
	if entry.TokenHash == "" {
		entry.TokenHash = usedHash
	}
	if err := p.store.InsertTokenRefreshLog(ctx, entry); err != nil {
		p.log.Error("recording token refresh log failed",
			"account_id", req.AccountID,
			"error", err,
		)
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("panic after token refresh was recorded",
				"account_id", req.AccountID,
				"panic", fmt.Sprint(rec),
			)
		}
	}()

	metrics.TokenRefreshTotal.WithLabelValues(
		string(req.TriggeredBy),
		resultLabel(&res),
		string(res.ErrorCode),
	).Inc()

	if res.Success {
		p.log.Info("token refreshed",
			"account_id", req.AccountID,
			"api_family", string(req.APIFamily),
			"triggered_by", string(req.TriggeredBy),
			"token_hash", res.TokenHash,
			"expires_at", res.ExpiresAt,
		)
		return res
	}

	p.recordFailure(ctx, req, tok, &res)
	return res
}

// safeExchange runs exchange and turns a panic into an UNKNOWN_ERROR result.
// Panics must not escape a shared flight.
func (p *Provider) safeExchange(ctx context.Context, tok *domain.Token) (res Result, usedHash string) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("panic during token refresh",
				"account_id", tok.AccountID,
				"panic", fmt.Sprint(rec),
			)
			res = failure(p.env, SourceRefresh, CodeUnknown, "panic during refresh")
		}
	}()
	return p.exchange(ctx, tok)
}

// exchange calls the OAuth endpoint and persists the outcome on success.
// It also returns the fingerprint of the refresh token used.
func (p *Provider) exchange(ctx context.Context, tok *domain.Token) (Result, string) {
	var refreshToken string
	if tok.RefreshToken != nil {
		refreshToken = p.cipher.Decrypt(*tok.RefreshToken)
	}
	if refreshToken == "" {
		return failure(p.env, SourceRefresh, CodeNoRefreshToken,
			"no refresh token stored; account must be reconnected"), ""
	}
	usedHash := HashToken(refreshToken)
	if vault.IsEncrypted(refreshToken) {
		return failure(p.env, SourceRefresh, CodeTokenStillEncrypted,
			"stored refresh token could not be decrypted; check the vault secret"), usedHash
	}

	start := time.Now()
	grant, err := p.oauth.Refresh(ctx, refreshToken, tok.Scopes)
	metrics.TokenRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		code := classify(err)
		return failure(p.env, SourceRefresh, code, err.Error()), usedHash
	}

	if vault.IsEncrypted(grant.AccessToken) {
		return failure(p.env, SourceRefresh, CodeTokenStillEncrypted,
			"token endpoint returned a vault-prefixed access token"), usedHash
	}

	sealed, err := p.cipher.Encrypt(grant.AccessToken)
	if err != nil {
		return failure(p.env, SourceRefresh, CodeEncryptFailed,
			fmt.Sprintf("encrypting access token: %v", err)), usedHash
	}

	update := &domain.TokenRefresh{
		AccessToken:      sealed,
		AccessExpiresAt:  grant.ExpiresAt,
		RefreshExpiresAt: grant.RefreshExpiresAt,
		RefreshedAt:      p.nowFunc(),
	}
	if grant.RefreshToken != "" {
		rotated, err := p.cipher.Encrypt(grant.RefreshToken)
		if err != nil {
			return failure(p.env, SourceRefresh, CodeEncryptFailed,
				fmt.Sprintf("encrypting refresh token: %v", err)), usedHash
		}
		update.RefreshToken = &rotated
	}

	if err := p.store.SaveTokenRefresh(ctx, tok.ID, update); err != nil {
		return failure(p.env, SourceRefresh, CodeUnknown,
			fmt.Sprintf("persisting refreshed token: %v", err)), usedHash
	}

	exp := grant.ExpiresAt
	return Result{
		Success:     true,
		AccessToken: grant.AccessToken,
		Source:      SourceRefresh,
		Environment: p.env,
		TokenHash:   HashToken(grant.AccessToken),
		ExpiresAt:   &exp,
	}, usedHash
}

// classify maps an OAuth client error to an error code.
func classify(err error) ErrorCode {
	var tokenErr *ebay.TokenError
	switch {
	case errors.As(err, &tokenErr) && tokenErr.AuthRejected():
		return CodeAuthFailed
	case ebay.IsNetworkError(err):
		return CodeNetworkError
	default:
		return CodeUnknown
	}
}

// recordFailure persists the refresh error and surfaces terminal and
// configuration failures to operators. An alert is sent only when the code
// differs from the one already stored on the token.
func (p *Provider) recordFailure(ctx context.Context, req Request, tok *domain.Token, res *Result) {
	repeated := tok.LastRefreshErrorCode != nil && *tok.LastRefreshErrorCode == string(res.ErrorCode)

	if err := p.store.SaveTokenRefreshError(ctx, tok.ID, string(res.ErrorCode), res.ErrorMessage); err != nil {
		p.log.Error("saving token refresh error failed", "account_id", req.AccountID, "error", err)
	}

	switch {
	case res.ErrorCode == CodeTokenStillEncrypted:
		metrics.TokenConfigErrorsTotal.Inc()
		p.log.Error("token still encrypted after decryption",
			"account_id", req.AccountID,
			"error_code", string(res.ErrorCode),
			"config_error", true,
			"repeated", repeated,
		)
		if repeated {
			return
		}
		p.alert(ctx, notify.KindConfigError, req.AccountID, res,
			"Stored eBay token could not be decrypted. The vault secret likely changed; "+
				"this is a configuration problem, not a seller reconnect.")

	case res.ErrorCode.Terminal():
		p.log.Warn("token refresh failed, account needs reconnect",
			"account_id", req.AccountID,
			"error_code", string(res.ErrorCode),
			"error", res.ErrorMessage,
		)
		if err := p.store.MarkNeedsReconnect(ctx, req.AccountID, string(res.ErrorCode)); err != nil {
			p.log.Error("marking account needs reconnect failed", "account_id", req.AccountID, "error", err)
		}
		p.syncReconnectGauge(ctx)
		if repeated {
			return
		}
		p.alert(ctx, notify.KindReconnectRequired, req.AccountID, res, res.ErrorMessage)

	default:
		p.log.Warn("token refresh failed",
			"account_id", req.AccountID,
			"error_code", string(res.ErrorCode),
			"error", res.ErrorMessage,
		)
	}
}

func (p *Provider) alert(ctx context.Context, kind notify.AlertKind, accountID string, res *Result, msg string) {
	alert := notify.AccountAlert{
		Kind:       kind,
		AccountID:  accountID,
		ErrorCode:  string(res.ErrorCode),
		Message:    msg,
		OccurredAt: p.nowFunc(),
	}
	if a, err := p.store.GetAccount(ctx, accountID); err == nil {
		alert.AccountName = a.DisplayName
	}
	if err := p.notifier.SendAccountAlert(ctx, alert); err != nil {
		p.log.Error("sending account alert failed",
			"account_id", accountID,
			"kind", string(kind),
			"error", err,
		)
	}
}

func (p *Provider) syncReconnectGauge(ctx context.Context) {
	n, err := p.store.CountNeedsReconnect(ctx)
	if err != nil {
		p.log.Warn("counting accounts needing reconnect failed", "error", err)
		return
	}
	metrics.AccountsNeedingReconnect.Set(float64(n))
}

// StoreAuthorization persists a freshly authorized token pair for an
// account, encrypting both tokens and clearing reconnect state.
func (p *Provider) StoreAuthorization(
	ctx context.Context,
	accountID string,
	grant *ebay.TokenGrant,
	scopes string,
) error {
	if grant == nil || grant.AccessToken == "" {
		return errors.New("storing authorization: empty access token")
	}

	access, err := p.cipher.Encrypt(grant.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}

	now := p.nowFunc()
	exp := grant.ExpiresAt
	tok := &domain.Token{
		AccountID:        accountID,
		Environment:      p.env,
		AccessToken:      &access,
		AccessExpiresAt:  &exp,
		RefreshExpiresAt: grant.RefreshExpiresAt,
		Scopes:           scopes,
		LastRefreshedAt:  &now,
	}
	if grant.RefreshToken != "" {
		refresh, err := p.cipher.Encrypt(grant.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypting refresh token: %w", err)
		}
		tok.RefreshToken = &refresh
	}

	if err := p.store.UpsertToken(ctx, tok); err != nil {
		return fmt.Errorf("storing authorization: %w", err)
	}
	p.syncReconnectGauge(ctx)

	p.log.Info("account authorization stored",
		"account_id", accountID,
		"environment", string(p.env),
		"token_hash", HashToken(grant.AccessToken),
	)
	return nil
}
