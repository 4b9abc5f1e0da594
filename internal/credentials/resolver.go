// Package credentials resolves provider credentials — API keys and
// refreshable OAuth tokens — with single-flight-coalesced refresh and
// atomic on-disk persistence.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/mweinbach/agent-coworker-sub008/pkg/models"
)

// RefreshSkewMs is how far ahead of expiry a refresh is triggered (spec §4.3).
const RefreshSkewMs = 60_000

// RefreshTimeout bounds the network round trip for a token refresh (spec §5).
const RefreshTimeout = 30 * time.Second

// ErrCredentialsMissingOrExpired is returned when no usable credential
// exists and none can be refreshed.
var ErrCredentialsMissingOrExpired = errors.New("credentials_missing_or_expired")

// flightKey coalesces refreshes per (provider, accountId), per spec §4.3.
type flightKey struct {
	provider  string
	accountID string
}

// Resolver resolves CredentialMaterial for a provider, refreshing expiring
// OAuth tokens under a single-flight guard shared across sessions. Grounded
// on the teacher's internal/infra.Group[K,V] (generic singleflight with
// hit/miss stats) for coalescing, and on internal/auth/oauth.go's
// golang.org/x/oauth2 usage for the refresh HTTP call shape — oauth.go
// itself implements user-login SSO, a different concern; only its library
// plumbing is carried here.
type Resolver struct {
	store   *FileStore
	logger  *slog.Logger
	oauth   map[string]oauth2.Config // provider -> token endpoint config
	apiKeys map[string]string        // provider -> static api key, set directly (not from disk)

	mu    sync.Mutex
	calls map[flightKey]*call

	hits   uint64
	misses uint64
}

type call struct {
	wg     sync.WaitGroup
	val     models.CredentialMaterial
	err     error
}

// NewResolver creates a Resolver backed by store for OAuth token
// persistence.
func NewResolver(store *FileStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:   store,
		logger:  logger.With("component", "credentials"),
		oauth:   make(map[string]oauth2.Config),
		apiKeys: make(map[string]string),
		calls:   make(map[flightKey]*call),
	}
}

// RegisterOAuthProvider configures the token endpoint used to refresh
// provider's tokens.
func (r *Resolver) RegisterOAuthProvider(provider string, cfg oauth2.Config) {
	r.oauth[provider] = cfg
}

// SetAPIKey registers a static api-key credential for provider, bypassing
// the on-disk document entirely (spec's "api-key providers: saved key in a
// credential store, no refresh").
func (r *Resolver) SetAPIKey(provider, key string) {
	r.apiKeys[provider] = key
}

// Resolve returns CredentialMaterial valid for use now for provider,
// refreshing an expiring OAuth token if needed. Concurrent callers for the
// same (provider, accountId) coalesce onto one refresh.
func (r *Resolver) Resolve(ctx context.Context, provider string) (models.CredentialMaterial, error) {
	if key, ok := r.apiKeys[provider]; ok {
		return models.CredentialMaterial{AccessToken: key}, nil
	}

	doc, err := r.store.Load(provider)
	if err != nil {
		return models.CredentialMaterial{}, fmt.Errorf("%w: %v", ErrCredentialsMissingOrExpired, err)
	}

	nowMs := time.Now().UnixMilli()
	if doc.Tokens.ExpiresAt == 0 || doc.Tokens.ExpiresAt-nowMs > RefreshSkewMs {
		return materialFromDocument(doc), nil
	}

	if doc.Tokens.RefreshToken == "" {
		return models.CredentialMaterial{}, ErrCredentialsMissingOrExpired
	}

	accountID := ""
	if doc.Account != nil {
		accountID = doc.Account.AccountID
	}
	return r.refreshSingleFlight(ctx, provider, accountID, doc)
}

func (r *Resolver) refreshSingleFlight(ctx context.Context, provider, accountID string, doc *models.CredentialDocument) (models.CredentialMaterial, error) {
	key := flightKey{provider: provider, accountID: accountID}

	r.mu.Lock()
	if c, ok := r.calls[key]; ok {
		r.hits++
		r.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err
	}
	c := &call{}
	c.wg.Add(1)
	r.calls[key] = c
	r.misses++
	r.mu.Unlock()

	c.val, c.err = r.doRefresh(ctx, provider, doc)

	r.mu.Lock()
	delete(r.calls, key)
	r.mu.Unlock()
	c.wg.Done()

	return c.val, c.err
}

func (r *Resolver) doRefresh(ctx context.Context, provider string, doc *models.CredentialDocument) (models.CredentialMaterial, error) {
	cfg, ok := r.oauth[provider]
	if !ok {
		return models.CredentialMaterial{}, fmt.Errorf("credentials: no oauth config registered for provider %q", provider)
	}

	ctx, cancel := context.WithTimeout(ctx, RefreshTimeout)
	defer cancel()

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: doc.Tokens.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.CredentialMaterial{}, fmt.Errorf("%w: refresh failed: %v", ErrCredentialsMissingOrExpired, err)
	}

	doc.Tokens.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		doc.Tokens.RefreshToken = tok.RefreshToken
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		doc.Tokens.IDToken = idToken
	}
	if !tok.Expiry.IsZero() {
		doc.Tokens.ExpiresAt = tok.Expiry.UnixMilli()
	}
	doc.LastRefresh = time.Now().UTC().Format(time.RFC3339)

	updateAccountFromClaims(doc)

	if err := r.store.Save(provider, doc); err != nil {
		r.logger.Warn("failed to persist refreshed credential", "provider", provider, "error", err)
	}

	return materialFromDocument(doc), nil
}

func materialFromDocument(doc *models.CredentialDocument) models.CredentialMaterial {
	m := models.CredentialMaterial{
		AccessToken:  doc.Tokens.AccessToken,
		RefreshToken: doc.Tokens.RefreshToken,
		ExpiresAtMs:  doc.Tokens.ExpiresAt,
	}
	if doc.Account != nil {
		m.AccountID = doc.Account.AccountID
		m.Email = doc.Account.Email
		m.PlanType = doc.Account.PlanType
	}
	return m
}

// updateAccountFromClaims decodes account identity from the id token when
// present, else the access token. Decode failure is non-fatal: the
// document's existing account fields are left untouched (spec §4.3:
// "decoding failure is non-fatal, the unknown fields become undefined").
func updateAccountFromClaims(doc *models.CredentialDocument) {
	token := doc.Tokens.IDToken
	if token == "" {
		token = doc.Tokens.AccessToken
	}
	claims, err := decodeUnverifiedClaims(token)
	if err != nil {
		return
	}
	if doc.Account == nil {
		doc.Account = &models.CredentialAccount{}
	}
	if v, ok := claims["sub"].(string); ok && v != "" {
		doc.Account.AccountID = v
	}
	if v, ok := claims["email"].(string); ok && v != "" {
		doc.Account.Email = v
	}
	if v, ok := claims["plan_type"].(string); ok && v != "" {
		doc.Account.PlanType = v
	}
}

// decodeUnverifiedClaims reads a JWT's claim set without verifying its
// signature — this resolver trusts the provider's TLS channel, not a local
// signing key, so there is nothing to verify against. Uses
// github.com/golang-jwt/jwt/v5, the same library the teacher signs its own
// session tokens with (internal/auth/jwt.go), here only for decode.
func decodeUnverifiedClaims(token string) (jwt.MapClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("empty token")
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Stats reports single-flight hit/miss counts, mirroring the teacher's
// GroupStats shape.
type Stats struct {
	Hits   uint64
	Misses uint64
}

func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Hits: r.hits, Misses: r.misses}
}
