package ebay

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	tokenURL        = "https://api.ebay.com/identity/v1/oauth2/token"
	sandboxTokenURL = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
)

// TokenSet holds the OAuth tokens from an authorization-code or refresh
// exchange.
type TokenSet struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// Valid reports whether the access token is still usable, with a safety
// margin for clock skew and in-flight time.
func (t TokenSet) Valid() bool {
	return t.AccessToken != "" && time.Until(t.ExpiresAt) > 2*time.Minute
}

type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
}

// TokenStore persists token sets between process restarts.
type TokenStore interface {
	GetEbayTokens() (*TokenSet, error)
	SaveEbayTokens(*TokenSet) error
}

// Authenticator performs the OAuth2 authorization-code and refresh-token
// exchanges and serves as a TokenSource for the API client.
type Authenticator struct {
	httpClient   *resty.Client
	clientID     string
	clientSecret string
	redirectURI  string
	store        TokenStore

	mu     sync.Mutex
	tokens TokenSet
}

// NewAuthenticator creates an authenticator. Pass sandbox=true to exchange
// against the sandbox token endpoint.
func NewAuthenticator(clientID, clientSecret, redirectURI string, store TokenStore, sandbox bool) *Authenticator {
	url := tokenURL
	if sandbox {
		url = sandboxTokenURL
	}
	a := &Authenticator{
		httpClient:   resty.New().SetBaseURL(url),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		store:        store,
	}
	if store != nil {
		if saved, err := store.GetEbayTokens(); err != nil {
			log.Warn().Err(err).Msg("failed to load saved ebay tokens")
		} else if saved != nil {
			a.tokens = *saved
		}
	}
	return a
}

func (a *Authenticator) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.clientID+":"+a.clientSecret))
}

// ExchangeCode trades an authorization code from the seller's consent flow
// for a token set.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) error {
	return a.exchange(ctx, map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": a.redirectURI,
	})
}

// Refresh trades the stored refresh token for a fresh access token.
func (a *Authenticator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	refreshToken := a.tokens.RefreshToken
	a.mu.Unlock()
	if refreshToken == "" {
		return fmt.Errorf("no refresh token available; re-authorization required")
	}
	return a.exchange(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
}

func (a *Authenticator) exchange(ctx context.Context, form map[string]string) error {
	result := &tokenResponse{}
	_, err := handleError(a.httpClient.NewRequest().
		SetContext(ctx).
		SetHeader("Authorization", a.basicAuth()).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(form).
		SetResult(result).
		Post(""))
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	a.mu.Lock()
	now := time.Now()
	a.tokens.AccessToken = result.AccessToken
	a.tokens.ExpiresAt = now.Add(time.Duration(result.ExpiresIn) * time.Second)
	if result.RefreshToken != "" {
		a.tokens.RefreshToken = result.RefreshToken
		a.tokens.RefreshTokenExpiresAt = now.Add(time.Duration(result.RefreshTokenExpiresIn) * time.Second)
	}
	tokens := a.tokens
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.SaveEbayTokens(&tokens); err != nil {
			log.Warn().Err(err).Msg("failed to persist ebay tokens")
		}
	}

	log.Info().Time("expiresAt", tokens.ExpiresAt).Msg("ebay tokens refreshed")
	return nil
}

// AccessToken implements TokenSource, refreshing transparently when the
// cached token is near expiry.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	valid := a.tokens.Valid()
	token := a.tokens.AccessToken
	a.mu.Unlock()

	if valid {
		return token, nil
	}
	if err := a.Refresh(ctx); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokens.AccessToken, nil
}
