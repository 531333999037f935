package platforms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/socialbridge/socialbridge/internal/errors"
	"golang.org/x/oauth2"
)

// OAuth2Base carries the shared behavior of the OAuth 2.0 adapter family:
// building the authorization URL, exchanging the authorization code, and
// refreshing expired access tokens, using the standard oauth2 library.
type OAuth2Base struct {
	Config oauth2.Config
	Client *http.Client // overrides DefaultHTTPClient when set (tests)
}

func (b *OAuth2Base) httpContext(ctx context.Context) context.Context {
	client := b.Client
	if client == nil {
		client = DefaultHTTPClient
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// AuthCodeURL is a pure URL template; no provider call is made.
func (b *OAuth2Base) AuthCodeURL(callbackURL, state string, opts ...oauth2.AuthCodeOption) string {
	cfg := b.Config
	cfg.RedirectURL = callbackURL
	return cfg.AuthCodeURL(state, opts...)
}

// ExchangeCode swaps an authorization code for a token set.
func (b *OAuth2Base) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenSet, error) {
	cfg := b.Config
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(b.httpContext(ctx), code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	return tokenSetFromOAuth2(token), nil
}

// RefreshGrant mints a new access token from a refresh token. A revoked
// refresh token maps to ErrInvalidGrant; transient provider failure maps to
// ErrProviderUnavailable.
func (b *OAuth2Base) RefreshGrant(ctx context.Context, refreshToken string) (*TokenSet, error) {
	source := b.Config.TokenSource(b.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}

	tokenSet := tokenSetFromOAuth2(token)
	if tokenSet.RefreshToken == "" {
		// Providers that do not rotate refresh tokens omit them from the
		// refresh response; the old one stays valid.
		tokenSet.RefreshToken = refreshToken
	}
	return tokenSet, nil
}

func tokenSetFromOAuth2(token *oauth2.Token) *TokenSet {
	tokenSet := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		tokenSet.ExpiresIn = time.Until(token.Expiry)
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokenSet.IDToken = idToken
	}
	return tokenSet
}

func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			switch {
			case retrieveErr.Response.StatusCode == http.StatusTooManyRequests:
				return &errors.RateLimitError{}
			case retrieveErr.Response.StatusCode >= 500:
				return fmt.Errorf("%w: provider returned %d", errors.ErrProviderUnavailable, retrieveErr.Response.StatusCode)
			}
		}
		return fmt.Errorf("%w: %s", errors.ErrExchangeFailed, retrieveErr.ErrorCode)
	}
	return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
}

func classifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			switch {
			case retrieveErr.Response.StatusCode == http.StatusTooManyRequests:
				return &errors.RateLimitError{}
			case retrieveErr.Response.StatusCode >= 500:
				return fmt.Errorf("%w: provider returned %d", errors.ErrProviderUnavailable, retrieveErr.Response.StatusCode)
			}
		}
		// Only a rejected grant means the stored refresh secret is dead.
		// Other 4xx codes (invalid_client, invalid_request) point at our own
		// request or registration, so the credential record must not be
		// touched.
		if retrieveErr.ErrorCode == "invalid_grant" {
			return fmt.Errorf("%w: %s", errors.ErrInvalidGrant, retrieveErr.ErrorCode)
		}
		return fmt.Errorf("%w: %s", errors.ErrExchangeFailed, retrieveErr.ErrorCode)
	}
	return fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
}
