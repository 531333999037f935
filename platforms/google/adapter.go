// Package google implements the OAuth 2.0 adapter for Google accounts.
// Google connects double as a primary login mechanism, so the adapter
// verifies the ID token returned by the code exchange before trusting the
// profile claims.
package google

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	defaultIssuerURL   = "https://accounts.google.com"
	defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var defaultScopes = []string{oidc.ScopeOpenID, "profile", "email"}

var _ platforms.Adapter = (*Adapter)(nil)

type Adapter struct {
	base        platforms.OAuth2Base
	issuerURL   string
	userInfoURL string

	providerOnce sync.Once
	provider     *oidc.Provider
	providerErr  error
}

type Option func(*Adapter)

// WithEndpoint overrides the OAuth 2.0 endpoints (tests).
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(a *Adapter) { a.base.Config.Endpoint = endpoint }
}

// WithIssuer overrides the OIDC issuer used for ID token verification (tests).
func WithIssuer(issuerURL string) Option {
	return func(a *Adapter) { a.issuerURL = issuerURL }
}

func WithUserInfoURL(userInfoURL string) Option {
	return func(a *Adapter) { a.userInfoURL = userInfoURL }
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.base.Client = client }
}

func New(keys config.ProviderKeys, opts ...Option) *Adapter {
	adapter := &Adapter{
		base: platforms.OAuth2Base{
			Config: oauth2.Config{
				ClientID:     keys.ClientID,
				ClientSecret: keys.ClientSecret,
				Endpoint:     endpoints.Google,
				Scopes:       defaultScopes,
			},
		},
		issuerURL:   defaultIssuerURL,
		userInfoURL: defaultUserInfoURL,
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

func (a *Adapter) Platform() credentials.Platform {
	return credentials.PlatformGoogle
}

func (a *Adapter) Kind() platforms.AuthKind {
	return platforms.KindOAuth2
}

func (a *Adapter) BeginAuth(_ context.Context, callbackURL, state string) (*platforms.AuthRequest, error) {
	// prompt=consent forces Google to reissue a refresh token on reconnect.
	url := a.base.AuthCodeURL(callbackURL, state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return &platforms.AuthRequest{URL: url}, nil
}

func (a *Adapter) Exchange(ctx context.Context, req platforms.ExchangeRequest) (*platforms.TokenSet, *platforms.Profile, error) {
	tokenSet, err := a.base.ExchangeCode(ctx, req.Code, req.RedirectURI)
	if err != nil {
		return nil, nil, err
	}

	if tokenSet.IDToken != "" {
		profile, err := a.profileFromIDToken(ctx, tokenSet.IDToken)
		if err != nil {
			return nil, nil, err
		}
		return tokenSet, profile, nil
	}

	profile, err := a.FetchProfile(ctx, tokenSet)
	if err != nil {
		return nil, nil, err
	}
	return tokenSet, profile, nil
}

func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (*platforms.TokenSet, error) {
	return a.base.RefreshGrant(ctx, refreshToken)
}

func (a *Adapter) oidcProvider(ctx context.Context) (*oidc.Provider, error) {
	a.providerOnce.Do(func() {
		if a.base.Client != nil {
			ctx = oidc.ClientContext(ctx, a.base.Client)
		}
		a.provider, a.providerErr = oidc.NewProvider(ctx, a.issuerURL)
	})
	return a.provider, a.providerErr
}

func (a *Adapter) profileFromIDToken(ctx context.Context, rawIDToken string) (*platforms.Profile, error) {
	provider, err := a.oidcProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: oidc discovery: %v", errors.ErrProviderUnavailable, err)
	}

	idToken, err := provider.Verifier(&oidc.Config{ClientID: a.base.Config.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: id token verification: %v", errors.ErrExchangeFailed, err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: id token claims: %v", errors.ErrExchangeFailed, err)
	}

	return &platforms.Profile{
		ProviderUserID: claims.Sub,
		Handle:         claims.Email,
		DisplayName:    claims.Name,
		AvatarURL:      claims.Picture,
	}, nil
}

type userInfoResponse struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error) {
	var resp userInfoResponse
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, a.userInfoURL, platforms.BearerHeaders(token.AccessToken), nil, &resp); err != nil {
		return nil, err
	}
	return &platforms.Profile{
		ProviderUserID: resp.Sub,
		Handle:         resp.Email,
		DisplayName:    resp.Name,
		AvatarURL:      resp.Picture,
	}, nil
}

// Publish is not available for plain Google accounts; the connection exists
// for sign-in. YouTube publishing has its own adapter.
func (a *Adapter) Publish(context.Context, *platforms.TokenSet, *platforms.Post) (*platforms.PublishResult, error) {
	return nil, fmt.Errorf("%w: google connections do not publish content", errors.ErrUnsupported)
}
