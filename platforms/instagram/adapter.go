// Package instagram implements the OAuth 2.0 adapter for Instagram. The
// code exchange yields a short-lived token that is immediately swapped for
// a long-lived one; the long-lived token refreshes itself through the
// ig_refresh_token grant and is stored as both access and refresh secret.
// Publishing uses the two-step media container flow.
package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGraphBaseURL = "https://graph.instagram.com"

var defaultScopes = []string{"user_profile", "user_media"}

var _ platforms.Adapter = (*Adapter)(nil)

type Adapter struct {
	base         platforms.OAuth2Base
	keys         config.ProviderKeys
	graphBaseURL string
}

type Option func(*Adapter)

func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(a *Adapter) { a.base.Config.Endpoint = endpoint }
}

func WithGraphBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.graphBaseURL = baseURL }
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
				Endpoint:     endpoints.Instagram,
				Scopes:       defaultScopes,
			},
		},
		keys:         keys,
		graphBaseURL: defaultGraphBaseURL,
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

func (a *Adapter) Platform() credentials.Platform {
	return credentials.PlatformInstagram
}

func (a *Adapter) Kind() platforms.AuthKind {
	return platforms.KindOAuth2
}

func (a *Adapter) BeginAuth(_ context.Context, callbackURL, state string) (*platforms.AuthRequest, error) {
	return &platforms.AuthRequest{URL: a.base.AuthCodeURL(callbackURL, state)}, nil
}

type longLivedResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Adapter) Exchange(ctx context.Context, req platforms.ExchangeRequest) (*platforms.TokenSet, *platforms.Profile, error) {
	shortLived, err := a.base.ExchangeCode(ctx, req.Code, req.RedirectURI)
	if err != nil {
		return nil, nil, err
	}

	query := url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {a.keys.ClientSecret},
		"access_token":  {shortLived.AccessToken},
	}

	var resp longLivedResponse
	endpoint := a.graphBaseURL + "/access_token?" + query.Encode()
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, nil, err
	}

	tokenSet := &platforms.TokenSet{
		AccessToken: resp.AccessToken,
		// The long-lived token doubles as the refresh secret for the
		// ig_refresh_token grant.
		RefreshToken: resp.AccessToken,
	}
	if resp.ExpiresIn > 0 {
		tokenSet.ExpiresIn = time.Duration(resp.ExpiresIn) * time.Second
	}

	profile, err := a.FetchProfile(ctx, tokenSet)
	if err != nil {
		return nil, nil, err
	}
	return tokenSet, profile, nil
}

func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (*platforms.TokenSet, error) {
	query := url.Values{
		"grant_type":   {"ig_refresh_token"},
		"access_token": {refreshToken},
	}

	var resp longLivedResponse
	endpoint := a.graphBaseURL + "/refresh_access_token?" + query.Encode()
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		if errors.Is(err, errors.ErrContentRejected) {
			// A 4xx on the refresh grant means the long-lived token was
			// revoked or lapsed past its refresh window.
			return nil, fmt.Errorf("%w: refresh grant rejected", errors.ErrInvalidGrant)
		}
		return nil, err
	}

	tokenSet := &platforms.TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.AccessToken,
	}
	if resp.ExpiresIn > 0 {
		tokenSet.ExpiresIn = time.Duration(resp.ExpiresIn) * time.Second
	}
	return tokenSet, nil
}

type profileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error) {
	var resp profileResponse
	endpoint := a.graphBaseURL + "/me?fields=id,username&access_token=" + url.QueryEscape(token.AccessToken)
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &platforms.Profile{
		ProviderUserID: resp.ID,
		Handle:         resp.Username,
		DisplayName:    resp.Username,
	}, nil
}

type containerResponse struct {
	ID string `json:"id"`
}

// Publish creates a media container and then publishes it. Instagram
// requires media; LinkURL carries the image location.
func (a *Adapter) Publish(ctx context.Context, token *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error) {
	if post.Kind != platforms.PostKindSingle {
		return nil, fmt.Errorf("%w: instagram cannot publish %q posts", errors.ErrUnsupported, post.Kind)
	}
	if post.LinkURL == "" {
		return nil, fmt.Errorf("%w: instagram posts require media", errors.ErrContentRejected)
	}

	profile, err := a.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	createQuery := url.Values{
		"image_url":    {post.LinkURL},
		"caption":      {post.Text},
		"access_token": {token.AccessToken},
	}
	var container containerResponse
	createEndpoint := a.graphBaseURL + "/" + url.PathEscape(profile.ProviderUserID) + "/media?" + createQuery.Encode()
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodPost, createEndpoint, nil, nil, &container); err != nil {
		return nil, err
	}

	publishQuery := url.Values{
		"creation_id":  {container.ID},
		"access_token": {token.AccessToken},
	}
	var published containerResponse
	publishEndpoint := a.graphBaseURL + "/" + url.PathEscape(profile.ProviderUserID) + "/media_publish?" + publishQuery.Encode()
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodPost, publishEndpoint, nil, nil, &published); err != nil {
		return nil, err
	}
	return &platforms.PublishResult{ContentIDs: []string{published.ID}}, nil
}
