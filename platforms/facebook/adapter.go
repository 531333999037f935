// Package facebook implements the OAuth 2.0 adapter for Facebook. The code
// exchange is followed by a second hop that swaps the short-lived token for
// a roughly sixty-day long-lived one. Facebook issues no refresh tokens;
// once the long-lived token lapses the user must reconnect.
package facebook

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

const defaultGraphBaseURL = "https://graph.facebook.com/v19.0"

var defaultScopes = []string{"public_profile", "pages_manage_posts", "pages_read_engagement"}

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
				Endpoint:     endpoints.Facebook,
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
	return credentials.PlatformFacebook
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

	tokenSet, err := a.exchangeLongLived(ctx, shortLived.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	profile, err := a.FetchProfile(ctx, tokenSet)
	if err != nil {
		return nil, nil, err
	}
	return tokenSet, profile, nil
}

func (a *Adapter) exchangeLongLived(ctx context.Context, shortLivedToken string) (*platforms.TokenSet, error) {
	query := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {a.keys.ClientID},
		"client_secret":     {a.keys.ClientSecret},
		"fb_exchange_token": {shortLivedToken},
	}

	var resp longLivedResponse
	endpoint := a.graphBaseURL + "/oauth/access_token?" + query.Encode()
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, err
	}

	tokenSet := &platforms.TokenSet{AccessToken: resp.AccessToken}
	if resp.ExpiresIn > 0 {
		tokenSet.ExpiresIn = time.Duration(resp.ExpiresIn) * time.Second
	}
	return tokenSet, nil
}

// Refresh is never reachable: no refresh token is stored for Facebook, so
// the refresh decision procedure reports the connection expired instead.
func (a *Adapter) Refresh(context.Context, string) (*platforms.TokenSet, error) {
	return nil, errors.ErrInvalidGrant
}

type profileResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error) {
	var resp profileResponse
	endpoint := a.graphBaseURL + "/me?fields=id,name,picture&access_token=" + url.QueryEscape(token.AccessToken)
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &platforms.Profile{
		ProviderUserID: resp.ID,
		Handle:         resp.Name,
		DisplayName:    resp.Name,
		AvatarURL:      resp.Picture.Data.URL,
	}, nil
}

type feedResponse struct {
	ID string `json:"id"`
}

type pageTokenResponse struct {
	AccessToken string `json:"access_token"`
}

func (a *Adapter) Publish(ctx context.Context, token *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error) {
	switch post.Kind {
	case platforms.PostKindSingle:
		return a.publishFeed(ctx, "me", token.AccessToken, post)
	case platforms.PostKindPage:
		if post.PageID == "" {
			return nil, fmt.Errorf("%w: page posts require a page id", errors.ErrContentRejected)
		}
		pageToken, err := a.pageAccessToken(ctx, token.AccessToken, post.PageID)
		if err != nil {
			return nil, err
		}
		return a.publishFeed(ctx, post.PageID, pageToken, post)
	default:
		return nil, fmt.Errorf("%w: facebook cannot publish %q posts", errors.ErrUnsupported, post.Kind)
	}
}

func (a *Adapter) pageAccessToken(ctx context.Context, userToken, pageID string) (string, error) {
	var resp pageTokenResponse
	endpoint := a.graphBaseURL + "/" + url.PathEscape(pageID) + "?fields=access_token&access_token=" + url.QueryEscape(userToken)
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (a *Adapter) publishFeed(ctx context.Context, target, accessToken string, post *platforms.Post) (*platforms.PublishResult, error) {
	query := url.Values{
		"message":      {post.Text},
		"access_token": {accessToken},
	}
	if post.LinkURL != "" {
		query.Set("link", post.LinkURL)
	}

	var resp feedResponse
	endpoint := a.graphBaseURL + "/" + url.PathEscape(target) + "/feed?" + query.Encode()
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodPost, endpoint, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &platforms.PublishResult{ContentIDs: []string{resp.ID}}, nil
}
