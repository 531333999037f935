// Package youtube implements the OAuth 2.0 adapter for YouTube channels.
// Authorization runs against the Google endpoint with YouTube scopes;
// publishing posts a channel bulletin. Video upload is handled by the media
// pipeline, not this adapter.
package youtube

import (
	"context"
	"fmt"
	"net/http"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultAPIBaseURL = "https://www.googleapis.com/youtube/v3"

var defaultScopes = []string{
	"https://www.googleapis.com/auth/youtube",
	"https://www.googleapis.com/auth/youtube.readonly",
}

var _ platforms.Adapter = (*Adapter)(nil)

type Adapter struct {
	base       platforms.OAuth2Base
	apiBaseURL string
}

type Option func(*Adapter)

func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(a *Adapter) { a.base.Config.Endpoint = endpoint }
}

func WithAPIBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.apiBaseURL = baseURL }
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
		apiBaseURL: defaultAPIBaseURL,
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

func (a *Adapter) Platform() credentials.Platform {
	return credentials.PlatformYouTube
}

func (a *Adapter) Kind() platforms.AuthKind {
	return platforms.KindOAuth2
}

func (a *Adapter) BeginAuth(_ context.Context, callbackURL, state string) (*platforms.AuthRequest, error) {
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

	profile, err := a.FetchProfile(ctx, tokenSet)
	if err != nil {
		return nil, nil, err
	}
	return tokenSet, profile, nil
}

func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (*platforms.TokenSet, error) {
	return a.base.RefreshGrant(ctx, refreshToken)
}

type channelsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title      string `json:"title"`
			CustomURL  string `json:"customUrl"`
			Thumbnails struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error) {
	var resp channelsResponse
	endpoint := a.apiBaseURL + "/channels?part=snippet&mine=true"
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, platforms.BearerHeaders(token.AccessToken), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: account has no channel", errors.ErrExchangeFailed)
	}

	channel := resp.Items[0]
	return &platforms.Profile{
		ProviderUserID: channel.ID,
		Handle:         channel.Snippet.CustomURL,
		DisplayName:    channel.Snippet.Title,
		AvatarURL:      channel.Snippet.Thumbnails.Default.URL,
	}, nil
}

type bulletinRequest struct {
	Snippet bulletinSnippet `json:"snippet"`
}

type bulletinSnippet struct {
	Description string `json:"description"`
}

type bulletinResponse struct {
	ID string `json:"id"`
}

func (a *Adapter) Publish(ctx context.Context, token *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error) {
	if post.Kind != platforms.PostKindSingle {
		return nil, fmt.Errorf("%w: youtube cannot publish %q posts", errors.ErrUnsupported, post.Kind)
	}

	text := post.Text
	if post.LinkURL != "" {
		text = text + " " + post.LinkURL
	}

	var resp bulletinResponse
	endpoint := a.apiBaseURL + "/activities?part=snippet"
	payload := bulletinRequest{Snippet: bulletinSnippet{Description: text}}
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodPost, endpoint, platforms.BearerHeaders(token.AccessToken), payload, &resp); err != nil {
		return nil, err
	}
	return &platforms.PublishResult{ContentIDs: []string{resp.ID}}, nil
}
