// Package linkedin implements the OAuth 2.0 adapter for LinkedIn. LinkedIn
// connects double as a primary login mechanism. Refresh tokens are issued
// for approved applications and expire independently of the access token.
package linkedin

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

const defaultAPIBaseURL = "https://api.linkedin.com"

var defaultScopes = []string{"openid", "profile", "email", "w_member_social"}

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
				Endpoint:     endpoints.LinkedIn,
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
	return credentials.PlatformLinkedIn
}

func (a *Adapter) Kind() platforms.AuthKind {
	return platforms.KindOAuth2
}

func (a *Adapter) BeginAuth(_ context.Context, callbackURL, state string) (*platforms.AuthRequest, error) {
	return &platforms.AuthRequest{URL: a.base.AuthCodeURL(callbackURL, state)}, nil
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

type userInfoResponse struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error) {
	var resp userInfoResponse
	endpoint := a.apiBaseURL + "/v2/userinfo"
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodGet, endpoint, platforms.BearerHeaders(token.AccessToken), nil, &resp); err != nil {
		return nil, err
	}
	return &platforms.Profile{
		ProviderUserID: resp.Sub,
		Handle:         resp.Email,
		DisplayName:    resp.Name,
		AvatarURL:      resp.Picture,
	}, nil
}

type ugcPostRequest struct {
	Author          string              `json:"author"`
	LifecycleState  string              `json:"lifecycleState"`
	SpecificContent map[string]ugcShare `json:"specificContent"`
	Visibility      map[string]string   `json:"visibility"`
}

type ugcShare struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

type ugcPostResponse struct {
	ID string `json:"id"`
}

func (a *Adapter) Publish(ctx context.Context, token *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error) {
	if post.Kind != platforms.PostKindSingle {
		return nil, fmt.Errorf("%w: linkedin cannot publish %q posts", errors.ErrUnsupported, post.Kind)
	}

	profile, err := a.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	share := ugcShare{
		ShareCommentary:    ugcText{Text: post.Text},
		ShareMediaCategory: "NONE",
	}
	if post.LinkURL != "" {
		share.ShareMediaCategory = "ARTICLE"
		share.Media = []ugcMedia{{Status: "READY", OriginalURL: post.LinkURL}}
	}

	payload := ugcPostRequest{
		Author:         "urn:li:person:" + profile.ProviderUserID,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]ugcShare{
			"com.linkedin.ugc.ShareContent": share,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var resp ugcPostResponse
	headers := platforms.BearerHeaders(token.AccessToken)
	headers["X-Restli-Protocol-Version"] = "2.0.0"
	if err := platforms.DoJSON(ctx, a.base.Client, http.MethodPost, a.apiBaseURL+"/v2/ugcPosts", headers, payload, &resp); err != nil {
		return nil, err
	}
	return &platforms.PublishResult{ContentIDs: []string{resp.ID}}, nil
}
