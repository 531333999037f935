// Package twitter implements the OAuth 1.0a adapter family for Twitter/X.
// BeginAuth performs the request-token handshake with the provider, so the
// caller must persist the returned token pair before redirecting; the
// callback is correlated by the provider echoing the request token back.
// Credentials never expire until explicitly revoked.
package twitter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dghubble/oauth1"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
)

const (
	defaultRequestTokenURL = "https://api.twitter.com/oauth/request_token"
	defaultAuthorizeURL    = "https://api.twitter.com/oauth/authorize"
	defaultAccessTokenURL  = "https://api.twitter.com/oauth/access_token"
	defaultAPIBaseURL      = "https://api.twitter.com"
)

var _ platforms.Adapter = (*Adapter)(nil)

type Adapter struct {
	keys       config.ProviderKeys
	endpoint   oauth1.Endpoint
	apiBaseURL string
	client     *http.Client
}

type Option func(*Adapter)

// WithEndpoint overrides the OAuth 1.0a handshake endpoints (tests).
func WithEndpoint(endpoint oauth1.Endpoint) Option {
	return func(a *Adapter) { a.endpoint = endpoint }
}

// WithAPIBaseURL overrides the content API base URL (tests).
func WithAPIBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.apiBaseURL = baseURL }
}

// WithHTTPClient overrides the client used for signed content API calls
// (tests). The request-token and access-token handshakes always go through
// the oauth1 library's own client; point WithEndpoint at a test server to
// intercept those.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Adapter) { a.client = client }
}

func New(keys config.ProviderKeys, opts ...Option) *Adapter {
	adapter := &Adapter{
		keys: keys,
		endpoint: oauth1.Endpoint{
			RequestTokenURL: defaultRequestTokenURL,
			AuthorizeURL:    defaultAuthorizeURL,
			AccessTokenURL:  defaultAccessTokenURL,
		},
		apiBaseURL: defaultAPIBaseURL,
	}
	for _, opt := range opts {
		opt(adapter)
	}
	return adapter
}

func (a *Adapter) Platform() credentials.Platform {
	return credentials.PlatformTwitter
}

func (a *Adapter) Kind() platforms.AuthKind {
	return platforms.KindOAuth1
}

func (a *Adapter) oauthConfig(callbackURL string) *oauth1.Config {
	return &oauth1.Config{
		ConsumerKey:    a.keys.ClientID,
		ConsumerSecret: a.keys.ClientSecret,
		CallbackURL:    callbackURL,
		Endpoint:       a.endpoint,
	}
}

// BeginAuth runs the request-token handshake. The returned token pair must
// be stored keyed by request token before the end user is redirected.
func (a *Adapter) BeginAuth(_ context.Context, callbackURL, _ string) (*platforms.AuthRequest, error) {
	cfg := a.oauthConfig(callbackURL)

	requestToken, requestSecret, err := cfg.RequestToken()
	if err != nil {
		return nil, fmt.Errorf("%w: request token handshake: %v", errors.ErrProviderUnavailable, err)
	}

	authorizeURL, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build authorize URL")
	}

	return &platforms.AuthRequest{
		URL:           authorizeURL.String(),
		RequestToken:  requestToken,
		RequestSecret: requestSecret,
	}, nil
}

func (a *Adapter) Exchange(ctx context.Context, req platforms.ExchangeRequest) (*platforms.TokenSet, *platforms.Profile, error) {
	cfg := a.oauthConfig("")

	accessToken, accessSecret, err := cfg.AccessToken(req.RequestToken, req.RequestSecret, req.Verifier)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: access token exchange: %v", errors.ErrExchangeFailed, err)
	}

	tokenSet := &platforms.TokenSet{
		AccessToken:  accessToken,
		AccessSecret: accessSecret,
	}

	profile, err := a.FetchProfile(ctx, tokenSet)
	if err != nil {
		return nil, nil, err
	}
	return tokenSet, profile, nil
}

// Refresh is never called for the OAuth 1.0a family; credentials do not
// expire.
func (a *Adapter) Refresh(context.Context, string) (*platforms.TokenSet, error) {
	return nil, errors.ErrUnsupported
}

func (a *Adapter) signedClient(ctx context.Context, token *platforms.TokenSet) *http.Client {
	if a.client != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, a.client)
	}
	return a.oauthConfig("").Client(ctx, oauth1.NewToken(token.AccessToken, token.AccessSecret))
}

type userResponse struct {
	Data struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

func (a *Adapter) FetchProfile(ctx context.Context, token *platforms.TokenSet) (*platforms.Profile, error) {
	var resp userResponse
	endpoint := a.apiBaseURL + "/2/users/me?user.fields=profile_image_url"
	if err := platforms.DoJSON(ctx, a.signedClient(ctx, token), http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, err
	}

	return &platforms.Profile{
		ProviderUserID: resp.Data.ID,
		Handle:         resp.Data.Username,
		DisplayName:    resp.Data.Name,
		AvatarURL:      resp.Data.ProfileImageURL,
	}, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
	Poll  *tweetPoll  `json:"poll,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetPoll struct {
	Options         []string `json:"options"`
	DurationMinutes int      `json:"duration_minutes"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *Adapter) Publish(ctx context.Context, token *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error) {
	switch post.Kind {
	case platforms.PostKindSingle, platforms.PostKindPoll:
	default:
		return nil, fmt.Errorf("%w: twitter cannot publish %q posts", errors.ErrUnsupported, post.Kind)
	}

	payload := tweetRequest{Text: post.Text}
	if post.InReplyTo != "" {
		payload.Reply = &tweetReply{InReplyToTweetID: post.InReplyTo}
	}
	if post.Kind == platforms.PostKindPoll {
		minutes := int(post.PollDuration.Minutes())
		if minutes <= 0 {
			minutes = 1440 // provider default of one day
		}
		payload.Poll = &tweetPoll{Options: post.PollOptions, DurationMinutes: minutes}
	}

	var resp tweetResponse
	if err := platforms.DoJSON(ctx, a.signedClient(ctx, token), http.MethodPost, a.apiBaseURL+"/2/tweets", nil, payload, &resp); err != nil {
		return nil, err
	}
	return &platforms.PublishResult{ContentIDs: []string{resp.Data.ID}}, nil
}
