// Package platforms defines the capability contract every provider adapter
// implements. Two adapter families exist behind the one interface: the
// OAuth 1.0a family (request-token handshake, non-expiring credentials) and
// the OAuth 2.0 family (authorization-code handshake, expiring access token
// plus refresh token). Call sites never branch on the family; the
// differences live inside the adapter implementations.
package platforms

import (
	"context"
	"time"

	"github.com/socialbridge/socialbridge/credentials"
)

type AuthKind string

const (
	KindOAuth1 AuthKind = "oauth1"
	KindOAuth2 AuthKind = "oauth2"
)

// AuthRequest is the result of starting an authorization flow. For the
// OAuth 1.0a family the request token pair must be persisted by the caller
// before redirecting; for OAuth 2.0 only URL is set.
type AuthRequest struct {
	URL           string
	RequestToken  string
	RequestSecret string
}

// ExchangeRequest carries the callback parameters of either family.
type ExchangeRequest struct {
	// OAuth 2.0
	Code        string
	RedirectURI string

	// OAuth 1.0a
	RequestToken  string
	RequestSecret string
	Verifier      string
}

// TokenSet is a live provider credential.
type TokenSet struct {
	AccessToken  string
	AccessSecret string        // OAuth 1.0a token secret
	RefreshToken string        // OAuth 2.0 only
	ExpiresIn    time.Duration // 0 means non-expiring
	IDToken      string        // raw OIDC ID token when the provider returned one
}

// Profile is the normalized account snapshot fetched from a provider.
type Profile struct {
	ProviderUserID string
	Handle         string
	DisplayName    string
	AvatarURL      string
}

type PostKind string

const (
	PostKindSingle PostKind = "single"
	PostKindThread PostKind = "thread"
	PostKindPoll   PostKind = "poll"
	PostKindPage   PostKind = "page"
)

// Post is one publish payload. Thread posts are sequenced by the publish
// engine, which hands adapters one part at a time with InReplyTo set.
type Post struct {
	Kind         PostKind
	Text         string
	Parts        []string // thread parts, in publish order
	PollOptions  []string
	PollDuration time.Duration
	PageID       string // page posts
	LinkURL      string
	InReplyTo    string // provider content ID the part replies to
}

// PublishResult reports the provider-assigned IDs of published content.
type PublishResult struct {
	ContentIDs []string
}

// Adapter is the per-provider capability set.
type Adapter interface {
	Platform() credentials.Platform
	Kind() AuthKind

	// BeginAuth builds the provider authorization URL. The OAuth 1.0a
	// variant performs the request-token handshake and is side-effecting;
	// the OAuth 2.0 variant is a pure URL template.
	BeginAuth(ctx context.Context, callbackURL, state string) (*AuthRequest, error)

	// Exchange swaps an authorization grant for credentials and fetches
	// the profile snapshot.
	Exchange(ctx context.Context, req ExchangeRequest) (*TokenSet, *Profile, error)

	// Refresh mints a new access token from a refresh token. Fails with
	// errors.ErrInvalidGrant when the refresh token was revoked (terminal)
	// versus errors.ErrProviderUnavailable on transient failure.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)

	// FetchProfile returns the current account snapshot.
	FetchProfile(ctx context.Context, token *TokenSet) (*Profile, error)

	// Publish posts content on the user's behalf and returns the
	// provider-assigned content IDs.
	Publish(ctx context.Context, token *TokenSet, post *Post) (*PublishResult, error)
}

// Registry holds the configured adapter per platform.
type Registry map[credentials.Platform]Adapter

func (r Registry) Get(platform credentials.Platform) (Adapter, bool) {
	adapter, ok := r[platform]
	return adapter, ok
}
