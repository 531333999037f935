// Package connect drives the authorize, callback, store sequence of a
// connection attempt. Each attempt moves through
// START -> AWAITING_CALLBACK -> EXCHANGING -> CONNECTED | FAILED, and a
// FAILED attempt still ends in a redirect to a known return address with a
// machine-readable reason. The end user is never left on a dead page.
package connect

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
	"github.com/socialbridge/socialbridge/refresh"
	"github.com/socialbridge/socialbridge/statetoken"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Machine-readable failure reasons appended to the redirect on FAILED.
const (
	ReasonProviderDenied = "provider_denied"
	ReasonInvalidState   = "invalid_state"
	ReasonStateExpired   = "state_expired"
	ReasonExchangeFailed = "exchange_failed"
	ReasonInternalError  = "internal_error"
)

// BeginResult is the response of starting a connect attempt.
type BeginResult struct {
	AuthorizationURL string `json:"authorizationUrl"`
	State            string `json:"state,omitempty"`
}

// CallbackParams carries the provider's callback query parameters for either
// adapter family.
type CallbackParams struct {
	// OAuth 2.0
	Code          string
	State         string
	ProviderError string // non-empty when the provider reported an error, e.g. access_denied

	// OAuth 1.0a
	RequestToken string
	Verifier     string
	Denied       string // request token echoed back when the user denied consent

	// Callback URL the provider redirected to, needed for the code exchange.
	CallbackURL string
}

// Redirect is where the end user is sent after a callback, success or not.
type Redirect struct {
	URL string
}

// Account is the profile snapshot exposed by the status endpoint.
type Account struct {
	ProviderUserID string `json:"providerUserId"`
	Handle         string `json:"handle,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
}

// StatusResult reports whether a platform is connected, after a live
// refresh-if-needed check.
type StatusResult struct {
	Connected bool     `json:"connected"`
	Expired   bool     `json:"expired,omitempty"`
	Account   *Account `json:"account,omitempty"`
}

type Service struct {
	codec         *statetoken.Codec
	repo          credentials.Repo
	adapters      platforms.Registry
	refresher     *refresh.Manager
	sessions      *SessionIssuer
	defaultReturn string
	logger        zerolog.Logger
}

// NewService wires the connection orchestrator. defaultReturn is the return
// address used when a callback cannot be correlated to the attempt that
// started it.
func NewService(
	codec *statetoken.Codec,
	repo credentials.Repo,
	adapters platforms.Registry,
	refresher *refresh.Manager,
	sessions *SessionIssuer,
	defaultReturn string,
	logger zerolog.Logger,
) *Service {
	return &Service{
		codec:         codec,
		repo:          repo,
		adapters:      adapters,
		refresher:     refresher,
		sessions:      sessions,
		defaultReturn: defaultReturn,
		logger:        logger,
	}
}

// BeginConnect starts a connect attempt and returns the provider
// authorization URL. For the OAuth 1.0a family this performs the
// request-token handshake and persists the pending pair before returning, so
// the callback can correlate by request token. userID may be empty when the
// connect doubles as a login.
func (s *Service) BeginConnect(ctx context.Context, userID string, platform credentials.Platform, returnAddress, callbackURL string) (*BeginResult, error) {
	adapter, ok := s.adapters.Get(platform)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for platform %q", errors.ErrUnsupported, platform)
	}
	if returnAddress == "" {
		returnAddress = s.defaultReturn
	}

	if adapter.Kind() == platforms.KindOAuth1 {
		authRequest, err := adapter.BeginAuth(ctx, callbackURL, "")
		if err != nil {
			return nil, errors.Wrapf(err, "failed to start %s handshake", platform)
		}
		pending := &credentials.PendingHandshake{
			RequestToken:  authRequest.RequestToken,
			RequestSecret: authRequest.RequestSecret,
			UserID:        userID,
			Platform:      platform,
			ReturnAddress: returnAddress,
			CreatedAt:     NowTimeFunc(),
		}
		if err := s.repo.SavePending(pending); err != nil {
			return nil, errors.Wrapf(err, "failed to persist pending %s handshake", platform)
		}
		return &BeginResult{AuthorizationURL: authRequest.URL}, nil
	}

	state, err := s.codec.Issue(userID, returnAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to issue state for %s connect", platform)
	}
	authRequest, err := adapter.BeginAuth(ctx, callbackURL, state)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s authorization URL", platform)
	}
	return &BeginResult{AuthorizationURL: authRequest.URL, State: state}, nil
}

// CompleteCallback finishes a connect attempt. It always returns a redirect;
// the error return is reserved for requests that cannot be routed at all.
// A successful attempt performs exactly one credential upsert.
func (s *Service) CompleteCallback(ctx context.Context, platform credentials.Platform, params CallbackParams) (*Redirect, error) {
	adapter, ok := s.adapters.Get(platform)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for platform %q", errors.ErrUnsupported, platform)
	}

	if adapter.Kind() == platforms.KindOAuth1 {
		return s.completeOAuth1(ctx, adapter, platform, params), nil
	}
	return s.completeOAuth2(ctx, adapter, platform, params), nil
}

func (s *Service) completeOAuth2(ctx context.Context, adapter platforms.Adapter, platform credentials.Platform, params CallbackParams) *Redirect {
	// The state token is the only trusted carrier of the acting user and the
	// return address. When it does not verify, the attempt fails without
	// guessing a fallback identity.
	claims, verifyErr := s.codec.Verify(params.State)
	if verifyErr != nil {
		reason := ReasonInvalidState
		if errors.Is(verifyErr, statetoken.ErrTokenExpired) {
			reason = ReasonStateExpired
		}
		s.logger.Warn().Str("platform", string(platform)).Err(verifyErr).Msg("connect callback rejected")
		return s.failure(s.defaultReturn, platform, reason)
	}

	if params.ProviderError != "" {
		s.logger.Info().Str("platform", string(platform)).Str("error", params.ProviderError).Msg("provider consent denied")
		return s.failure(claims.ReturnAddress, platform, ReasonProviderDenied)
	}

	tokenSet, profile, err := adapter.Exchange(ctx, platforms.ExchangeRequest{
		Code:        params.Code,
		RedirectURI: params.CallbackURL,
	})
	if err != nil {
		s.logger.Error().Str("platform", string(platform)).Err(err).Msg("authorization code exchange failed")
		return s.failure(claims.ReturnAddress, platform, ReasonExchangeFailed)
	}

	subjectUserID := claims.SubjectUserID
	if subjectUserID == "" {
		// Login-initiated connect with no prior identity. The provider
		// identity becomes the subject.
		subjectUserID = string(platform) + ":" + profile.ProviderUserID
	}

	if err := s.storeCredential(subjectUserID, platform, tokenSet, profile); err != nil {
		s.logger.Error().Str("platform", string(platform)).Err(err).Msg("failed to persist credential")
		return s.failure(claims.ReturnAddress, platform, ReasonInternalError)
	}

	return s.success(claims.ReturnAddress, subjectUserID, platform, profile)
}

func (s *Service) completeOAuth1(ctx context.Context, adapter platforms.Adapter, platform credentials.Platform, params CallbackParams) *Redirect {
	if params.Denied != "" {
		returnAddress := s.defaultReturn
		if pending, err := s.repo.TakePending(params.Denied); err == nil {
			returnAddress = pending.ReturnAddress
		}
		s.logger.Info().Str("platform", string(platform)).Msg("provider consent denied")
		return s.failure(returnAddress, platform, ReasonProviderDenied)
	}

	// The pending entry is the correlation mechanism: exact request-token
	// match or the attempt fails. Consuming it clears the handshake state
	// whether or not the exchange succeeds.
	pending, err := s.repo.TakePending(params.RequestToken)
	if err != nil {
		s.logger.Warn().Str("platform", string(platform)).Msg("callback with unknown request token")
		return s.failure(s.defaultReturn, platform, ReasonExchangeFailed)
	}

	tokenSet, profile, err := adapter.Exchange(ctx, platforms.ExchangeRequest{
		RequestToken:  pending.RequestToken,
		RequestSecret: pending.RequestSecret,
		Verifier:      params.Verifier,
	})
	if err != nil {
		s.logger.Error().Str("platform", string(platform)).Err(err).Msg("request token exchange failed")
		return s.failure(pending.ReturnAddress, platform, ReasonExchangeFailed)
	}

	subjectUserID := pending.UserID
	if subjectUserID == "" {
		subjectUserID = string(platform) + ":" + profile.ProviderUserID
	}

	if err := s.storeCredential(subjectUserID, platform, tokenSet, profile); err != nil {
		s.logger.Error().Str("platform", string(platform)).Err(err).Msg("failed to persist credential")
		return s.failure(pending.ReturnAddress, platform, ReasonInternalError)
	}

	return s.success(pending.ReturnAddress, subjectUserID, platform, profile)
}

func (s *Service) storeCredential(userID string, platform credentials.Platform, tokenSet *platforms.TokenSet, profile *platforms.Profile) error {
	credential := &credentials.Credential{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  tokenSet.AccessToken,
		AccessSecret: tokenSet.AccessSecret,
		RefreshToken: tokenSet.RefreshToken,
		ConnectedAt:  NowTimeFunc(),
	}
	if profile != nil {
		credential.ProviderUserID = profile.ProviderUserID
		credential.Handle = profile.Handle
		credential.DisplayName = profile.DisplayName
		credential.AvatarURL = profile.AvatarURL
	}
	if tokenSet.ExpiresIn > 0 {
		expiresAt := NowTimeFunc().Add(tokenSet.ExpiresIn)
		credential.ExpiresAt = &expiresAt
	}
	return s.repo.Upsert(credential)
}

// Status reports whether the pair is connected. It runs the refresh decision
// procedure first, so the answer reflects a live credential rather than a
// stale read.
func (s *Service) Status(ctx context.Context, userID string, platform credentials.Platform) (*StatusResult, error) {
	_, credential, err := s.refresher.Ensure(ctx, userID, platform)
	switch {
	case err == nil:
		return &StatusResult{Connected: true, Account: accountFromCredential(credential)}, nil
	case errors.Is(err, errors.ErrNotConnected):
		return &StatusResult{Connected: false}, nil
	case errors.Is(err, errors.ErrConnectionExpired):
		return &StatusResult{Connected: false, Expired: true, Account: accountFromCredential(credential)}, nil
	default:
		return nil, err
	}
}

// Disconnect clears the credential record. Disconnecting a platform that was
// never connected succeeds.
func (s *Service) Disconnect(_ context.Context, userID string, platform credentials.Platform) error {
	return s.repo.Delete(userID, platform)
}

func accountFromCredential(credential *credentials.Credential) *Account {
	if credential == nil {
		return nil
	}
	return &Account{
		ProviderUserID: credential.ProviderUserID,
		Handle:         credential.Handle,
		DisplayName:    credential.DisplayName,
		AvatarURL:      credential.AvatarURL,
	}
}

func (s *Service) success(returnAddress, subjectUserID string, platform credentials.Platform, profile *platforms.Profile) *Redirect {
	values := url.Values{}
	values.Set(string(platform), "success")

	if loginPlatforms[platform] && s.sessions != nil {
		session, err := s.sessions.Issue(subjectUserID, platform, profile)
		if err != nil {
			s.logger.Error().Str("platform", string(platform)).Err(err).Msg("failed to issue session token")
		} else {
			values.Set("session", session)
		}
	}

	return &Redirect{URL: appendQuery(returnAddress, values)}
}

func (s *Service) failure(returnAddress string, platform credentials.Platform, reason string) *Redirect {
	values := url.Values{}
	values.Set(string(platform), "error")
	values.Set("message", reason)
	return &Redirect{URL: appendQuery(returnAddress, values)}
}

func appendQuery(address string, values url.Values) string {
	parsed, err := url.Parse(address)
	if err != nil {
		return address + "?" + values.Encode()
	}
	query := parsed.Query()
	for key, list := range values {
		for _, value := range list {
			query.Set(key, value)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
