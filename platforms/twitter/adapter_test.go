package twitter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dghubble/oauth1"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
	"github.com/socialbridge/socialbridge/platforms/twitter"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	adapter  *twitter.Adapter
	provider *httptest.Server
	mux      *http.ServeMux
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mux := http.NewServeMux()
	provider := httptest.NewServer(mux)
	t.Cleanup(provider.Close)

	adapter := twitter.New(
		config.ProviderKeys{ClientID: "consumer-key", ClientSecret: "consumer-secret"},
		twitter.WithEndpoint(oauth1.Endpoint{
			RequestTokenURL: provider.URL + "/oauth/request_token",
			AuthorizeURL:    provider.URL + "/oauth/authorize",
			AccessTokenURL:  provider.URL + "/oauth/access_token",
		}),
		twitter.WithAPIBaseURL(provider.URL),
		twitter.WithHTTPClient(provider.Client()),
	)

	return &testFixture{adapter: adapter, provider: provider, mux: mux}
}

func TestBeginAuthRunsRequestTokenHandshake(t *testing.T) {
	f := setupTestFixture(t)

	f.mux.HandleFunc("POST /oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Authorization"), `oauth_consumer_key="consumer-key"`)
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("oauth_token=T1&oauth_token_secret=S1&oauth_callback_confirmed=true"))
	})

	authRequest, err := f.adapter.BeginAuth(context.Background(), "https://api.example.com/callback", "")
	require.NoError(t, err)
	require.Equal(t, "T1", authRequest.RequestToken)
	require.Equal(t, "S1", authRequest.RequestSecret)
	require.Contains(t, authRequest.URL, "oauth_token=T1")
}

func TestBeginAuthHandshakeFailureIsTransient(t *testing.T) {
	f := setupTestFixture(t)

	f.mux.HandleFunc("POST /oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := f.adapter.BeginAuth(context.Background(), "https://api.example.com/callback", "")
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestExchangeSwapsVerifierForAccessTokenAndProfile(t *testing.T) {
	f := setupTestFixture(t)

	f.mux.HandleFunc("POST /oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("oauth_token=AT1&oauth_token_secret=AS1"))
	})
	f.mux.HandleFunc("GET /2/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"tw-1","name":"Jane Doe","username":"jane","profile_image_url":"https://img.example.com/jane.png"}}`))
	})

	tokenSet, profile, err := f.adapter.Exchange(context.Background(), platforms.ExchangeRequest{
		RequestToken:  "T1",
		RequestSecret: "S1",
		Verifier:      "verifier-1",
	})
	require.NoError(t, err)
	require.Equal(t, "AT1", tokenSet.AccessToken)
	require.Equal(t, "AS1", tokenSet.AccessSecret)
	require.Zero(t, tokenSet.ExpiresIn)
	require.Equal(t, "tw-1", profile.ProviderUserID)
	require.Equal(t, "jane", profile.Handle)
}

func TestExchangeRejectionIsExchangeFailed(t *testing.T) {
	f := setupTestFixture(t)

	f.mux.HandleFunc("POST /oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := f.adapter.Exchange(context.Background(), platforms.ExchangeRequest{
		RequestToken:  "T2",
		RequestSecret: "S2",
		Verifier:      "verifier-1",
	})
	require.ErrorIs(t, err, errors.ErrExchangeFailed)
}

func TestRefreshIsUnsupported(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.adapter.Refresh(context.Background(), "anything")
	require.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestPublishSingleTweet(t *testing.T) {
	f := setupTestFixture(t)

	f.mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Authorization"), `oauth_token="AT1"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"1234567890"}}`))
	})

	result, err := f.adapter.Publish(context.Background(),
		&platforms.TokenSet{AccessToken: "AT1", AccessSecret: "AS1"},
		&platforms.Post{Kind: platforms.PostKindSingle, Text: "hello"})
	require.NoError(t, err)
	require.Equal(t, []string{"1234567890"}, result.ContentIDs)
}

func TestPublishRateLimitCarriesRetryAfter(t *testing.T) {
	f := setupTestFixture(t)

	f.mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := f.adapter.Publish(context.Background(),
		&platforms.TokenSet{AccessToken: "AT1", AccessSecret: "AS1"},
		&platforms.Post{Kind: platforms.PostKindSingle, Text: "hello"})
	require.ErrorIs(t, err, errors.ErrRateLimited)

	var rateLimitErr *errors.RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	require.NotZero(t, rateLimitErr.RetryAfter)
}

func TestPublishRejectsPagePosts(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.adapter.Publish(context.Background(),
		&platforms.TokenSet{AccessToken: "AT1", AccessSecret: "AS1"},
		&platforms.Post{Kind: platforms.PostKindPage, PageID: "p-1"})
	require.ErrorIs(t, err, errors.ErrUnsupported)
}
