package platforms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
	"github.com/stretchr/testify/require"
)

func TestDoJSONClassifiesRateLimit(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "45")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer provider.Close()

	err := platforms.DoJSON(context.Background(), provider.Client(), http.MethodGet, provider.URL, nil, nil, nil)
	require.ErrorIs(t, err, errors.ErrRateLimited)

	var rateLimitErr *errors.RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	require.Equal(t, 45*time.Second, rateLimitErr.RetryAfter)
}

func TestDoJSONClassifiesServerError(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer provider.Close()

	err := platforms.DoJSON(context.Background(), provider.Client(), http.MethodGet, provider.URL, nil, nil, nil)
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestDoJSONClassifiesClientErrorAsFatal(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid content"}`))
	}))
	defer provider.Close()

	err := platforms.DoJSON(context.Background(), provider.Client(), http.MethodGet, provider.URL, nil, nil, nil)
	require.ErrorIs(t, err, errors.ErrContentRejected)
	require.NotErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestDoJSONTreatsRateLimitBodyMarkerAsTransient(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"Application request rate limit reached"}}`))
	}))
	defer provider.Close()

	err := platforms.DoJSON(context.Background(), provider.Client(), http.MethodGet, provider.URL, nil, nil, nil)
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestDoJSONTransportFailureIsTransient(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	provider.Close() // connection refused from here on

	err := platforms.DoJSON(context.Background(), http.DefaultClient, http.MethodGet, provider.URL, nil, nil, nil)
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestDoJSONDecodesSuccessBody(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer provider.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := platforms.DoJSON(context.Background(), provider.Client(), http.MethodGet, provider.URL,
		platforms.BearerHeaders("token-1"), nil, &out)
	require.NoError(t, err)
	require.Equal(t, "abc", out.ID)
}
