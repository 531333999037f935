package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/socialbridge/socialbridge/connect"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/credentials/repofake"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/platforms"
	"github.com/socialbridge/socialbridge/platforms/platformsfake"
	"github.com/socialbridge/socialbridge/publish"
	"github.com/socialbridge/socialbridge/refresh"
	"github.com/socialbridge/socialbridge/server"
	"github.com/socialbridge/socialbridge/statetoken"
	"github.com/stretchr/testify/require"
)

const (
	testUserID     = "user-1"
	testSessionKey = "test-session-signing-key"
)

type testConfig struct {
	config.EnvVars
	config.Cors
	config.OAuth
	config.Providers
}

type testFixture struct {
	repo     *repofake.FakeCredentialsRepo
	twitter  *platformsfake.FakeAdapter
	linkedin *platformsfake.FakeAdapter
	server   *server.Server
	session  string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("SESSION_SIGNING_KEY", testSessionKey)
	t.Setenv("STATE_SIGNING_KEY", "test-state-signing-key")
	t.Setenv("ENV", "PROD") // keep route logging out of test output

	cfg := testConfig{}
	repo := repofake.NewFakeCredentialsRepo()
	twitter := &platformsfake.FakeAdapter{
		PlatformName: credentials.PlatformTwitter,
		AuthKind:     platforms.KindOAuth1,
	}
	linkedin := &platformsfake.FakeAdapter{
		PlatformName: credentials.PlatformLinkedIn,
		AuthKind:     platforms.KindOAuth2,
	}
	registry := platforms.Registry{
		credentials.PlatformTwitter:  twitter,
		credentials.PlatformLinkedIn: linkedin,
	}

	codec := statetoken.New([]byte(cfg.GetStateSigningKey()), cfg.GetStateIssuer(), cfg.GetStateAudience(), cfg.GetStateTokenTTL())
	refresher := refresh.NewManager(repo, registry, cfg.GetRefreshSkew())
	sessions := connect.NewSessionIssuer([]byte(testSessionKey), cfg.GetStateIssuer(), time.Hour)
	connects := connect.NewService(codec, repo, registry, refresher, sessions, cfg.GetDefaultReturnAddress(), zerolog.Nop())
	publisher := publish.NewService(registry, refresher, nil, zerolog.Nop())

	session, err := sessions.Issue(testUserID, credentials.PlatformGoogle, nil)
	require.NoError(t, err)

	return &testFixture{
		repo:     repo,
		twitter:  twitter,
		linkedin: linkedin,
		server:   server.New(cfg, connects, publisher, zerolog.Nop()),
		session:  session,
	}
}

func (f *testFixture) do(t *testing.T, method, target string, body []byte, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, target, bytes.NewReader(body))
	if authenticated {
		request.Header.Set("Authorization", "Bearer "+f.session)
	}
	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, request)
	return recorder
}

func TestHealthEndpoint(t *testing.T) {
	f := setupTestFixture(t)

	response := f.do(t, http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, response.Code)
}

func TestAuthorizeUnknownPlatform(t *testing.T) {
	f := setupTestFixture(t)

	response := f.do(t, http.MethodGet, "/connect/myspace/authorize", nil, false)
	require.Equal(t, http.StatusNotFound, response.Code)
}

func TestAuthorizeTwitterPersistsPendingHandshake(t *testing.T) {
	f := setupTestFixture(t)

	f.twitter.BeginAuthFunc = func(_ context.Context, callbackURL, _ string) (*platforms.AuthRequest, error) {
		return &platforms.AuthRequest{
			URL:           "https://twitter.example.com/authorize?oauth_token=T1",
			RequestToken:  "T1",
			RequestSecret: "S1",
		}, nil
	}

	response := f.do(t, http.MethodGet, "/connect/twitter/authorize", nil, true)
	require.Equal(t, http.StatusOK, response.Code)

	var body connect.BeginResult
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &body))
	require.Contains(t, body.AuthorizationURL, "oauth_token=T1")

	pending, err := f.repo.TakePending("T1")
	require.NoError(t, err)
	require.Equal(t, testUserID, pending.UserID)
}

func TestCallbackAlwaysRedirects(t *testing.T) {
	f := setupTestFixture(t)

	// Invalid state still ends in a redirect, never a dead page.
	response := f.do(t, http.MethodGet, "/connect/linkedin/callback?code=abc&state=garbage", nil, false)
	require.Equal(t, http.StatusSeeOther, response.Code)

	location := response.Header().Get("Location")
	require.Contains(t, location, "linkedin=error")
	require.Contains(t, location, "message="+connect.ReasonInvalidState)
}

func TestStatusRequiresSession(t *testing.T) {
	f := setupTestFixture(t)

	response := f.do(t, http.MethodGet, "/connect/linkedin/status", nil, false)
	require.Equal(t, http.StatusUnauthorized, response.Code)
}

func TestStatusNotConnected(t *testing.T) {
	f := setupTestFixture(t)

	response := f.do(t, http.MethodGet, "/connect/linkedin/status", nil, true)
	require.Equal(t, http.StatusOK, response.Code)

	var status connect.StatusResult
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &status))
	require.False(t, status.Connected)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)

	response := f.do(t, http.MethodDelete, "/connect/twitter", nil, true)
	require.Equal(t, http.StatusOK, response.Code)

	response = f.do(t, http.MethodDelete, "/connect/twitter", nil, true)
	require.Equal(t, http.StatusOK, response.Code)
}

func TestPublishSinglePost(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:      testUserID,
		Platform:    credentials.PlatformTwitter,
		AccessToken: "access",
	}))
	f.twitter.PublishFunc = func(_ context.Context, _ *platforms.TokenSet, post *platforms.Post) (*platforms.PublishResult, error) {
		require.Equal(t, "hello", post.Text)
		return &platforms.PublishResult{ContentIDs: []string{"post-1"}}, nil
	}

	payload, _ := json.Marshal(map[string]any{"kind": "single", "text": "hello"})
	response := f.do(t, http.MethodPost, "/publish/twitter", payload, true)
	require.Equal(t, http.StatusOK, response.Code)

	var result publish.Result
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &result))
	require.Equal(t, []string{"post-1"}, result.ContentIDs)
}

func TestPublishNotConnected(t *testing.T) {
	f := setupTestFixture(t)

	payload, _ := json.Marshal(map[string]any{"kind": "single", "text": "hello"})
	response := f.do(t, http.MethodPost, "/publish/twitter", payload, true)
	require.Equal(t, http.StatusNotFound, response.Code)
	require.Contains(t, response.Body.String(), "not_connected")
}

func TestPublishRejectsMalformedPayload(t *testing.T) {
	f := setupTestFixture(t)

	response := f.do(t, http.MethodPost, "/publish/twitter", []byte("{"), true)
	require.Equal(t, http.StatusBadRequest, response.Code)
}
