package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/credentials/repofake"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/internal/utils"
	"github.com/socialbridge/socialbridge/platforms"
	"github.com/socialbridge/socialbridge/platforms/platformsfake"
	"github.com/socialbridge/socialbridge/refresh"
	"github.com/stretchr/testify/require"
)

const testUserID = "user-1"

type testFixture struct {
	repo     *repofake.FakeCredentialsRepo
	twitter  *platformsfake.FakeAdapter
	linkedin *platformsfake.FakeAdapter
	manager  *refresh.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

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

	return &testFixture{
		repo:     repo,
		twitter:  twitter,
		linkedin: linkedin,
		manager:  refresh.NewManager(repo, registry, 2*time.Minute),
	}
}

func TestEnsureNotConnected(t *testing.T) {
	f := setupTestFixture(t)

	_, _, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformLinkedIn)
	require.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestEnsureOAuth1NeverRefreshes(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:       testUserID,
		Platform:     credentials.PlatformTwitter,
		AccessToken:  "access",
		AccessSecret: "secret",
		ConnectedAt:  time.Now(),
	}))

	tokenSet, _, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformTwitter)
	require.NoError(t, err)
	require.Equal(t, "access", tokenSet.AccessToken)
	require.Equal(t, "secret", tokenSet.AccessSecret)
	require.Zero(t, f.twitter.RefreshCalls)
}

func TestEnsureInsideSkewTriggersRefresh(t *testing.T) {
	f := setupTestFixture(t)

	// 90 seconds out is inside the 2 minute skew.
	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:       testUserID,
		Platform:     credentials.PlatformLinkedIn,
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    utils.Ptr(time.Now().Add(90 * time.Second)),
		ConnectedAt:  time.Now(),
	}))

	f.linkedin.RefreshFunc = func(_ context.Context, refreshToken string) (*platforms.TokenSet, error) {
		require.Equal(t, "refresh-1", refreshToken)
		return &platforms.TokenSet{
			AccessToken:  "fresh",
			RefreshToken: "refresh-2",
			ExpiresIn:    time.Hour,
		}, nil
	}

	tokenSet, _, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformLinkedIn)
	require.NoError(t, err)
	require.Equal(t, "fresh", tokenSet.AccessToken)
	require.Equal(t, 1, f.linkedin.RefreshCalls)

	// The refreshed secrets were persisted before returning.
	stored, err := f.repo.Get(testUserID, credentials.PlatformLinkedIn)
	require.NoError(t, err)
	require.Equal(t, "fresh", stored.AccessToken)
	require.Equal(t, "refresh-2", stored.RefreshToken)
	require.True(t, stored.ExpiresAt.After(time.Now().Add(50*time.Minute)))
}

func TestEnsureOutsideSkewUsesStoredToken(t *testing.T) {
	f := setupTestFixture(t)

	// 3 minutes out clears the 2 minute skew.
	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:       testUserID,
		Platform:     credentials.PlatformLinkedIn,
		AccessToken:  "still-good",
		RefreshToken: "refresh-1",
		ExpiresAt:    utils.Ptr(time.Now().Add(3 * time.Minute)),
		ConnectedAt:  time.Now(),
	}))

	tokenSet, _, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformLinkedIn)
	require.NoError(t, err)
	require.Equal(t, "still-good", tokenSet.AccessToken)
	require.Zero(t, f.linkedin.RefreshCalls)
}

func TestEnsureInvalidGrantMarksExpiredAndRetainsSecrets(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:       testUserID,
		Platform:     credentials.PlatformLinkedIn,
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    utils.Ptr(time.Now().Add(-time.Minute)),
		ConnectedAt:  time.Now(),
	}))

	f.linkedin.RefreshFunc = func(context.Context, string) (*platforms.TokenSet, error) {
		return nil, errors.ErrInvalidGrant
	}

	_, _, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformLinkedIn)
	require.ErrorIs(t, err, errors.ErrConnectionExpired)

	stored, storedErr := f.repo.Get(testUserID, credentials.PlatformLinkedIn)
	require.NoError(t, storedErr)
	require.True(t, stored.Expired)
	require.Equal(t, "stale", stored.AccessToken)
	require.Equal(t, "revoked", stored.RefreshToken)
}

func TestEnsureTransientRefreshFailure(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:       testUserID,
		Platform:     credentials.PlatformLinkedIn,
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    utils.Ptr(time.Now().Add(-time.Minute)),
		ConnectedAt:  time.Now(),
	}))

	f.linkedin.RefreshFunc = func(context.Context, string) (*platforms.TokenSet, error) {
		return nil, errors.ErrProviderUnavailable
	}

	_, _, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformLinkedIn)
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)

	// Transient failure never marks the record expired.
	stored, storedErr := f.repo.Get(testUserID, credentials.PlatformLinkedIn)
	require.NoError(t, storedErr)
	require.False(t, stored.Expired)
}

func TestEnsureExpiredWithoutRefreshToken(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:      testUserID,
		Platform:    credentials.PlatformLinkedIn,
		AccessToken: "stale",
		ExpiresAt:   utils.Ptr(time.Now().Add(-time.Minute)),
		ConnectedAt: time.Now(),
	}))

	_, _, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformLinkedIn)
	require.ErrorIs(t, err, errors.ErrConnectionExpired)
	require.Zero(t, f.linkedin.RefreshCalls)
}

func TestEnsureAlreadyMarkedExpired(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.repo.Upsert(&credentials.Credential{
		UserID:       testUserID,
		Platform:     credentials.PlatformLinkedIn,
		AccessToken:  "stale",
		RefreshToken: "revoked",
		Expired:      true,
		ConnectedAt:  time.Now(),
	}))

	_, credential, err := f.manager.Ensure(context.Background(), testUserID, credentials.PlatformLinkedIn)
	require.ErrorIs(t, err, errors.ErrConnectionExpired)
	require.NotNil(t, credential)
	require.Zero(t, f.linkedin.RefreshCalls)
}
