// Package refresh decides, immediately before any authenticated provider
// call, whether a stored credential is usable as-is, must be refreshed, or
// is beyond recovery.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
	"github.com/socialbridge/socialbridge/platforms"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// DefaultSkew is subtracted from a credential's expiry when judging
// usability, so a token cannot expire mid-flight during a multi-step
// provider call.
const DefaultSkew = 2 * time.Minute

type Manager struct {
	repo     credentials.Repo
	adapters platforms.Registry
	skew     time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewManager(repo credentials.Repo, adapters platforms.Registry, skew time.Duration) *Manager {
	if skew <= 0 {
		skew = DefaultSkew
	}
	return &Manager{
		repo:     repo,
		adapters: adapters,
		skew:     skew,
		locks:    make(map[string]*sync.Mutex),
	}
}

// pairLock serializes refreshes of one (user, platform) pair so two
// concurrent calls cannot double-write fresh secrets.
func (m *Manager) pairLock(userID string, platform credentials.Platform) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	key := userID + "/" + string(platform)
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// Ensure returns a live token set for the pair, refreshing and persisting
// first when the stored credential is within the expiry skew. Failure
// modes: ErrNotConnected (no record), ErrConnectionExpired (re-consent
// required; the record is retained), ErrProviderUnavailable / ErrRateLimited
// (transient, caller may retry the whole operation).
func (m *Manager) Ensure(ctx context.Context, userID string, platform credentials.Platform) (*platforms.TokenSet, *credentials.Credential, error) {
	lock := m.pairLock(userID, platform)
	lock.Lock()
	defer lock.Unlock()

	credential, err := m.repo.Get(userID, platform)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil, errors.ErrNotConnected
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load %s credential", platform)
	}

	if credential.Expired {
		return nil, credential, errors.ErrConnectionExpired
	}

	adapter, ok := m.adapters.Get(platform)
	if !ok {
		return nil, nil, fmt.Errorf("%w: no adapter for platform %q", errors.ErrUnsupported, platform)
	}

	// The OAuth 1.0a family never expires; an access token is usable until
	// the user revokes it.
	if adapter.Kind() == platforms.KindOAuth1 && credential.AccessToken != "" {
		return tokenSetFromCredential(credential), credential, nil
	}

	now := NowTimeFunc()
	if credential.ExpiresAt == nil || now.Before(credential.ExpiresAt.Add(-m.skew)) {
		return tokenSetFromCredential(credential), credential, nil
	}

	if credential.RefreshToken == "" {
		return nil, credential, errors.ErrConnectionExpired
	}

	refreshed, err := adapter.Refresh(ctx, credential.RefreshToken)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidGrant) {
			// Terminal. Mark the record but retain its secrets so the
			// state is recoverable if the provider-side issue resolves.
			if markErr := m.repo.MarkExpired(userID, platform); markErr != nil {
				return nil, credential, errors.Wrapf(markErr, "failed to mark %s credential expired", platform)
			}
			credential.Expired = true
			return nil, credential, errors.ErrConnectionExpired
		}
		return nil, credential, err
	}

	credential.AccessToken = refreshed.AccessToken
	credential.RefreshToken = refreshed.RefreshToken
	if refreshed.ExpiresIn > 0 {
		expiresAt := now.Add(refreshed.ExpiresIn)
		credential.ExpiresAt = &expiresAt
	}
	credential.Expired = false

	if err := m.repo.Upsert(credential); err != nil {
		return nil, credential, errors.Wrapf(err, "failed to persist refreshed %s credential", platform)
	}
	return tokenSetFromCredential(credential), credential, nil
}

func tokenSetFromCredential(credential *credentials.Credential) *platforms.TokenSet {
	tokenSet := &platforms.TokenSet{
		AccessToken:  credential.AccessToken,
		AccessSecret: credential.AccessSecret,
		RefreshToken: credential.RefreshToken,
	}
	if credential.ExpiresAt != nil {
		tokenSet.ExpiresIn = time.Until(*credential.ExpiresAt)
	}
	return tokenSet
}
