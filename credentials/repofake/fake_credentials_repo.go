package repofake

import (
	"sync"
	"time"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
)

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

const defaultPendingTTL = 15 * time.Minute

type credentialKey struct {
	userID   string
	platform credentials.Platform
}

type FakeCredentialsRepo struct {
	lock        sync.RWMutex
	records     map[credentialKey]*credentials.Credential
	pending     map[string]*credentials.PendingHandshake
	pendingTTL  time.Duration
	NowTimeFunc func() time.Time
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{
		records:     make(map[credentialKey]*credentials.Credential),
		pending:     make(map[string]*credentials.PendingHandshake),
		pendingTTL:  defaultPendingTTL,
		NowTimeFunc: time.Now,
	}
}

func (r *FakeCredentialsRepo) Upsert(credential *credentials.Credential) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	copied := *credential
	r.records[credentialKey{credential.UserID, credential.Platform}] = &copied
	return nil
}

func (r *FakeCredentialsRepo) Get(userID string, platform credentials.Platform) (*credentials.Credential, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	record, ok := r.records[credentialKey{userID, platform}]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *FakeCredentialsRepo) Delete(userID string, platform credentials.Platform) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.records, credentialKey{userID, platform})
	return nil
}

func (r *FakeCredentialsRepo) MarkExpired(userID string, platform credentials.Platform) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.records[credentialKey{userID, platform}]
	if !ok {
		return errors.ErrNotFound
	}
	record.Expired = true
	return nil
}

func (r *FakeCredentialsRepo) SavePending(pending *credentials.PendingHandshake) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	copied := *pending
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = r.NowTimeFunc()
	}
	r.pending[pending.RequestToken] = &copied
	return nil
}

func (r *FakeCredentialsRepo) TakePending(requestToken string) (*credentials.PendingHandshake, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	pending, ok := r.pending[requestToken]
	if !ok {
		return nil, errors.ErrNotFound
	}
	delete(r.pending, requestToken)

	if r.NowTimeFunc().Sub(pending.CreatedAt) > r.pendingTTL {
		return nil, errors.ErrNotFound
	}
	return pending, nil
}
