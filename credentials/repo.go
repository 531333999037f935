package credentials

type Repo interface {
	// Upsert overwrites any prior record for the credential's
	// (user, platform) pair. Last writer wins.
	Upsert(credential *Credential) error
	// Get returns errors.ErrNotFound when the pair was never connected.
	Get(userID string, platform Platform) (*Credential, error)
	// Delete is idempotent; deleting an absent record succeeds.
	Delete(userID string, platform Platform) error
	// MarkExpired flags the record as needing re-consent without erasing
	// its secrets.
	MarkExpired(userID string, platform Platform) error

	// SavePending stores OAuth 1.0a handshake state keyed by request token.
	SavePending(pending *PendingHandshake) error
	// TakePending consumes the handshake entry for the given request token.
	// Stale entries are treated as absent.
	TakePending(requestToken string) (*PendingHandshake, error)
}
