// Package sqliterepo persists platform credentials in SQLite with WAL mode
// enabled. It is thread-safe and supports concurrent access.
package sqliterepo

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/internal/errors"
	_ "modernc.org/sqlite"
)

const defaultPendingTTL = 15 * time.Minute

var _ credentials.Repo = (*Repo)(nil)

type Repo struct {
	db         *sql.DB
	pendingTTL time.Duration
}

func New(dbPath string) (*Repo, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %q: %w", dbPath, err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repo{db: db, pendingTTL: defaultPendingTTL}, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS platform_credentials (
			user_id          TEXT NOT NULL,
			platform         TEXT NOT NULL,
			provider_user_id TEXT NOT NULL DEFAULT '',
			handle           TEXT NOT NULL DEFAULT '',
			display_name     TEXT NOT NULL DEFAULT '',
			avatar_url       TEXT NOT NULL DEFAULT '',
			access_token     TEXT NOT NULL DEFAULT '',
			access_secret    TEXT NOT NULL DEFAULT '',
			refresh_token    TEXT NOT NULL DEFAULT '',
			expires_at       INTEGER,
			connected_at     INTEGER NOT NULL,
			expired          INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, platform)
		);
		CREATE TABLE IF NOT EXISTS pending_handshakes (
			request_token  TEXT PRIMARY KEY,
			request_secret TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			platform       TEXT NOT NULL,
			return_address TEXT NOT NULL DEFAULT '',
			created_at     INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *Repo) Upsert(credential *credentials.Credential) error {
	var expiresAt sql.NullInt64
	if credential.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: credential.ExpiresAt.Unix(), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO platform_credentials
			(user_id, platform, provider_user_id, handle, display_name, avatar_url,
			 access_token, access_secret, refresh_token, expires_at, connected_at, expired)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			provider_user_id = excluded.provider_user_id,
			handle           = excluded.handle,
			display_name     = excluded.display_name,
			avatar_url       = excluded.avatar_url,
			access_token     = excluded.access_token,
			access_secret    = excluded.access_secret,
			refresh_token    = excluded.refresh_token,
			expires_at       = excluded.expires_at,
			connected_at     = excluded.connected_at,
			expired          = excluded.expired
	`, credential.UserID, string(credential.Platform), credential.ProviderUserID,
		credential.Handle, credential.DisplayName, credential.AvatarURL,
		credential.AccessToken, credential.AccessSecret, credential.RefreshToken,
		expiresAt, credential.ConnectedAt.Unix(), credential.Expired)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

func (r *Repo) Get(userID string, platform credentials.Platform) (*credentials.Credential, error) {
	row := r.db.QueryRow(`
		SELECT provider_user_id, handle, display_name, avatar_url,
		       access_token, access_secret, refresh_token, expires_at, connected_at, expired
		FROM platform_credentials
		WHERE user_id = ? AND platform = ?
	`, userID, string(platform))

	credential := credentials.Credential{UserID: userID, Platform: platform}
	var expiresAt sql.NullInt64
	var connectedAt int64
	err := row.Scan(&credential.ProviderUserID, &credential.Handle, &credential.DisplayName,
		&credential.AvatarURL, &credential.AccessToken, &credential.AccessSecret,
		&credential.RefreshToken, &expiresAt, &connectedAt, &credential.Expired)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		credential.ExpiresAt = &t
	}
	credential.ConnectedAt = time.Unix(connectedAt, 0)
	return &credential, nil
}

func (r *Repo) Delete(userID string, platform credentials.Platform) error {
	if _, err := r.db.Exec(`DELETE FROM platform_credentials WHERE user_id = ? AND platform = ?`,
		userID, string(platform)); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

func (r *Repo) MarkExpired(userID string, platform credentials.Platform) error {
	result, err := r.db.Exec(`UPDATE platform_credentials SET expired = 1 WHERE user_id = ? AND platform = ?`,
		userID, string(platform))
	if err != nil {
		return fmt.Errorf("failed to mark credential expired: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark credential expired: %w", err)
	}
	if affected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (r *Repo) SavePending(pending *credentials.PendingHandshake) error {
	createdAt := pending.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// Sweep stale entries opportunistically; the provider-side request
	// token is short-lived anyway.
	cutoff := time.Now().Add(-r.pendingTTL).Unix()
	if _, err := r.db.Exec(`DELETE FROM pending_handshakes WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to sweep stale handshakes: %w", err)
	}

	_, err := r.db.Exec(`
		INSERT INTO pending_handshakes (request_token, request_secret, user_id, platform, return_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (request_token) DO UPDATE SET
			request_secret = excluded.request_secret,
			user_id        = excluded.user_id,
			platform       = excluded.platform,
			return_address = excluded.return_address,
			created_at     = excluded.created_at
	`, pending.RequestToken, pending.RequestSecret, pending.UserID,
		string(pending.Platform), pending.ReturnAddress, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save pending handshake: %w", err)
	}
	return nil
}

func (r *Repo) TakePending(requestToken string) (*credentials.PendingHandshake, error) {
	row := r.db.QueryRow(`
		SELECT request_secret, user_id, platform, return_address, created_at
		FROM pending_handshakes
		WHERE request_token = ?
	`, requestToken)

	pending := credentials.PendingHandshake{RequestToken: requestToken}
	var platform string
	var createdAt int64
	err := row.Scan(&pending.RequestSecret, &pending.UserID, &platform, &pending.ReturnAddress, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending handshake: %w", err)
	}

	if _, err := r.db.Exec(`DELETE FROM pending_handshakes WHERE request_token = ?`, requestToken); err != nil {
		return nil, fmt.Errorf("failed to consume pending handshake: %w", err)
	}

	pending.Platform = credentials.Platform(platform)
	pending.CreatedAt = time.Unix(createdAt, 0)
	if time.Since(pending.CreatedAt) > r.pendingTTL {
		return nil, errors.ErrNotFound
	}
	return &pending, nil
}
