// Package credentials holds the per (user, platform) credential records
// written by the connect flow and read before every authenticated provider
// call.
package credentials

import "time"

// Platform identifies a supported third-party provider.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformGoogle    Platform = "google"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformFacebook  Platform = "facebook"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
)

// Platforms lists every supported platform.
var Platforms = []Platform{
	PlatformTwitter,
	PlatformGoogle,
	PlatformLinkedIn,
	PlatformFacebook,
	PlatformYouTube,
	PlatformInstagram,
}

func IsValidPlatform(p Platform) bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Credential is one connected social account. A record is either absent
// (never connected or disconnected) or active (access token present).
// OAuth 1.0a credentials carry an AccessSecret and no expiry; OAuth 2.0
// credentials carry a RefreshToken and an ExpiresAt.
type Credential struct {
	UserID   string
	Platform Platform

	// Profile snapshot, refreshed opportunistically on reconnect.
	ProviderUserID string
	Handle         string
	DisplayName    string
	AvatarURL      string

	AccessToken  string
	AccessSecret string     // OAuth 1.0a token secret; empty for OAuth 2.0
	RefreshToken string     // OAuth 2.0 only
	ExpiresAt    *time.Time // nil for OAuth 1.0a (non-expiring until revoked)
	ConnectedAt  time.Time

	// Expired marks a record whose refresh secret was revoked by the
	// provider. The raw secrets are retained so the state is recoverable
	// if the provider-side issue resolves; a future connect overwrites it.
	Expired bool
}

// PendingHandshake is the transient OAuth 1.0a request-token state stored
// between the authorize redirect and the provider callback. Its presence
// means "handshake in progress", never "connected". The callback looks the
// entry up by exact request-token match.
type PendingHandshake struct {
	RequestToken  string
	RequestSecret string
	UserID        string
	Platform      Platform
	ReturnAddress string
	CreatedAt     time.Time
}
