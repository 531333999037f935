package config

import "time"

const (
	stateSigningKeyVar   = "STATE_SIGNING_KEY"
	sessionSigningKeyVar = "SESSION_SIGNING_KEY"
)

type OAuthConfig interface {
	GetStateTokenTTL() time.Duration
	GetStateIssuer() string
	GetStateAudience() string
	GetStateSigningKey() string
	GetRefreshSkew() time.Duration
	GetPendingHandshakeTTL() time.Duration
	GetSessionTokenExpiry() time.Duration
	GetSessionSigningKey() string
	GetDefaultReturnAddress() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetStateTokenTTL bounds how long a connect attempt may sit between the
// authorize redirect and the provider callback.
func (OAuth) GetStateTokenTTL() time.Duration {
	return 30 * time.Minute
}

func (OAuth) GetStateIssuer() string {
	return GetEnv("STATE_ISSUER", "socialbridge")
}

func (OAuth) GetStateAudience() string {
	return GetEnv("STATE_AUDIENCE", "socialbridge/connect")
}

// GetRefreshSkew is the lead window subtracted from a credential's expiry
// so a token judged usable cannot expire mid-flight during a multi-step
// provider call.
func (OAuth) GetRefreshSkew() time.Duration {
	return 2 * time.Minute
}

func (OAuth) GetPendingHandshakeTTL() time.Duration {
	return 15 * time.Minute
}

func (OAuth) GetSessionTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetSessionSigningKey() string {
	return GetEnv(sessionSigningKeyVar, "")
}

func (OAuth) GetStateSigningKey() string {
	return GetEnv(stateSigningKeyVar, "")
}

// GetDefaultReturnAddress is where the end user lands when a callback cannot
// be correlated to the attempt that started it.
func (OAuth) GetDefaultReturnAddress() string {
	return GetEnv("DEFAULT_RETURN_ADDRESS", "/")
}
