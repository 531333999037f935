package connect

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/socialbridge/socialbridge/credentials"
	"github.com/socialbridge/socialbridge/platforms"
)

// loginPlatforms are the providers whose connect flow doubles as the primary
// login mechanism. A successful callback for these appends a freshly issued
// session credential, distinct from the provider credential, to the redirect.
var loginPlatforms = map[credentials.Platform]bool{
	credentials.PlatformGoogle:   true,
	credentials.PlatformLinkedIn: true,
}

// SessionIssuer creates short-lived platform session tokens after a
// login-capable connect completes.
type SessionIssuer struct {
	signingKey []byte
	issuer     string
	expiry     time.Duration
}

func NewSessionIssuer(signingKey []byte, issuer string, expiry time.Duration) *SessionIssuer {
	return &SessionIssuer{
		signingKey: signingKey,
		issuer:     issuer,
		expiry:     expiry,
	}
}

// Issue signs a session token for the given subject. The token carries
// identity claims only; provider secrets never enter it.
func (s *SessionIssuer) Issue(subjectUserID string, platform credentials.Platform, profile *platforms.Profile) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":      s.issuer,
		"sub":      subjectUserID,
		"platform": string(platform),
		"iat":      now.Unix(),
		"exp":      now.Add(s.expiry).Unix(),
		"jti":      uuid.New().String(),
	}
	if profile != nil {
		if profile.DisplayName != "" {
			claims["name"] = profile.DisplayName
		}
		if profile.AvatarURL != "" {
			claims["picture"] = profile.AvatarURL
		}
	}

	signedToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signedToken, nil
}
