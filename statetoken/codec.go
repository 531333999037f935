// Package statetoken signs and verifies the compact payload that carries a
// connect attempt's context through the third-party redirect. The token is
// the only channel carrying which user requested the connect and where to
// send them back, so it is treated as a capability rather than a plain
// anti-CSRF nonce.
package statetoken

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// MaxTTL caps the validity window of an issued state token. Callers may
// configure a shorter window but never a longer one.
const MaxTTL = 30 * time.Minute

var (
	ErrTokenExpired     = errors.New("state token expired")
	ErrInvalidSignature = errors.New("state token signature invalid")
	ErrAudienceMismatch = errors.New("state token audience mismatch")
)

// Claims is the verified payload of a state token.
type Claims struct {
	SubjectUserID string    // empty for guest-initiated connects
	ReturnAddress string    // where the end user is redirected after the flow
	IssuedAt      time.Time
}

// Codec issues and verifies state tokens bound to one issuer/audience pair.
type Codec struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
}

func New(signingKey []byte, issuer, audience string, ttl time.Duration) *Codec {
	if ttl <= 0 || ttl > MaxTTL {
		ttl = MaxTTL
	}
	return &Codec{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// Issue creates a signed state token. subjectUserID may be empty when the
// connect was started by a user that has not authenticated yet.
func (c *Codec) Issue(subjectUserID, returnAddress string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":       c.issuer,
		"aud":       c.audience,
		"return_to": returnAddress,
		"iat":       now.Unix(),
		"exp":       now.Add(c.ttl).Unix(),
	}
	if subjectUserID != "" {
		claims["sub"] = subjectUserID
	}

	signedToken, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign state token: %w", err)
	}
	return signedToken, nil
}

// Verify checks the signature, expiry, and issuer/audience binding of a
// state token and returns its payload. Any mutation of the token fails the
// signature check.
func (c *Codec) Verify(rawToken string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{},
		func(t *jwtlib.Token) (any, error) {
			if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return c.signingKey, nil
		},
		jwtlib.WithIssuer(c.issuer),
		jwtlib.WithAudience(c.audience),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, ErrInvalidSignature
	}

	sub, _ := claims["sub"].(string)
	returnTo, _ := claims["return_to"].(string)
	iat, _ := claims["iat"].(float64)

	return &Claims{
		SubjectUserID: sub,
		ReturnAddress: returnTo,
		IssuedAt:      time.Unix(int64(iat), 0),
	}, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwtlib.ErrTokenInvalidAudience), errors.Is(err, jwtlib.ErrTokenInvalidIssuer):
		return ErrAudienceMismatch
	default:
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
}
