package statetoken_test

import (
	"testing"
	"time"

	"github.com/socialbridge/socialbridge/statetoken"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "socialbridge"
	testAudience = "socialbridge/connect"
	testUserID   = "user-1"
	testReturnTo = "https://app.example.com/settings/connections"
)

var testSigningKey = []byte("test-signing-key")

func newTestCodec(ttl time.Duration) *statetoken.Codec {
	return statetoken.New(testSigningKey, testIssuer, testAudience, ttl)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(30 * time.Minute)

	token, err := codec.Issue(testUserID, testReturnTo)
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, testUserID, claims.SubjectUserID)
	require.Equal(t, testReturnTo, claims.ReturnAddress)
	require.WithinDuration(t, time.Now(), claims.IssuedAt, 5*time.Second)
}

func TestIssueWithoutSubject(t *testing.T) {
	codec := newTestCodec(30 * time.Minute)

	token, err := codec.Issue("", testReturnTo)
	require.NoError(t, err)

	claims, err := codec.Verify(token)
	require.NoError(t, err)
	require.Empty(t, claims.SubjectUserID)
	require.Equal(t, testReturnTo, claims.ReturnAddress)
}

func TestVerifyExpiredToken(t *testing.T) {
	codec := newTestCodec(30 * time.Minute)

	token, err := codec.Issue(testUserID, testReturnTo)
	require.NoError(t, err)

	statetoken.NowTimeFunc = func() time.Time { return time.Now().Add(31 * time.Minute) }
	defer func() { statetoken.NowTimeFunc = time.Now }()

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, statetoken.ErrTokenExpired)
}

func TestVerifyWithinTTLWindow(t *testing.T) {
	codec := newTestCodec(30 * time.Minute)

	token, err := codec.Issue(testUserID, testReturnTo)
	require.NoError(t, err)

	statetoken.NowTimeFunc = func() time.Time { return time.Now().Add(29 * time.Minute) }
	defer func() { statetoken.NowTimeFunc = time.Now }()

	_, err = codec.Verify(token)
	require.NoError(t, err)
}

func TestTTLIsClampedToMaximum(t *testing.T) {
	codec := newTestCodec(24 * time.Hour)

	token, err := codec.Issue(testUserID, testReturnTo)
	require.NoError(t, err)

	statetoken.NowTimeFunc = func() time.Time { return time.Now().Add(statetoken.MaxTTL + time.Minute) }
	defer func() { statetoken.NowTimeFunc = time.Now }()

	_, err = codec.Verify(token)
	require.ErrorIs(t, err, statetoken.ErrTokenExpired)
}

func TestVerifyAudienceMismatch(t *testing.T) {
	issuing := newTestCodec(30 * time.Minute)
	verifying := statetoken.New(testSigningKey, testIssuer, "other-service/connect", 30*time.Minute)

	token, err := issuing.Issue(testUserID, testReturnTo)
	require.NoError(t, err)

	_, err = verifying.Verify(token)
	require.ErrorIs(t, err, statetoken.ErrAudienceMismatch)
}

func TestVerifyTamperedToken(t *testing.T) {
	codec := newTestCodec(30 * time.Minute)

	token, err := codec.Issue(testUserID, testReturnTo)
	require.NoError(t, err)

	last := token[len(token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := token[:len(token)-1] + string(flipped)
	_, err = codec.Verify(tampered)
	require.ErrorIs(t, err, statetoken.ErrInvalidSignature)
}

func TestVerifyWrongKey(t *testing.T) {
	codec := newTestCodec(30 * time.Minute)
	other := statetoken.New([]byte("another-key"), testIssuer, testAudience, 30*time.Minute)

	token, err := codec.Issue(testUserID, testReturnTo)
	require.NoError(t, err)

	_, err = other.Verify(token)
	require.ErrorIs(t, err, statetoken.ErrInvalidSignature)
}

func TestVerifyRejectsEmptyKeySignature(t *testing.T) {
	codec := newTestCodec(30 * time.Minute)
	unkeyed := statetoken.New(nil, testIssuer, testAudience, 30*time.Minute)

	forged, err := unkeyed.Issue("victim-user", testReturnTo)
	require.NoError(t, err)

	_, err = codec.Verify(forged)
	require.ErrorIs(t, err, statetoken.ErrInvalidSignature)
}
