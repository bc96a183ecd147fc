package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/internal/domain"
)

var testIdentity = Identity{UserID: "user-123", Email: "alice@example.com", Username: "alice"}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCodec(t *testing.T, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec("super-secret", WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodec_RequiresSecret(t *testing.T) {
	_, err := NewTokenCodec("")
	require.Error(t, err)
}

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	codec := newTestCodec(t, clock)

	pair, err := codec.IssuePair(testIdentity)
	require.NoError(t, err)

	access, err := codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", access.UserID())
	assert.Equal(t, "alice@example.com", access.Email)
	assert.Equal(t, "alice", access.Username)
	assert.Equal(t, KindAccess, access.Kind)
	assert.Equal(t, clock.t.Add(DefaultAccessTTL), access.ExpiresAt.Time.UTC())

	refresh, err := codec.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, refresh.Kind)
	assert.Equal(t, clock.t.Add(DefaultRefreshTTL), refresh.ExpiresAt.Time.UTC())
	assert.NotEqual(t, access.ID, refresh.ID)
}

func TestVerify_ValidityWindow(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := &fakeClock{t: issued}
	codec := newTestCodec(t, clock)
	ttl := time.Hour

	token, err := codec.Issue(testIdentity, KindAccess, ttl)
	require.NoError(t, err)

	clock.t = issued.Add(ttl - time.Second)
	_, err = codec.Verify(token)
	require.NoError(t, err)

	clock.t = issued.Add(ttl + time.Second)
	_, err = codec.Verify(token)
	assert.ErrorIs(t, err, domain.ErrExpiredToken)
	assert.NotErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerify_Failures(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)
	token, err := codec.Issue(testIdentity, KindAccess, time.Hour)
	require.NoError(t, err)

	other, err := NewTokenCodec("another-secret", WithClock(clock.Now))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged, _ := Decode(token)
	forged.Username = "mallory"
	forgedPayload, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SigningString()
	require.NoError(t, err)
	tampered := forgedPayload + "." + parts[2]

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, forged).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		codec *TokenCodec
	}{
		{name: "wrong secret", token: token, codec: other},
		{name: "tampered payload", token: tampered, codec: codec},
		{name: "malformed", token: "not.a.jwt", codec: codec},
		{name: "empty", token: "", codec: codec},
		{name: "alg none", token: noneToken, codec: codec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Verify(tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}

func TestVerify_ExpiredWithWrongSecretIsInvalid(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)
	token, err := codec.Issue(testIdentity, KindAccess, -time.Minute)
	require.NoError(t, err)

	other, err := NewTokenCodec("another-secret", WithClock(clock.Now))
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyKind(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)
	pair, err := codec.IssuePair(testIdentity)
	require.NoError(t, err)

	_, err = codec.VerifyKind(pair.RefreshToken, KindRefresh)
	require.NoError(t, err)

	_, err = codec.VerifyKind(pair.AccessToken, KindRefresh)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestIssue_UnknownKind(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})
	_, err := codec.Issue(testIdentity, TokenKind("session"), time.Minute)
	require.Error(t, err)
}

func TestWithTTLs(t *testing.T) {
	codec, err := NewTokenCodec("k", WithTTLs(15*time.Minute, 0))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, codec.TTL(KindAccess))
	assert.Equal(t, DefaultRefreshTTL, codec.TTL(KindRefresh))
}

func TestDecode(t *testing.T) {
	codec := newTestCodec(t, &fakeClock{t: time.Now()})
	token, err := codec.Issue(testIdentity, KindRefresh, -time.Hour)
	require.NoError(t, err)

	claims, ok := Decode(token)
	require.True(t, ok, "decode ignores expiry")
	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, KindRefresh, claims.Kind)

	_, ok = Decode("garbage")
	assert.False(t, ok)
}
