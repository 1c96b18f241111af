package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundtrip(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := issuer.ParseSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestIssuedTokensAreUnique(t *testing.T) {
	issuer := newTestIssuer()

	// Back-to-back issuance lands within the same second; the jti claim
	// must still make every token distinct.
	first, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	second, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	accessOne, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)
	accessTwo, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)
	assert.NotEqual(t, accessOne, accessTwo)
}

func TestRefreshTokenNotAcceptedForAuth(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	_, err = issuer.ParseSubject(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute, 7*24*time.Hour)

	token, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)

	_, err = issuer.ParseSubject(token)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := newTestIssuer().IssueAccessToken("user-1")
	require.NoError(t, err)

	other := NewTokenIssuer("other-secret", 15*time.Minute, 7*24*time.Hour)
	_, err = other.ParseSubject(token)
	assert.Error(t, err)
}

func TestEmptySubjectRejected(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.IssueAccessToken("")
	require.NoError(t, err)

	_, err = issuer.ParseSubject(token)
	assert.Error(t, err)
}

func TestMalformedTokenRejected(t *testing.T) {
	_, err := newTestIssuer().ParseSubject("not-a-jwt")
	assert.Error(t, err)
}
