package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenUse = "refresh"

// Claims are the JWT claims carried by both token kinds. TokenUse is
// set only on refresh tokens so the two artifacts are distinguishable.
type Claims struct {
	TokenUse string `json:"token_use,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints signed, time-bounded access and refresh tokens.
// Issuance is a pure function of the user id, the secret, and the
// clock; it performs no I/O.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken mints a short-lived token carrying the user id.
func (i *TokenIssuer) IssueAccessToken(userID string) (string, error) {
	return i.issue(userID, "", i.accessTTL)
}

// IssueRefreshToken mints a long-lived token carrying the user id.
func (i *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	return i.issue(userID, refreshTokenUse, i.refreshTTL)
}

func (i *TokenIssuer) issue(userID, tokenUse string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		TokenUse: tokenUse,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique jti keeps every issued token distinct even when
			// two are minted within the same second; rotation depends
			// on the new refresh token never equalling the old one.
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ParseSubject verifies an access token's signature and expiry and
// returns the user id it carries. Refresh tokens are rejected; they
// never authenticate requests.
func (i *TokenIssuer) ParseSubject(tokenString string) (string, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.TokenUse == refreshTokenUse {
		return "", errors.New("refresh token not accepted")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
