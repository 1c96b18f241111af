package services

import "context"

// TokenPair bundles a short-lived access token and a long-lived
// refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenIssuer mints signed tokens for a user id.
type TokenIssuer interface {
	IssueAccessToken(userID string) (string, error)
	IssueRefreshToken(userID string) (string, error)
}

// SessionStore persists the single active refresh token per user.
type SessionStore interface {
	SetRefreshToken(ctx context.Context, id, token string) error
	ClearRefreshToken(ctx context.Context, id string) error
}

// SessionRegistry issues token pairs and tracks the active refresh
// token server-side so sessions can be revoked.
type SessionRegistry struct {
	tokens TokenIssuer
	store  SessionStore
}

func NewSessionRegistry(tokens TokenIssuer, store SessionStore) *SessionRegistry {
	return &SessionRegistry{tokens: tokens, store: store}
}

// Establish issues a fresh token pair and stores the refresh token,
// overwriting any previously stored value. Every successful login or
// registration rotates the session this way; the store provides no
// compare-and-swap, so with concurrent logins the last write wins.
func (r *SessionRegistry) Establish(ctx context.Context, userID string) (TokenPair, error) {
	access, err := r.tokens.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := r.tokens.IssueRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := r.store.SetRefreshToken(ctx, userID, refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Revoke clears the stored refresh token for the user.
func (r *SessionRegistry) Revoke(ctx context.Context, userID string) error {
	return r.store.ClearRefreshToken(ctx, userID)
}
