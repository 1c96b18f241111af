package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/identra/apiserver/internal/auth"
	"github.com/identra/apiserver/internal/events"
	"github.com/identra/apiserver/internal/store"
	"github.com/identra/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type memStore struct {
	hasher *auth.PasswordHasher
	users  map[string]types.User
}

func newMemStore() *memStore {
	return &memStore{
		hasher: auth.NewPasswordHasher(),
		users:  make(map[string]types.User),
	}
}

func (m *memStore) GetByID(_ context.Context, id string) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memStore) GetByLogin(_ context.Context, login string) (types.User, error) {
	login = strings.ToLower(login)
	for _, user := range m.users {
		if user.Username == login || user.Email == login {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memStore) Create(ctx context.Context, nu store.NewUser) (types.User, error) {
	username := strings.ToLower(nu.Username)
	email := strings.ToLower(nu.Email)
	for _, user := range m.users {
		if user.Username == username || user.Email == email {
			return types.User{}, store.ErrConflict
		}
	}
	hash, err := m.hasher.Hash(nu.Password)
	if err != nil {
		return types.User{}, err
	}
	now := time.Now()
	user := types.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     nu.FullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) UpdatePassword(_ context.Context, id, rawPassword string) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	hash, err := m.hasher.Hash(rawPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	m.users[id] = user
	return nil
}

func (m *memStore) SetRefreshToken(_ context.Context, id, token string) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.RefreshToken = token
	m.users[id] = user
	return nil
}

func (m *memStore) ClearRefreshToken(_ context.Context, id string) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.RefreshToken = ""
	m.users[id] = user
	return nil
}

type failingIssuer struct{}

func (failingIssuer) IssueAccessToken(string) (string, error) {
	return "", errors.New("signing key unavailable")
}

func (failingIssuer) IssueRefreshToken(string) (string, error) {
	return "", errors.New("signing key unavailable")
}

type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.published = append(p.published, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestService(t *testing.T) (*AuthService, *memStore, *recordingPublisher) {
	t.Helper()
	st := newMemStore()
	issuer := auth.NewTokenIssuer("test-secret", 15*time.Minute, 7*24*time.Hour)
	publisher := &recordingPublisher{}
	svc := NewAuthService(st, st.hasher, NewSessionRegistry(issuer, st), publisher, nil)
	return svc, st, publisher
}

func registerAda(t *testing.T, svc *AuthService) (types.User, TokenPair) {
	t.Helper()
	user, pair, err := svc.Register(context.Background(), RegisterParams{
		FullName: "Ada Lovelace",
		Username: "ada",
		Email:    "ada@x.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	return user, pair
}

// --- tests ---

func TestRegisterSuccess(t *testing.T) {
	svc, st, publisher := newTestService(t)

	user, pair, err := svc.Register(context.Background(), RegisterParams{
		FullName: "Ada Lovelace",
		Username: "Ada",
		Email:    "Ada@X.com",
		Password: "s3cret",
	})
	require.NoError(t, err)

	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "ada@x.com", user.Email)
	assert.Equal(t, "Ada Lovelace", user.FullName)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	stored := st.users[user.ID]
	assert.Equal(t, pair.RefreshToken, stored.RefreshToken)
	assert.NotEqual(t, "s3cret", stored.PasswordHash)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, events.TypeUserRegistered, publisher.published[0].Type)
	assert.Equal(t, user.ID, publisher.published[0].UserID)
}

func TestRegisterMissingFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	valid := RegisterParams{
		FullName: "Ada Lovelace",
		Username: "ada",
		Email:    "ada@x.com",
		Password: "s3cret",
	}

	tests := []struct {
		name   string
		mutate func(*RegisterParams)
	}{
		{"no fullname", func(p *RegisterParams) { p.FullName = "" }},
		{"no username", func(p *RegisterParams) { p.Username = "" }},
		{"no email", func(p *RegisterParams) { p.Email = "" }},
		{"no password", func(p *RegisterParams) { p.Password = "" }},
		{"blank username", func(p *RegisterParams) { p.Username = "   " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := valid
			tt.mutate(&params)
			_, _, err := svc.Register(context.Background(), params)
			assert.ErrorIs(t, err, ErrBadRequest)
		})
	}
}

func TestRegisterDuplicates(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAda(t, svc)

	// Same email, different username.
	_, _, err := svc.Register(context.Background(), RegisterParams{
		FullName: "Someone Else",
		Username: "notada",
		Email:    "ada@x.com",
		Password: "pw",
	})
	assert.ErrorIs(t, err, ErrConflict)

	// Same username, different email.
	_, _, err = svc.Register(context.Background(), RegisterParams{
		FullName: "Someone Else",
		Username: "ada",
		Email:    "else@x.com",
		Password: "pw",
	})
	assert.ErrorIs(t, err, ErrConflict)

	// And again, Conflict both times after the first success.
	_, _, err = svc.Register(context.Background(), RegisterParams{
		FullName: "Someone Else",
		Username: "ada",
		Email:    "else@x.com",
		Password: "pw",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterSessionFailure(t *testing.T) {
	st := newMemStore()
	publisher := &recordingPublisher{}
	svc := NewAuthService(st, st.hasher, NewSessionRegistry(failingIssuer{}, st), publisher, nil)

	_, _, err := svc.Register(context.Background(), RegisterParams{
		FullName: "Ada Lovelace",
		Username: "ada",
		Email:    "ada@x.com",
		Password: "s3cret",
	})
	assert.ErrorIs(t, err, ErrInternal)

	// The account exists even though session establishment failed.
	_, err = st.GetByLogin(context.Background(), "ada")
	assert.NoError(t, err)
	assert.Empty(t, publisher.published)
}

func TestLoginSuccess(t *testing.T) {
	svc, st, _ := newTestService(t)
	user, _ := registerAda(t, svc)

	got, pair, err := svc.Login(context.Background(), LoginParams{Username: "ada", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, pair.RefreshToken, st.users[user.ID].RefreshToken)
}

func TestLoginByEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	user, _ := registerAda(t, svc)

	got, _, err := svc.Login(context.Background(), LoginParams{Email: "ada@x.com", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAda(t, svc)

	_, _, err := svc.Login(context.Background(), LoginParams{Username: "ada", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLoginUnknownIdentifier(t *testing.T) {
	svc, _, _ := newTestService(t)
	registerAda(t, svc)

	_, _, err := svc.Login(context.Background(), LoginParams{Email: "nobody@x.com", Password: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestLoginMissingFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.Login(context.Background(), LoginParams{Password: "pw"})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, _, err = svc.Login(context.Background(), LoginParams{Username: "ada"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestLoginRotatesRefreshToken(t *testing.T) {
	svc, st, _ := newTestService(t)
	user, first := registerAda(t, svc)

	// No delay between registration and login: rotation must hold even
	// when both tokens are minted within the same second.
	_, second, err := svc.Login(context.Background(), LoginParams{Username: "ada", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, second.RefreshToken, st.users[user.ID].RefreshToken)

	// A second immediate login rotates again.
	_, third, err := svc.Login(context.Background(), LoginParams{Username: "ada", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEqual(t, second.RefreshToken, third.RefreshToken)
	assert.Equal(t, third.RefreshToken, st.users[user.ID].RefreshToken)
}

func TestLogoutIdempotent(t *testing.T) {
	svc, st, _ := newTestService(t)
	user, _ := registerAda(t, svc)

	require.NoError(t, svc.Logout(context.Background(), user.ID))
	assert.Empty(t, st.users[user.ID].RefreshToken)

	require.NoError(t, svc.Logout(context.Background(), user.ID))
}

func TestLogoutUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.NoError(t, svc.Logout(context.Background(), uuid.NewString()))
}

func TestChangePassword(t *testing.T) {
	svc, _, publisher := newTestService(t)
	user, _ := registerAda(t, svc)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "s3cret", "n3wpass"))

	_, _, err := svc.Login(context.Background(), LoginParams{Username: "ada", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = svc.Login(context.Background(), LoginParams{Username: "ada", Password: "n3wpass"})
	assert.NoError(t, err)

	var eventTypes []string
	for _, event := range publisher.published {
		eventTypes = append(eventTypes, event.Type)
	}
	assert.Contains(t, eventTypes, events.TypePasswordChanged)
}

func TestChangePasswordWrongOld(t *testing.T) {
	svc, _, _ := newTestService(t)
	user, _ := registerAda(t, svc)

	err := svc.ChangePassword(context.Background(), user.ID, "wrong", "n3wpass")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestChangePasswordMissingFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	user, _ := registerAda(t, svc)

	assert.ErrorIs(t, svc.ChangePassword(context.Background(), user.ID, "", "n3wpass"), ErrBadRequest)
	assert.ErrorIs(t, svc.ChangePassword(context.Background(), user.ID, "s3cret", ""), ErrBadRequest)
}

func TestChangePasswordKeepsSession(t *testing.T) {
	svc, st, _ := newTestService(t)
	user, pair := registerAda(t, svc)

	require.NoError(t, svc.ChangePassword(context.Background(), user.ID, "s3cret", "n3wpass"))

	// Changing the password does not revoke the stored refresh token.
	assert.Equal(t, pair.RefreshToken, st.users[user.ID].RefreshToken)
}

func TestCurrentUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	user, _ := registerAda(t, svc)

	got, err := svc.CurrentUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "ada", got.Username)

	_, err = svc.CurrentUser(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
