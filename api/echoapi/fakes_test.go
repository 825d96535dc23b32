package echoapi

import (
	"context"
	"sync"
	"time"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

// Minimal in-memory repositories for handler tests. Same contracts as the
// mongo implementations, mutex-guarded.

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{users: map[string]*domain.User{}} }

func (r *memUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return errors.ErrDuplicateUser
		}
	}
	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, errors.ErrUserNotFound
}

func (r *memUserRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (r *memUserRepo) UpdateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type memClientRepo struct {
	mu      sync.Mutex
	clients map[string]*domain.Client
}

func newMemClientRepo() *memClientRepo { return &memClientRepo{clients: map[string]*domain.Client{}} }

func (r *memClientRepo) CreateClient(_ context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
	return nil
}

func (r *memClientRepo) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		return c, nil
	}
	return nil, errors.ErrClientNotFound
}

func (r *memClientRepo) UpdateClient(_ context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
	return nil
}

func (r *memClientRepo) DeactivateClient(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		c.IsActive = false
		return nil
	}
	return errors.ErrClientNotFound
}

type memAuthCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.AuthCode
}

func newMemAuthCodeRepo() *memAuthCodeRepo {
	return &memAuthCodeRepo{codes: map[string]*domain.AuthCode{}}
}

func (r *memAuthCodeRepo) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.Code] = code
	return nil
}

func (r *memAuthCodeRepo) ConsumeAuthCode(_ context.Context, codeValue string) (*domain.AuthCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	code, ok := r.codes[codeValue]
	if !ok {
		return nil, errors.ErrCodeNotFound
	}
	if time.Now().UTC().After(code.ExpiresAt) {
		return nil, errors.ErrCodeExpired
	}
	if code.Used {
		return nil, errors.ErrCodeAlreadyUsed
	}
	code.Used = true
	return code, nil
}

func (r *memAuthCodeRepo) DeleteExpiredAuthCodes(_ context.Context) error { return nil }

type memTokenRepo struct {
	mu        sync.Mutex
	byRefresh map[string]*domain.Token
	byAccess  map[string]*domain.Token
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{byRefresh: map[string]*domain.Token{}, byAccess: map[string]*domain.Token{}}
}

func (r *memTokenRepo) StoreToken(_ context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRefresh[token.RefreshToken] = token
	r.byAccess[token.AccessToken] = token
	return nil
}

func (r *memTokenRepo) ConsumeRefreshToken(_ context.Context, refreshToken string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byRefresh[refreshToken]
	if !ok {
		return nil, errors.ErrRefreshTokenNotFound
	}
	delete(r.byRefresh, refreshToken)
	delete(r.byAccess, token.AccessToken)
	return token, nil
}

func (r *memTokenRepo) GetByAccessToken(_ context.Context, accessToken string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.byAccess[accessToken]; ok && time.Now().UTC().Before(token.AccessExpiresAt) {
		return token, nil
	}
	return nil, errors.ErrRefreshTokenNotFound
}

func (r *memTokenRepo) DeleteByAccessToken(_ context.Context, accessToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.byAccess[accessToken]; ok {
		delete(r.byRefresh, token.RefreshToken)
		delete(r.byAccess, accessToken)
	}
	return nil
}

func (r *memTokenRepo) DeleteExpiredTokens(_ context.Context) error { return nil }

type memSigningKeyRepo struct {
	mu  sync.Mutex
	key *domain.SigningKey
}

func (r *memSigningKeyRepo) GetSigningKey(_ context.Context) (*domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key == nil {
		return nil, errors.ErrKeyUnavailable
	}
	return r.key, nil
}

func (r *memSigningKeyRepo) InsertSigningKey(_ context.Context, key *domain.SigningKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key != nil {
		return errors.ErrSigningKeyExists
	}
	r.key = key
	return nil
}
