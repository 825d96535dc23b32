package services

import (
	"context"
	"sync"
	"time"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

// In-memory repositories with the same atomicity guarantees as the mongo
// implementations, guarded by a mutex instead of conditional updates.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *domain.User) error {
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
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, errors.ErrUserNotFound
}

func (r *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return errors.ErrUserNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[string]*domain.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: map[string]*domain.Client{}}
}

func (r *fakeClientRepo) CreateClient(_ context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.clients[c.ID] = &cp
	return nil
}

func (r *fakeClientRepo) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, errors.ErrClientNotFound
}

func (r *fakeClientRepo) UpdateClient(_ context.Context, c *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[c.ID]; !ok {
		return errors.ErrClientNotFound
	}
	cp := *c
	r.clients[c.ID] = &cp
	return nil
}

func (r *fakeClientRepo) DeactivateClient(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	if !ok {
		return errors.ErrClientNotFound
	}
	c.IsActive = false
	return nil
}

type fakeAuthCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.AuthCode
}

func newFakeAuthCodeRepo() *fakeAuthCodeRepo {
	return &fakeAuthCodeRepo{codes: map[string]*domain.AuthCode{}}
}

func (r *fakeAuthCodeRepo) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *code
	r.codes[code.Code] = &cp
	return nil
}

func (r *fakeAuthCodeRepo) ConsumeAuthCode(_ context.Context, codeValue string) (*domain.AuthCode, error) {
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
	cp := *code
	return &cp, nil
}

func (r *fakeAuthCodeRepo) DeleteExpiredAuthCodes(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for k, c := range r.codes {
		if now.After(c.ExpiresAt) {
			delete(r.codes, k)
		}
	}
	return nil
}

type fakeTokenRepo struct {
	mu        sync.Mutex
	byRefresh map[string]*domain.Token
	byAccess  map[string]*domain.Token
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{
		byRefresh: map[string]*domain.Token{},
		byAccess:  map[string]*domain.Token{},
	}
}

func (r *fakeTokenRepo) StoreToken(_ context.Context, token *domain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.byRefresh[token.RefreshToken] = &cp
	r.byAccess[token.AccessToken] = &cp
	return nil
}

func (r *fakeTokenRepo) ConsumeRefreshToken(_ context.Context, refreshToken string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byRefresh[refreshToken]
	if !ok {
		return nil, errors.ErrRefreshTokenNotFound
	}
	delete(r.byRefresh, refreshToken)
	delete(r.byAccess, token.AccessToken)
	cp := *token
	return &cp, nil
}

func (r *fakeTokenRepo) GetByAccessToken(_ context.Context, accessToken string) (*domain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byAccess[accessToken]
	if !ok || time.Now().UTC().After(token.AccessExpiresAt) {
		return nil, errors.ErrRefreshTokenNotFound
	}
	cp := *token
	return &cp, nil
}

func (r *fakeTokenRepo) DeleteByAccessToken(_ context.Context, accessToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.byAccess[accessToken]; ok {
		delete(r.byRefresh, token.RefreshToken)
		delete(r.byAccess, accessToken)
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpiredTokens(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for k, t := range r.byRefresh {
		if now.After(t.ExpiresAt) {
			delete(r.byRefresh, k)
			delete(r.byAccess, t.AccessToken)
		}
	}
	return nil
}

type fakeSigningKeyRepo struct {
	mu  sync.Mutex
	key *domain.SigningKey
}

func (r *fakeSigningKeyRepo) GetSigningKey(_ context.Context) (*domain.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key == nil {
		return nil, errors.ErrKeyUnavailable
	}
	cp := *r.key
	return &cp, nil
}

func (r *fakeSigningKeyRepo) InsertSigningKey(_ context.Context, key *domain.SigningKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.key != nil {
		return errors.ErrSigningKeyExists
	}
	cp := *key
	r.key = &cp
	return nil
}
