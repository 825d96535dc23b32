package domain

import (
	"context"
	"time"
)

// UserRole is the closed set of roles a user can hold. The role is carried
// into access tokens as the "role" claim.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleUser    UserRole = "user"
	RoleViewer  UserRole = "viewer"
)

// Valid reports whether r is one of the defined roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser, RoleViewer:
		return true
	}
	return false
}

// UserStatus defines the possible statuses of a user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// User represents a resource owner. Password hashes are bcrypt; the plain
// password never appears on this struct.
type User struct {
	ID           string     `bson:"_id,omitempty"  json:"id"`
	Username     string     `bson:"username"       json:"username"`
	Email        string     `bson:"email"          json:"email"`
	PasswordHash string     `bson:"password_hash"  json:"-"`
	FirstName    string     `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName     string     `bson:"last_name,omitempty"  json:"last_name,omitempty"`
	Role         UserRole   `bson:"role"           json:"role"`
	Status       UserStatus `bson:"status"         json:"status"`
	CreatedAt    time.Time  `bson:"created_at"     json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"     json:"updated_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
}

// UserRepository defines the storage contract for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	// TouchLastLogin records a successful authentication timestamp.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
