/*
Package profile is the durable record store for user profiles.

A profile is keyed by its numeric id, which is also the identity the live presence
session binds to. Besides the descriptive fields it holds the last persisted
coordinate, which the location writer overwrites on every accepted update.
*/
package profile

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no profile matches the requested id or username.
	ErrNotFound = errors.New("profile not found")

	// ErrUsernameExists is returned when the username is already taken.
	ErrUsernameExists = errors.New("username already exists")

	// ErrEmailExists is returned when the email address is already taken.
	ErrEmailExists = errors.New("email already exists")
)

// Profile is one row of user_profiles.
type Profile struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	VehicleType  string    `json:"vehicle_type"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	IsAdmin      bool      `json:"is_admin"`
	AvatarKey    string    `json:"avatar_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName is the full name when set, otherwise the username.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// HasPassword reports whether the profile can log in.
func (p *Profile) HasPassword() bool {
	return p.PasswordHash != ""
}

// NewProfile carries the fields accepted on creation.
type NewProfile struct {
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	VehicleType  string
	IsAdmin      bool
	Latitude     *float64
	Longitude    *float64
}

// Changes lists the mutable descriptive fields; nil fields are left untouched.
type Changes struct {
	FullName    *string
	VehicleType *string
	AvatarKey   *string
	IsAdmin     *bool
}

// Store is the profile persistence contract shared by the SQLite and PostgreSQL backends.
type Store interface {
	Create(ctx context.Context, p NewProfile) (*Profile, error)
	Get(ctx context.Context, id int64) (*Profile, error)
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
	Update(ctx context.Context, id int64, c Changes) (*Profile, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error

	// GetLocation returns the last persisted coordinate. ok is false when none was ever stored.
	GetLocation(ctx context.Context, id int64) (lat, lng float64, ok bool, err error)

	// SetLocation overwrites the coordinate unconditionally.
	SetLocation(ctx context.Context, id int64, lat, lng float64) error

	Ping(ctx context.Context) error
	Close() error
}
