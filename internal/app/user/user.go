/*
Package user is the identity gate in front of the live session.

It turns credentials into a verified Identity, owns the username and password rules,
and hashes passwords with bcrypt. The presence core never calls it directly; an
Identity reaches the socket only through the token issued after Verify.
*/
package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"groupnav/internal/app/profile"
)

const (
	MinPasswordLength = 6

	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,80}$`)

var (
	// ErrInvalidCredentials is returned for an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidUsername is returned when a username breaks the naming rules.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrInvalidPassword is returned when a password breaks the length rules.
	ErrInvalidPassword = errors.New("invalid password")
)

// Identity is a verified user as seen by the rest of the system.
type Identity struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
}

// Credentials are what a client presents to log in.
type Credentials struct {
	Username string
	Password string
}

// Registration carries the fields of a self-service sign-up.
type Registration struct {
	Username    string
	Email       string
	Password    string
	FullName    string
	VehicleType string
}

// Gate verifies credentials against the profile store.
type Gate struct {
	store profile.Store
	cost  int
}

// NewGate returns a Gate backed by store using bcrypt.DefaultCost.
func NewGate(store profile.Store) *Gate {
	return &Gate{store: store, cost: bcrypt.DefaultCost}
}

// NewGateWithCost returns a Gate hashing with the given bcrypt cost.
func NewGateWithCost(store profile.Store, cost int) *Gate {
	return &Gate{store: store, cost: cost}
}

// IdentityOf projects a profile to its Identity.
func IdentityOf(p *profile.Profile) Identity {
	return Identity{
		UserID:      p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName(),
		IsAdmin:     p.IsAdmin,
	}
}

// ValidateUsername checks the naming rules.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks the length rules.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength || len(password) > MaxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// HashPassword validates and hashes password.
func (g *Gate) HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns the Identity for valid credentials and ErrInvalidCredentials otherwise.
// Profiles without a password can never log in.
func (g *Gate) Verify(ctx context.Context, c Credentials) (Identity, error) {
	p, err := g.store.GetByUsername(ctx, c.Username)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}

	if !p.HasPassword() {
		return Identity{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(c.Password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	return IdentityOf(p), nil
}

// Register validates and stores a new non-admin profile.
func (g *Gate) Register(ctx context.Context, r Registration) (*profile.Profile, error) {
	if err := ValidateUsername(r.Username); err != nil {
		return nil, err
	}

	hash, err := g.HashPassword(r.Password)
	if err != nil {
		return nil, err
	}

	return g.store.Create(ctx, profile.NewProfile{
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: hash,
		FullName:     r.FullName,
		VehicleType:  r.VehicleType,
	})
}

// ChangePassword replaces the password of id after checking the current one.
// A wrong current password yields ErrInvalidCredentials.
func (g *Gate) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	p, err := g.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if !p.HasPassword() || bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}

	return g.SetPassword(ctx, id, newPassword)
}

// SetPassword replaces the password of id without checking the current one.
func (g *Gate) SetPassword(ctx context.Context, id int64, newPassword string) error {
	hash, err := g.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return g.store.SetPassword(ctx, id, hash)
}
