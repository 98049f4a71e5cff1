package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// UserIdentityExpiration defines the lifetime of an access token.
	UserIdentityExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "GroupNav-Server"
)

var (
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
	ErrInvalidToken            = errors.New("invalid or expired token")
	ErrUnexpectedIssuer        = errors.New("unexpected token issuer")
	ErrSubjectMismatch         = errors.New("token subject does not match its user id")
)

// Issuer signs and checks access tokens for profile holders.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret. Tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the holder of profile userID. The subject carries the same
// id, so a token can be matched against the user_id of a live join.
func (i *Issuer) Issue(userID int64, username string, isAdmin bool) (string, error) {
	now := i.now()
	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: now.Add(i.ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(i.secret)
}

// Parse validates tokenString and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedSigningMethod
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	switch {
	case claims.Issuer != TokenIssuer:
		return nil, ErrUnexpectedIssuer
	case claims.Subject != strconv.FormatInt(claims.UserID, 10):
		return nil, ErrSubjectMismatch
	}

	return claims, nil
}
