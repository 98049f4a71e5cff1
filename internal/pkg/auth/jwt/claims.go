package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the claims carried by a Group Navigation access token.
type Payload struct {
	// StandardClaims embeds Exp, Iat and Iss, which Issuer.Parse checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the profile id of the token holder. It is the same identifier
	// clients send as user_id when they join the live session.
	UserID int64 `json:"user_id"`

	// Username is the profile's unique login name.
	Username string `json:"username"`

	// IsAdmin grants write access to every profile over the REST API.
	IsAdmin bool `json:"is_admin"`
}

// CanModify reports whether the holder may change profile id: their own, or any as admin.
// A nil Payload is anonymous and may change nothing.
func (p *Payload) CanModify(id int64) bool {
	return p != nil && (p.IsAdmin || p.UserID == id)
}

// ClaimedUserID is the profile id the holder speaks for, 0 for anonymous callers.
func (p *Payload) ClaimedUserID() int64 {
	if p == nil {
		return 0
	}
	return p.UserID
}
