package jwt

import (
	"context"
	"net/http"
	"strings"

	"groupnav/internal/pkg/errs"
	"groupnav/internal/pkg/logx"
	"groupnav/internal/pkg/resp"
)

// Define Context Key for storing the Payload struct, preventing key collisions with other packages.
type contextKey string

const (
	// ContextAuthPayloadKey is the key used to store the parsed jwt.Payload (user identity) in the request Context.
	ContextAuthPayloadKey contextKey = "auth_payload"

	// TokenQueryParam carries the token on WebSocket upgrades, where browsers cannot set headers.
	TokenQueryParam = "token"
)

// ExtractToken returns the raw token from "Authorization: Bearer <token>" or, failing
// that, from the token query parameter. It returns "" when neither is present.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return r.URL.Query().Get(TokenQueryParam)
}

// IdentityExtractorMiddleware attempts to extract and validate a JWT from the request.
// It injects the Payload into the Context upon success. It does NOT interrupt the request
// on failure or missing token, treating the caller as anonymous instead.
func IdentityExtractorMiddleware(issuer *Issuer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := issuer.Parse(tokenString)
			if err != nil {
				logx.Warn("Invalid or expired JWT provided, treating as anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPayload(r.Context(), payload)))
		})
	}
}

// RequireIdentity rejects requests that reached it without a valid identity.
// It must run after IdentityExtractorMiddleware.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPayload returns a copy of ctx carrying payload.
func WithPayload(ctx context.Context, payload *Payload) context.Context {
	return context.WithValue(ctx, ContextAuthPayloadKey, payload)
}

// GetPayloadFromContext safely extracts the authenticated Payload from the request Context.
// A nil return means the caller is anonymous.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)

	if !ok {
		return nil
	}

	return payload
}
