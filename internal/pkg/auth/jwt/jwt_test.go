package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestIssuer_IssueAndParse(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	token, err := issuer.Issue(42, "alice", true)
	require.NoError(t, err)

	payload, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.UserID)
	assert.Equal(t, "alice", payload.Username)
	assert.True(t, payload.IsAdmin)
	assert.Equal(t, TokenIssuer, payload.Issuer)
	assert.Equal(t, "42", payload.Subject)
}

func TestIssuer_ParseRejects(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	token, err := issuer.Issue(1, "alice", false)
	require.NoError(t, err)

	_, err = NewIssuer("other-secret", time.Hour).Parse(token)
	assert.Error(t, err)

	expired, err := NewIssuer(testSecret, -time.Minute).Issue(1, "alice", false)
	require.NoError(t, err)
	_, err = issuer.Parse(expired)
	assert.Error(t, err)

	_, err = issuer.Parse("not.a.token")
	assert.Error(t, err)

	// Correctly signed, but the subject names another profile than user_id.
	mismatched, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Payload{
		StandardClaims: gojwt.StandardClaims{
			Subject:   "2",
			Issuer:    TokenIssuer,
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		UserID: 1,
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = issuer.Parse(mismatched)
	assert.ErrorIs(t, err, ErrSubjectMismatch)
}

func TestPayload_Permissions(t *testing.T) {
	var anonymous *Payload
	assert.False(t, anonymous.CanModify(1))
	assert.Zero(t, anonymous.ClaimedUserID())

	member := &Payload{UserID: 1}
	assert.True(t, member.CanModify(1))
	assert.False(t, member.CanModify(2))
	assert.Equal(t, int64(1), member.ClaimedUserID())

	admin := &Payload{UserID: 9, IsAdmin: true}
	assert.True(t, admin.CanModify(2))
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractToken(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r), "a malformed header is not silently replaced by the query")
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	token, err := issuer.Issue(7, "bob", false)
	require.NoError(t, err)

	var seen *Payload
	handler := IdentityExtractorMiddleware(issuer)(RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetPayloadFromContext(r)
		w.WriteHeader(http.StatusNoContent)
	})))

	t.Run("anonymous is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token is anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		require.NotNil(t, seen)
		assert.Equal(t, int64(7), seen.UserID)
	})
}
