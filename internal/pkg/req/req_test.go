package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupnav/internal/pkg/errs"
)

type sample struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func newRequest(body, contentType string) (*httptest.ResponseRecorder, *http.Request) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return httptest.NewRecorder(), r
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantCode    int
	}{
		{"wrong content type", `{"username":"ann"}`, "text/plain", errs.ErrUnsupportedMediaType},
		{"malformed", `{"username":`, "application/json", errs.ErrInvalidJSONFormat},
		{"unknown field", `{"username":"ann","admin":true}`, "application/json", errs.ErrInvalidJSONFormat},
		{"trailing data", `{"username":"ann"}{}`, "application/json", errs.ErrExtraContentInBody},
		{"too large", `{"username":"` + strings.Repeat("a", int(MaxJSONBodySize)) + `"}`, "application/json", errs.ErrRequestEntityTooLarge},
		{"fails validation", `{"username":"an"}`, "application/json", errs.ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, r := newRequest(tt.body, tt.contentType)
			var dst sample
			err := BindJSON(w, r, &dst)
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
		})
	}

	t.Run("valid", func(t *testing.T) {
		w, r := newRequest(`{"username":"ann","email":"ann@example.com"}`, "application/json; charset=utf-8")
		var dst sample
		require.Nil(t, BindJSON(w, r, &dst))
		assert.Equal(t, "ann", dst.Username)
	})
}

func TestValidateStruct_UsesJSONNames(t *testing.T) {
	err := ValidateStruct(&sample{Email: "nope"})
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "username is required")
	assert.Contains(t, err.Message, "email must be a valid email address")
}
