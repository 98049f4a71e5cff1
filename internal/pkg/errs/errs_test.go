package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("registered code", func(t *testing.T) {
		err := NewError(ErrProfileNotFound)
		assert.Equal(t, ErrProfileNotFound, err.Code)
		assert.Equal(t, http.StatusNotFound, err.Status)
	})

	t.Run("formats placeholders", func(t *testing.T) {
		err := NewError(ErrAvatarTypeInvalid, 2)
		assert.Contains(t, err.Message, "up to 2 MB")
	})

	t.Run("unknown code collapses to ErrUnknown", func(t *testing.T) {
		err := NewError(424242)
		assert.Equal(t, ErrUnknown, err.Code)
		assert.Equal(t, http.StatusInternalServerError, err.Status)
	})

	t.Run("unknown keeps message when given a cause", func(t *testing.T) {
		err := NewError(ErrUnknown, errors.New("boom"))
		assert.Equal(t, errorMap[ErrUnknown].Message, err.Message)
	})
}

func TestCustomError_IsError(t *testing.T) {
	var err error = NewError(ErrForbidden)
	var target *CustomError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, ErrForbidden, target.Code)
}
