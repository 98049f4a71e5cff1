/*
Package req provides helper functions for HTTP request parsing and data binding.

Bodies are decoded strictly (unknown fields and trailing data are rejected) and then
checked against the struct's `validate` tags, so handlers receive either a well-formed
value or a ready-to-send *errs.CustomError.
*/
package req

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"groupnav/internal/pkg/errs"
)

// MaxJSONBodySize caps the body accepted by BindJSON (64 KB).
const MaxJSONBodySize int64 = 64 << 10

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field errors are reported by their JSON names.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// BindJSON decodes the JSON body of r into dst and validates it.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	// The decoder reports a truncated body as a syntax error, so the size limit is
	// checked on the raw read.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxJSONBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return ValidateStruct(dst)
}

// ValidateStruct runs the shared validator on v and converts failures into ErrInvalidParams
// with a message naming the offending fields.
func ValidateStruct(v any) *errs.CustomError {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	customErr := errs.NewError(errs.ErrInvalidParams)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return customErr
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}
	customErr.Message = strings.Join(messages, "; ")
	return customErr
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
