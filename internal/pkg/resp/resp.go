/*
Package resp provides helper functions for constructing and sending standardized HTTP JSON responses.

Every body has the shape {"code": ..., "message": ..., "data": ...}; code 0 means success
and any other value is an errs code.
*/
package resp

import (
	"net/http"

	"github.com/goccy/go-json"

	"groupnav/internal/pkg/errs"
	"groupnav/internal/pkg/logx"
)

// JSONResponse defines the standardized JSON response structure returned by the application to clients.
type JSONResponse struct {
	// Code is the business status code (0 for success, others for specific errors, see errs package).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// RespondJSON sets the JSON headers and writes payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
			"path", r.URL.Path,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(response)
}

// RespondSuccess sends an HTTP 200 response wrapping data.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{Code: 0, Message: "success", Data: data})
}

// RespondCreated sends an HTTP 201 response wrapping data.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusCreated, JSONResponse{Code: 0, Message: "created", Data: data})
}

// RespondError sends an HTTP response containing custom error information.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
