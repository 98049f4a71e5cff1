package errs

import "net/http"

// errorMap holds the template CustomError for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Malformed JSON body.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx
	ErrProfileNotFound:   {Code: ErrProfileNotFound, Message: "Profile not found.", Status: http.StatusNotFound},
	ErrUsernameExists:    {Code: ErrUsernameExists, Message: "Username already exists.", Status: http.StatusConflict},
	ErrEmailExists:       {Code: ErrEmailExists, Message: "Email already exists.", Status: http.StatusConflict},
	ErrLocationUnknown:   {Code: ErrLocationUnknown, Message: "No location recorded for this profile.", Status: http.StatusNotFound},
	ErrAvatarUnavailable: {Code: ErrAvatarUnavailable, Message: "Marker icon uploads are disabled.", Status: http.StatusServiceUnavailable},
	ErrAvatarTypeInvalid: {Code: ErrAvatarTypeInvalid, Message: "Marker icon must be a PNG, JPEG or WebP image up to %d MB.", Status: http.StatusBadRequest},

	// 3xxx
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrForbidden:          {Code: ErrForbidden, Message: "You cannot modify this profile.", Status: http.StatusForbidden},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be between 6 and 72 characters.", Status: http.StatusBadRequest},
	ErrOldPasswordInvalid: {Code: ErrOldPasswordInvalid, Message: "Current password is incorrect.", Status: http.StatusBadRequest},
	ErrAlreadyLoggedIn:    {Code: ErrAlreadyLoggedIn, Message: "You are already signed in.", Status: http.StatusBadRequest},

	// 5xxx
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable:  {Code: ErrStoreUnavailable, Message: "Profile storage is unavailable.", Status: http.StatusServiceUnavailable},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File storage failed. Please try again.", Status: http.StatusBadGateway},
}
