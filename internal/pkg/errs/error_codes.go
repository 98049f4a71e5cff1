/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both inside the server
and in the JSON envelope returned to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained data after the JSON value.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Profile and Presence Errors
const (
	// ErrProfileNotFound indicates that no profile exists for the requested id.
	ErrProfileNotFound = 2101

	// ErrUsernameExists indicates that the username is already registered.
	ErrUsernameExists = 2102

	// ErrEmailExists indicates that the email address is already registered.
	ErrEmailExists = 2103

	// ErrLocationUnknown indicates that the profile has no persisted coordinate yet.
	ErrLocationUnknown = 2201

	// ErrAvatarUnavailable indicates that object storage is not configured.
	ErrAvatarUnavailable = 2301

	// ErrAvatarTypeInvalid indicates an unsupported marker icon type or size.
	ErrAvatarTypeInvalid = 2302
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates that the request carries no valid identity.
	ErrUnauthorized = 3001

	// ErrForbidden indicates that the identity may not act on the target resource.
	ErrForbidden = 3002

	// ErrInvalidCredentials indicates a username/password mismatch.
	ErrInvalidCredentials = 3003

	// ErrInvalidUsername indicates the username does not satisfy the naming rules.
	ErrInvalidUsername = 3004

	// ErrInvalidPassword indicates the password does not satisfy the length rules.
	ErrInvalidPassword = 3005

	// ErrOldPasswordInvalid indicates that the current password did not match on change.
	ErrOldPasswordInvalid = 3006

	// ErrAlreadyLoggedIn indicates that an authenticated caller tried to register or log in again.
	ErrAlreadyLoggedIn = 3007
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates that the profile store failed.
	ErrStoreUnavailable = 5001

	// ErrFileStorageFailed indicates that the object storage backend failed.
	ErrFileStorageFailed = 5002
)
