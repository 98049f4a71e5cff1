package handler

import (
	"errors"
	"net/http"

	"groupnav/internal/app/profile"
	"groupnav/internal/app/user"
	"groupnav/internal/pkg/auth/jwt"
	"groupnav/internal/pkg/errs"
	"groupnav/internal/pkg/logx"
	"groupnav/internal/pkg/req"
	"groupnav/internal/pkg/resp"
)

type RegisterInput struct {
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required"`
	FullName    string `json:"full_name" validate:"max=120"`
	VehicleType string `json:"vehicle_type" validate:"max=40"`
}

// HandleRegister creates a profile that can log in and returns a token for it.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		p, err := deps.Gate.Register(r.Context(), user.Registration{
			Username:    input.Username,
			Email:       input.Email,
			Password:    input.Password,
			FullName:    input.FullName,
			VehicleType: input.VehicleType,
		})
		if err != nil {
			if !isClientError(err) {
				logx.Error(err, "register: failed to create profile", "username", input.Username)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}

		token, err := issueToken(deps, user.IdentityOf(p))
		if err != nil {
			logx.Error(err, "register: token generation failed", "user_id", p.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		logx.Info("Profile registered.", "user_id", p.ID, "username", p.Username)
		resp.RespondCreated(w, r, map[string]any{
			"token":   token,
			"profile": p,
		})
	}
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin verifies credentials and issues a token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		identity, err := deps.Gate.Verify(r.Context(), user.Credentials{Username: input.Username, Password: input.Password})
		if err != nil {
			if errors.Is(err, user.ErrInvalidCredentials) {
				logx.Warn("login: invalid credentials", "username", input.Username)
			} else {
				logx.Error(err, "login: profile lookup failed", "username", input.Username)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}

		token, err := issueToken(deps, identity)
		if err != nil {
			logx.Error(err, "login: jwt generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token":    token,
			"identity": identity,
		})
	}
}

type ChangePasswordInput struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// HandleChangePassword replaces the caller's password after checking the current one.
func HandleChangePassword(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input ChangePasswordInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		err := deps.Gate.ChangePassword(r.Context(), identity.UserID, input.OldPassword, input.NewPassword)
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			resp.RespondError(w, r, errs.NewError(errs.ErrOldPasswordInvalid))
			return
		case err != nil:
			if !isClientError(err) {
				logx.Error(err, "failed to change password", "user_id", identity.UserID)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

func issueToken(deps *AppDeps, identity user.Identity) (string, error) {
	return deps.Tokens.Issue(identity.UserID, identity.Username, identity.IsAdmin)
}

// errorFor maps domain errors to their API error. Anything unrecognised is a store failure.
func errorFor(err error) *errs.CustomError {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return errs.NewError(errs.ErrProfileNotFound)
	case errors.Is(err, profile.ErrUsernameExists):
		return errs.NewError(errs.ErrUsernameExists)
	case errors.Is(err, profile.ErrEmailExists):
		return errs.NewError(errs.ErrEmailExists)
	case errors.Is(err, user.ErrInvalidCredentials):
		return errs.NewError(errs.ErrInvalidCredentials)
	case errors.Is(err, user.ErrInvalidUsername):
		return errs.NewError(errs.ErrInvalidUsername)
	case errors.Is(err, user.ErrInvalidPassword):
		return errs.NewError(errs.ErrInvalidPassword)
	default:
		return errs.NewError(errs.ErrStoreUnavailable)
	}
}

func isClientError(err error) bool {
	return errorFor(err).Status < http.StatusInternalServerError
}
