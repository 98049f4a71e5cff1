package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"groupnav/internal/app/profile"
	"groupnav/internal/app/storage"
	"groupnav/internal/app/user"
	"groupnav/internal/pkg/auth/jwt"
	"groupnav/internal/pkg/errs"
	"groupnav/internal/pkg/logx"
	"groupnav/internal/pkg/req"
	"groupnav/internal/pkg/resp"
)

// profileID parses the {id} route parameter.
func profileID(r *http.Request) (int64, *errs.CustomError) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return id, nil
}

// HandleListProfiles returns every profile ordered by id.
func HandleListProfiles(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := deps.Store.List(r.Context())
		if err != nil {
			logx.Error(err, "list_profiles: store failure")
			resp.RespondError(w, r, errorFor(err))
			return
		}
		resp.RespondSuccess(w, r, map[string]any{"profiles": profiles})
	}
}

// HandleGetProfile returns one profile.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := profileID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		p, err := deps.Store.Get(r.Context(), id)
		if err != nil {
			if !isClientError(err) {
				logx.Error(err, "get_profile: store failure", "id", id)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}
		resp.RespondSuccess(w, r, map[string]any{"profile": p})
	}
}

type CreateProfileInput struct {
	Username    string   `json:"username" validate:"required"`
	Email       string   `json:"email" validate:"required,email,max=254"`
	Password    string   `json:"password"`
	FullName    string   `json:"full_name" validate:"max=120"`
	VehicleType string   `json:"vehicle_type" validate:"max=40"`
	IsAdmin     bool     `json:"is_admin"`
	Latitude    *float64 `json:"latitude" validate:"required_with=Longitude"`
	Longitude   *float64 `json:"longitude" validate:"required_with=Latitude"`
}

// HandleCreateProfile lets an admin add a profile. Without a password the profile
// can join the live session but cannot log in.
func HandleCreateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil || !identity.IsAdmin {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		var input CreateProfileInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := user.ValidateUsername(input.Username); err != nil {
			resp.RespondError(w, r, errorFor(err))
			return
		}

		var hash string
		if input.Password != "" {
			var err error
			if hash, err = deps.Gate.HashPassword(input.Password); err != nil {
				resp.RespondError(w, r, errorFor(err))
				return
			}
		}

		p, err := deps.Store.Create(r.Context(), profile.NewProfile{
			Username:     input.Username,
			Email:        input.Email,
			PasswordHash: hash,
			FullName:     input.FullName,
			VehicleType:  input.VehicleType,
			IsAdmin:      input.IsAdmin,
			Latitude:     input.Latitude,
			Longitude:    input.Longitude,
		})
		if err != nil {
			if !isClientError(err) {
				logx.Error(err, "create_profile: store failure", "username", input.Username)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}

		logx.Info("Profile created.", "user_id", p.ID, "by", identity.UserID)
		resp.RespondCreated(w, r, map[string]any{"profile": p})
	}
}

type UpdateProfileInput struct {
	FullName    *string `json:"full_name" validate:"omitempty,max=120"`
	VehicleType *string `json:"vehicle_type" validate:"omitempty,max=40"`
	AvatarKey   *string `json:"avatar_key"`
	IsAdmin     *bool   `json:"is_admin"`
}

// HandleUpdateProfile changes descriptive fields. Callers may edit their own profile;
// admins may edit any and are the only ones who can change is_admin.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := profileID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		identity := jwt.GetPayloadFromContext(r)
		if !identity.CanModify(id) {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		var input UpdateProfileInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.IsAdmin != nil && !identity.IsAdmin {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}
		if input.AvatarKey != nil && *input.AvatarKey != "" && !storage.OwnsAvatarKey(id, *input.AvatarKey) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		old, err := deps.Store.Get(r.Context(), id)
		if err != nil {
			if !isClientError(err) {
				logx.Error(err, "update_profile: store failure", "id", id)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}

		updated, err := deps.Store.Update(r.Context(), id, profile.Changes{
			FullName:    input.FullName,
			VehicleType: input.VehicleType,
			AvatarKey:   input.AvatarKey,
			IsAdmin:     input.IsAdmin,
		})
		if err != nil {
			if !isClientError(err) {
				logx.Error(err, "update_profile: store failure", "id", id)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}

		if old.AvatarKey != "" && old.AvatarKey != updated.AvatarKey {
			deleteAvatarAsync(deps, old.AvatarKey)
		}

		resp.RespondSuccess(w, r, map[string]any{"profile": updated})
	}
}

// HandleDeleteProfile removes a profile. A live session bound to it is left alone;
// its later location writes are dropped by the store as unknown.
func HandleDeleteProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := profileID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		identity := jwt.GetPayloadFromContext(r)
		if !identity.CanModify(id) {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		p, err := deps.Store.Get(r.Context(), id)
		if err == nil {
			err = deps.Store.Delete(r.Context(), id)
		}
		if err != nil {
			if !isClientError(err) {
				logx.Error(err, "delete_profile: store failure", "id", id)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}

		if p.AvatarKey != "" {
			deleteAvatarAsync(deps, p.AvatarKey)
		}

		logx.Info("Profile deleted.", "user_id", id, "by", identity.UserID)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleGetLocation returns the last persisted coordinate of a profile.
func HandleGetLocation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := profileID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		lat, lng, ok, err := deps.Store.GetLocation(r.Context(), id)
		if err != nil {
			if !isClientError(err) {
				logx.Error(err, "get_location: store failure", "id", id)
			}
			resp.RespondError(w, r, errorFor(err))
			return
		}
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrLocationUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user_id":   id,
			"latitude":  lat,
			"longitude": lng,
		})
	}
}

func deleteAvatarAsync(deps *AppDeps, key string) {
	if deps.Storage == nil {
		return
	}
	go func(k string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Storage.Delete(ctx, k); err != nil {
			logx.Warn("Failed to delete replaced marker icon.", "key", k, "error", err)
		}
	}(key)
}
