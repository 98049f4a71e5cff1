package handler

import (
	"net/http"

	"groupnav/internal/app/storage"
	"groupnav/internal/pkg/auth/jwt"
	"groupnav/internal/pkg/errs"
	"groupnav/internal/pkg/logx"
	"groupnav/internal/pkg/req"
	"groupnav/internal/pkg/resp"
)

// PresignAvatarInput describes the marker icon the caller is about to upload.
type PresignAvatarInput struct {
	MimeType string `json:"mime_type" validate:"required"`
	FileSize int64  `json:"file_size" validate:"required,gt=0"`
}

// HandlePresignAvatar issues a time-limited PUT URL for the caller's marker icon. The
// returned key is recorded on the profile with a follow-up update.
func HandlePresignAvatar(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarUnavailable))
			return
		}

		var input PresignAvatarInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key, err := storage.AvatarKey(identity.UserID, input.MimeType, input.FileSize)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarTypeInvalid, storage.MaxAvatarSizeMB))
			return
		}

		url, err := deps.Storage.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "presign_avatar: storage failure", "user_id", identity.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"presigned_url": url,
			"avatar_key":    key,
			"expires_in":    int(storage.PresignedURLDuration.Seconds()),
		})
	}
}

// HandleAvatarDownload redirects to a time-limited GET URL for a profile's marker icon.
func HandleAvatarDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := profileID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarUnavailable))
			return
		}

		p, err := deps.Store.Get(r.Context(), id)
		if err != nil {
			resp.RespondError(w, r, errorFor(err))
			return
		}
		if p.AvatarKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrProfileNotFound))
			return
		}

		url, err := deps.Storage.PresignDownload(r.Context(), p.AvatarKey, storage.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "avatar_download: storage failure", "user_id", id)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
