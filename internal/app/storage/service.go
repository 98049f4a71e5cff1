/*
Package storage issues presigned URLs for marker icons kept in S3-compatible object storage.

Icons never pass through the server: a client asks for a presigned PUT, uploads the
image directly to the bucket and then records the returned key on its profile.
*/
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// PresignedURLDuration is how long an issued upload or download URL stays valid.
	PresignedURLDuration = 15 * time.Minute

	// MaxAvatarSizeMB caps a marker icon.
	MaxAvatarSizeMB = 2
	MaxAvatarSize   = MaxAvatarSizeMB << 20

	avatarPrefix = "avatars"
)

var allowedAvatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ErrAvatarRejected is returned for an unsupported content type or size.
var ErrAvatarRejected = fmt.Errorf("marker icon must be png, jpeg or webp and at most %d MB", MaxAvatarSizeMB)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService defines the public interface for the file storage service.
type StorageService interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error
}

// NewStorageService returns the S3-backed implementation.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	return newS3Client(ctx, cfg)
}

// AvatarKey validates an upload request and returns a fresh object key for userID.
func AvatarKey(userID int64, mimeType string, fileSize int64) (string, error) {
	ext, ok := allowedAvatarTypes[strings.ToLower(mimeType)]
	if !ok || fileSize <= 0 || fileSize > MaxAvatarSize {
		return "", ErrAvatarRejected
	}
	return fmt.Sprintf("%s/%d/%s%s", avatarPrefix, userID, uuid.NewString(), ext), nil
}

// OwnsAvatarKey reports whether key was issued to userID by AvatarKey.
func OwnsAvatarKey(userID int64, key string) bool {
	prefix := fmt.Sprintf("%s/%d/", avatarPrefix, userID)
	return strings.HasPrefix(key, prefix) && len(key) > len(prefix) && !strings.Contains(key[len(prefix):], "/")
}
