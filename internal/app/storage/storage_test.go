package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvatarKey(t *testing.T) {
	key, err := AvatarKey(42, "IMAGE/PNG", 1024)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "avatars/42/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.True(t, OwnsAvatarKey(42, key))
	assert.False(t, OwnsAvatarKey(4, key))

	other, err := AvatarKey(42, "image/webp", MaxAvatarSize)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestAvatarKey_Rejects(t *testing.T) {
	for _, tc := range []struct {
		mime string
		size int64
	}{
		{"image/gif", 10},
		{"text/html", 10},
		{"image/png", 0},
		{"image/png", MaxAvatarSize + 1},
	} {
		_, err := AvatarKey(1, tc.mime, tc.size)
		assert.ErrorIs(t, err, ErrAvatarRejected, tc.mime)
	}
}

func TestOwnsAvatarKey_RejectsTraversal(t *testing.T) {
	assert.False(t, OwnsAvatarKey(1, "avatars/1/"))
	assert.False(t, OwnsAvatarKey(1, "avatars/1/../2/x.png"))
	assert.False(t, OwnsAvatarKey(1, "avatars/12/x.png"))
}

func TestPresignUpload_SignsAgainstEndpoint(t *testing.T) {
	svc, err := NewStorageService(context.Background(), ServiceConfig{
		S3BucketName:      "markers",
		S3Endpoint:        "https://objects.example.test",
		S3AccessKeyID:     "AKIDEXAMPLE",
		S3SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	raw, err := svc.PresignUpload(context.Background(), "avatars/1/icon.png", "image/png", 512, PresignedURLDuration)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "objects.example.test", u.Host)
	assert.Equal(t, "/markers/avatars/1/icon.png", u.Path)
	assert.Equal(t, "AWS4-HMAC-SHA256", u.Query().Get("X-Amz-Algorithm"))
}
