package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"groupnav/internal/pkg/logx"
)

// s3Client implements StorageService against an S3-compatible endpoint.
type s3Client struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
	logger  zerolog.Logger
}

func newS3Client(ctx context.Context, cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 client configuration: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &s3Client{
		bucket:  cfg.S3BucketName,
		client:  client,
		presign: s3.NewPresignClient(client),
		logger:  logx.Component("storage").With().Str("bucket", cfg.S3BucketName).Logger(),
	}, nil
}

func (c *s3Client) PresignUpload(ctx context.Context, key, mimeType string, fileSize int64, duration time.Duration) (string, error) {
	out, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(fileSize),
	}, s3.WithPresignExpires(duration))
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to presign upload.")
		return "", errors.New("failed to generate presigned upload URL")
	}
	return out.URL, nil
}

func (c *s3Client) PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error) {
	out, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(duration))
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to presign download.")
		return "", errors.New("failed to generate presigned download URL")
	}
	return out.URL, nil
}

func (c *s3Client) Delete(ctx context.Context, key string) error {
	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to delete object.")
		return errors.New("failed to delete file from storage")
	}
	return nil
}
