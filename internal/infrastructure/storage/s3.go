// Package storage provides long-term archival of processed media.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// S3Archive stores processed videos in an S3-compatible bucket.
type S3Archive struct {
	client    *s3.S3
	bucket    string
	keyPrefix string
	logger    *zap.Logger
}

var _ outbound.MediaArchive = (*S3Archive)(nil)

// NewS3Archive creates an archive backed by S3 or any S3-compatible
// endpoint (MinIO when s3_endpoint is set).
func NewS3Archive(cfg *config.Config, logger *zap.Logger) (*S3Archive, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Storage.S3Region),
	}
	if cfg.Storage.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Storage.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.Storage.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			"",
		)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Archive{
		client:    s3.New(sess),
		bucket:    cfg.Storage.S3Bucket,
		keyPrefix: cfg.Storage.KeyPrefix,
		logger:    logger,
	}, nil
}

// Store uploads the body under key and returns the object key actually
// written, prefix included.
func (a *S3Archive) Store(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	fullKey := a.objectKey(key)

	// PutObject needs a ReadSeeker for signing.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read media body: %w", err)
	}

	start := time.Now()
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(fullKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		a.logger.Error("Media archive upload failed",
			zap.String("bucket", a.bucket),
			zap.String("key", fullKey),
			zap.Error(err))
		return "", fmt.Errorf("failed to archive media: %w", err)
	}

	a.logger.Info("Media archived",
		zap.String("bucket", a.bucket),
		zap.String("key", fullKey),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return fullKey, nil
}

// Delete removes an archived object. Missing objects are not an error.
func (a *S3Archive) Delete(ctx context.Context, key string) error {
	fullKey := a.objectKey(key)

	_, err := a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		a.logger.Error("Media archive delete failed",
			zap.String("bucket", a.bucket),
			zap.String("key", fullKey),
			zap.Error(err))
		return fmt.Errorf("failed to delete archived media: %w", err)
	}
	return nil
}

// PresignedURL returns a time-limited download URL for an archived
// object.
func (a *S3Archive) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	fullKey := a.objectKey(key)

	req, _ := a.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(fullKey),
	})
	req.SetContext(ctx)

	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign media URL: %w", err)
	}
	return url, nil
}

func (a *S3Archive) objectKey(key string) string {
	if a.keyPrefix == "" {
		return key
	}
	return path.Join(a.keyPrefix, key)
}
