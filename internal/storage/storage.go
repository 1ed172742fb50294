// Package storage puts uploaded onboarding files into their buckets. Badge photos are public;
// documents and voice pitches are private and only leave through presigned URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Storage interface {
	// Upload stores body and returns its location: a public URL for public buckets, the
	// object key otherwise.
	Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error)
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// S3API is satisfied by *aws.S3Client.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Storage struct {
	client        S3API
	region        string
	publicBaseURL string
	public        map[string]bool
	logger        logger.Logger
}

// NewS3Storage serves publicBuckets by URL. publicBaseURL overrides the virtual-hosted
// S3 address, e.g. for a CDN in front of the badge bucket.
func NewS3Storage(client S3API, region, publicBaseURL string, publicBuckets []string, log logger.Logger) *S3Storage {
	public := make(map[string]bool, len(publicBuckets))
	for _, b := range publicBuckets {
		public[b] = true
	}
	return &S3Storage{
		client:        client,
		region:        region,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		public:        public,
		logger:        logger.ForComponent(log, "storage"),
	}
}

func (s *S3Storage) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(path),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("upload failed", map[string]interface{}{"bucket": bucket, "key": path, "error": err})
		if store.IsDeadline(err) || ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewTimeoutError("object storage", err)
		}
		return "", apperrors.NewStorageUploadFailedError(bucket, err)
	}

	s.logger.Debug("object uploaded", map[string]interface{}{"bucket": bucket, "key": path, "contentType": contentType})
	if !s.public[bucket] {
		return path, nil
	}
	return s.publicURL(bucket, path), nil
}

func (s *S3Storage) publicURL(bucket, path string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, escaped)
}

func (s *S3Storage) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	req, err := s.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, path, err)
	}
	return req.URL, nil
}
