// Package storage uploads user avatars to S3 compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/spec-kit/contacts-service/internal/config"
)

// ErrNotConfigured is returned when no bucket is set.
var ErrNotConfigured = errors.New("avatar storage not configured")

// AvatarUploader stores an avatar image and returns its public URL.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, username string, body io.Reader, size int64, contentType string) (string, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3AvatarStore writes one object per user, overwriting previous uploads.
type S3AvatarStore struct {
	client  putObjectAPI
	cfg     config.StorageConfig
	logger  *zap.Logger
	baseURL string
}

// NewS3AvatarStore builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3AvatarStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3AvatarStore, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3AvatarStore(client, cfg, logger), nil
}

func newS3AvatarStore(client putObjectAPI, cfg config.StorageConfig, logger *zap.Logger) *S3AvatarStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3AvatarStore{client: client, cfg: cfg, logger: logger, baseURL: publicBaseURL(cfg)}
}

// UploadAvatar implements AvatarUploader.
func (s *S3AvatarStore) UploadAvatar(ctx context.Context, username string, body io.Reader, size int64, contentType string) (string, error) {
	key := s.objectKey(username)
	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("no-cache"),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put avatar %s: %w", key, err)
	}
	s.logger.Info("avatar uploaded", zap.String("username", username), zap.String("key", key))
	return s.baseURL + "/" + key, nil
}

func (s *S3AvatarStore) objectKey(username string) string {
	prefix := strings.Trim(s.cfg.AvatarPrefix, "/")
	name := url.PathEscape(username)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func publicBaseURL(cfg config.StorageConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "" && cfg.UsePathStyle:
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	case cfg.Endpoint != "":
		u, err := url.Parse(cfg.Endpoint)
		if err == nil && u.Host != "" {
			return u.Scheme + "://" + cfg.Bucket + "." + u.Host
		}
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}
