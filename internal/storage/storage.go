// Package storage uploads buyer KYC documents to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stwalsh4118/parcela/internal/config"
)

// MaxUploadBytes caps a single document upload.
const MaxUploadBytes = 10 << 20

var (
	ErrDisabled        = errors.New("document storage is not configured")
	ErrTooLarge        = errors.New("file exceeds the 10MB limit")
	ErrUnsupportedType = errors.New("unsupported file type")
)

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ValidateUpload checks the size and extension of an upload and returns the
// content type to store it with.
func ValidateUpload(fileName string, size int64) (string, error) {
	if size > MaxUploadBytes {
		return "", ErrTooLarge
	}
	ct, ok := contentTypes[strings.ToLower(path.Ext(fileName))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, path.Ext(fileName))
	}
	return ct, nil
}

// ObjectKey places a document under its owner with a random name that keeps
// the original extension.
func ObjectKey(userID, docType, fileName string) string {
	return fmt.Sprintf("kyc/%s/%s/%s%s", userID, docType, uuid.NewString(), strings.ToLower(path.Ext(fileName)))
}

// BlobStore stores an object and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// DisabledStore rejects every upload.
type DisabledStore struct{}

func (DisabledStore) Put(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrDisabled
}

// S3Store uploads through the S3 transfer manager.
type S3Store struct {
	uploader *manager.Uploader
	bucket   string
	baseURL  string
}

// NewS3Store builds a client from the default AWS chain, or from static
// credentials when they are configured.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Store{uploader: manager.NewUploader(client), bucket: cfg.Bucket, baseURL: baseURL}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// New returns an S3 store, or a DisabledStore when no bucket is configured.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	if cfg.Bucket == "" {
		return DisabledStore{}, nil
	}
	return NewS3Store(ctx, cfg)
}
