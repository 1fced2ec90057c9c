// Package docstore keeps course documents (assignment PDFs, lecture
// notes) in an S3-compatible object store and hands out short-lived
// presigned download URLs to UI clients.
package docstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	logx "studyplan/pkg/logx"
)

type Config struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLTTL    time.Duration // presigned URL lifetime; 0 means 15m
}

type Service struct {
	log    logx.Logger
	client *minio.Client
	bucket string
	urlTTL time.Duration
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{log: log, client: client, bucket: cfg.Bucket, urlTTL: ttl}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	s.log.Info("bucket created", logx.String("bucket", s.bucket))
	return nil
}

// Upload stores a document under courses/<courseID>/<docID>/<name> and
// returns the object key.
func (s *Service) Upload(ctx context.Context, courseID, docID, name, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(courseID, docID, name)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	return key, nil
}

// PresignedURL returns a time-limited download link for an object key.
func (s *Service) PresignedURL(ctx context.Context, key, downloadName string) (string, error) {
	params := url.Values{}
	if downloadName != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return u.String(), nil
}

// Remove deletes an object; missing objects are not an error.
func (s *Service) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// URLTTL reports the presigned URL lifetime, so the HTTP layer can cache
// links slightly shorter than they live.
func (s *Service) URLTTL() time.Duration { return s.urlTTL }

func objectKey(courseID, docID, name string) string {
	name = strings.ReplaceAll(path.Base(name), "\\", "_")
	if name == "" || name == "." {
		name = "document"
	}
	return path.Join("courses", courseID, docID, name)
}
