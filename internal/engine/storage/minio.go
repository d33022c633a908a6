// Package storage provides the artifact store backed by an S3-compatible
// object store.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fleetwarden/fleetwarden/internal/engine/core"
	"github.com/fleetwarden/fleetwarden/pkg/options"
)

// MinioStore presigns artifact downloads against an S3-compatible
// endpoint. A nil client means presigning is disabled and orders carry
// raw artifact URLs.
type MinioStore struct {
	client *minio.Client
	bucket string
}

var _ core.ArtifactStore = (*MinioStore)(nil)

// NewMinioStore builds the store from options. With an empty endpoint the
// store is disabled rather than an error; the engine runs fine without an
// object store.
func NewMinioStore(opts *options.S3Options) (*MinioStore, error) {
	if opts == nil || opts.Endpoint == "" {
		return &MinioStore{}, nil
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &MinioStore{client: client, bucket: opts.BucketName}, nil
}

// Enabled reports whether presigning is configured.
func (s *MinioStore) Enabled() bool {
	return s.client != nil
}

// PresignDownload returns a temporary download URL for the object. The
// object may be given as a bare key or as an s3://bucket/key URL.
func (s *MinioStore) PresignDownload(ctx context.Context, object string, expiry time.Duration) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("artifact store is not configured")
	}
	bucket, key := s.bucket, object
	if strings.HasPrefix(object, "s3://") {
		u, err := url.Parse(object)
		if err != nil {
			return "", fmt.Errorf("invalid artifact object %q: %w", object, err)
		}
		bucket = u.Host
		key = strings.TrimPrefix(u.Path, "/")
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}
