package services

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"eshop_back_end/internal/apperr"
)

// UploadLinker turns a public upload path into a short-lived presigned object URL.
type UploadLinker struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewUploadLinker(client *minio.Client, bucket string, ttl time.Duration) *UploadLinker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &UploadLinker{client: client, bucket: bucket, ttl: ttl}
}

// ObjectKey cleans a requested file path. Traversal outside the bucket root is rejected.
func ObjectKey(file string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(file))
	key := strings.TrimPrefix(cleaned, "/")
	if key == "" || key == "." {
		return "", apperr.NotFound("file not found")
	}
	return key, nil
}

func (u *UploadLinker) Link(ctx context.Context, file string) (string, error) {
	key, err := ObjectKey(file)
	if err != nil {
		return "", err
	}

	if _, err := u.client.StatObject(ctx, u.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", apperr.NotFound("file not found")
		}
		return "", apperr.Upstream("failed to read upload", err)
	}

	signed, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.ttl, url.Values{})
	if err != nil {
		return "", apperr.Upstream("failed to sign upload url", err)
	}
	return signed.String(), nil
}
