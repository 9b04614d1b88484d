// Package images stores news item pictures in an S3-compatible bucket.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrUnsupportedType is returned for content types other than JPEG, PNG and WebP.
var ErrUnsupportedType = errors.New("unsupported image type")

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store uploads images and returns their public URL.
type Store struct {
	client    objectPutter
	bucket    string
	publicURL string
}

// New connects to the object storage endpoint.
func New(endpoint, accessKey, secretKey string, useSSL bool, bucket, publicURL string) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	return newStore(client, bucket, publicURL), nil
}

func newStore(client objectPutter, bucket, publicURL string) *Store {
	return &Store{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// Upload writes an image for newsID and returns its public URL.
func (s *Store) Upload(ctx context.Context, newsID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	objectPath := fmt.Sprintf("news/%s/%s.%s", newsID, uuid.NewString(), ext)
	_, err := s.client.PutObject(ctx, s.bucket, objectPath, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return s.publicURL + "/" + objectPath, nil
}
