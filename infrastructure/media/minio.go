package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"chatify/internal/entity"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var (
	ErrInvalidImage  = entity.NewValidationError("image must be a base64 data URL of a png, jpeg, gif or webp")
	ErrImageTooLarge = entity.NewValidationError("image is too large")
)

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
	MaxBytes  int64
}

// MinIOStore uploads chat images and hands back a public URL for them.
type MinIOStore struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	maxBytes  int64
	log       *zap.Logger
}

// NewMinIOStore connects to MinIO and creates the bucket when it is missing.
func NewMinIOStore(ctx context.Context, opts Options, log *zap.Logger) (*MinIOStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
		log.Info("bucket created", zap.String("bucket", opts.Bucket))
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + opts.Endpoint
	}
	return NewStore(client, opts.Bucket, publicURL, opts.MaxBytes, log), nil
}

func NewStore(client ObjectPutter, bucket, publicURL string, maxBytes int64, log *zap.Logger) *MinIOStore {
	return &MinIOStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		log:       log,
	}
}

// Store uploads the image carried by a data URL and returns its URL.
func (s *MinIOStore) Store(ctx context.Context, dataURL string) (string, error) {
	data, contentType, ext, err := DecodeDataURL(dataURL, s.maxBytes)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("images/%s.%s", uuid.NewString(), ext)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	s.log.Debug("image stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}

// DecodeDataURL parses "data:image/<type>;base64,<payload>".
func DecodeDataURL(dataURL string, maxBytes int64) ([]byte, string, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(dataURL), "data:")
	if !ok {
		return nil, "", "", ErrInvalidImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", "", ErrInvalidImage
	}
	contentType, encoding, ok := strings.Cut(meta, ";")
	if !ok || encoding != "base64" {
		return nil, "", "", ErrInvalidImage
	}
	contentType = strings.ToLower(contentType)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, "", "", ErrInvalidImage
	}
	if maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+3 {
		return nil, "", "", ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", "", ErrInvalidImage
	}
	if len(data) == 0 {
		return nil, "", "", ErrInvalidImage
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", "", ErrImageTooLarge
	}
	return data, contentType, ext, nil
}
