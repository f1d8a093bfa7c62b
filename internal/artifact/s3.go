package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the connection settings for the object-store backend.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	// Prefix is prepended to every object key, typically the run ID.
	Prefix string
}

// S3ConfigFromEnv reads CONVOY_S3_* environment variables.
func S3ConfigFromEnv() (S3Config, error) {
	cfg := S3Config{
		Endpoint:  os.Getenv("CONVOY_S3_ENDPOINT"),
		AccessKey: os.Getenv("CONVOY_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("CONVOY_S3_SECRET_KEY"),
		Region:    os.Getenv("CONVOY_S3_REGION"),
		UseSSL:    os.Getenv("CONVOY_S3_USE_SSL") == "true",
		Bucket:    os.Getenv("CONVOY_S3_BUCKET"),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if err := cfg.Validate(); err != nil {
		return S3Config{}, err
	}
	return cfg, nil
}

// Validate checks that the required connection settings are present.
func (c S3Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("artifact: s3 endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("artifact: s3 endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("artifact: s3 access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("artifact: s3 secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("artifact: s3 bucket is required")
	}
	return nil
}

// S3 is a Store uploading artifacts to an S3-compatible object store.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3 creates an object-store-backed artifact store.
func NewS3(cfg S3Config) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: failed to create s3 client: %w", err)
	}
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put uploads the file under prefix/name.
func (s *S3) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}
	_, err := s.client.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(name)},
	)
	if err != nil {
		return "", fmt.Errorf("artifact: failed to upload %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".json") {
		return "application/json"
	}
	return "application/octet-stream"
}
