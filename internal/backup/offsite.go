package backup

import (
	"context"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader ships a finished backup file somewhere off the machine.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// OffsiteConfig points at a MinIO or S3 compatible bucket.
type OffsiteConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every object name, e.g. a host name.
	Prefix string
}

// MinioUploader copies backups into a bucket.
type MinioUploader struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioUploader(cfg OffsiteConfig) (*MinioUploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioUploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// EnsureBucketExists creates the bucket on first use.
func (m *MinioUploader) EnsureBucketExists(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (m *MinioUploader) Upload(ctx context.Context, path string) error {
	_, err := m.client.FPutObject(ctx, m.bucket, m.ObjectName(path), path, minio.PutObjectOptions{
		ContentType: "application/vnd.sqlite3",
	})
	return err
}

// ObjectName maps a local backup path to its object key.
func (m *MinioUploader) ObjectName(path string) string {
	if m.prefix == "" {
		return filepath.Base(path)
	}
	return m.prefix + "/" + filepath.Base(path)
}
