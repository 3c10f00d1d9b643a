package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/unclebandit/directmail-scheduler/internal/config"
)

// MinIOArchiver keeps a copy of every printed artifact in object storage.
type MinIOArchiver struct {
	client *minio.Client
	bucket string
}

func NewMinIOArchiver(ctx context.Context, cfg config.MinIOConfig) (*MinIOArchiver, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinIOArchiver{client: client, bucket: cfg.Bucket}, nil
}

// Archive uploads the file under <campaignID>/<file name> and returns the object key.
func (a *MinIOArchiver) Archive(ctx context.Context, campaignID int, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := filepath.ToSlash(filepath.Join(fmt.Sprintf("%d", campaignID), filepath.Base(path)))
	_, err = a.client.PutObject(ctx, a.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file %s: %w", key, err)
	}
	return key, nil
}
