package storage

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"shipyard/internal/config"
	"shipyard/internal/services"
)

// Minio uploads to a MinIO server.
type Minio struct {
	client *minio.Client
	cfg    config.Storage
}

func NewMinio(cfg config.Storage) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "minio", "create client", err)
	}
	return &Minio{client: client, cfg: cfg}, nil
}

func (m *Minio) Upload(ctx context.Context, key, localPath string) (string, error) {
	full := ObjectKey(m.cfg.Prefix, key)
	if _, err := m.client.FPutObject(ctx, m.cfg.Bucket, full, localPath, minio.PutObjectOptions{
		ContentType: contentType(full),
	}); err != nil {
		return "", uploadError("minio", full, err)
	}
	presigned, err := m.client.PresignedGetObject(ctx, m.cfg.Bucket, full, presignExpiry(m.cfg), nil)
	if err != nil {
		return m.client.EndpointURL().String() + "/" + m.cfg.Bucket + "/" + full, nil
	}
	return presigned.String(), nil
}

func (m *Minio) Close() error { return nil }
