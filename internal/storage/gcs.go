package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"shipyard/internal/config"
	"shipyard/internal/services"
)

// GCS uploads to Google Cloud Storage.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	cfg    config.Storage
}

// NewGCS builds a GCS uploader from a service account file or application
// default credentials.
func NewGCS(ctx context.Context, cfg config.Storage) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "gcs", "create client", err)
	}
	return &GCS{client: client, bucket: client.Bucket(cfg.Bucket), cfg: cfg}, nil
}

func (g *GCS) Upload(ctx context.Context, key, localPath string) (string, error) {
	full := ObjectKey(g.cfg.Prefix, key)
	file, err := os.Open(localPath)
	if err != nil {
		return "", uploadError("gcs", full, err)
	}
	defer file.Close()

	writer := g.bucket.Object(full).NewWriter(ctx)
	writer.ContentType = contentType(full)
	if _, err := io.Copy(writer, file); err != nil {
		_ = writer.Close()
		return "", uploadError("gcs", full, err)
	}
	if err := writer.Close(); err != nil {
		return "", uploadError("gcs", full, err)
	}

	signed, err := g.bucket.SignedURL(full, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(presignExpiry(g.cfg)),
	})
	if err != nil {
		return fmt.Sprintf("gs://%s/%s", g.cfg.Bucket, full), nil
	}
	return signed, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
