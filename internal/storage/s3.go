package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"shipyard/internal/config"
	"shipyard/internal/services"
)

// S3 uploads to Amazon S3 or an S3-compatible endpoint.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     config.Storage
}

// NewS3 builds an S3 uploader. Static credentials are used when configured;
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.Storage) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "s3", "load AWS config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, presign: s3.NewPresignClient(client), cfg: cfg}, nil
}

func (s *S3) Upload(ctx context.Context, key, localPath string) (string, error) {
	full := ObjectKey(s.cfg.Prefix, key)
	file, err := os.Open(localPath)
	if err != nil {
		return "", uploadError("s3", full, err)
	}
	defer file.Close()

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(full),
		Body:        file,
		ContentType: aws.String(contentType(full)),
	}); err != nil {
		return "", uploadError("s3", full, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(full),
	}, s3.WithPresignExpires(presignExpiry(s.cfg)))
	if err != nil {
		return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, full), nil
	}
	return req.URL, nil
}

func (s *S3) Close() error { return nil }
