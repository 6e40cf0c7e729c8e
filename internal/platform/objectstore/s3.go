package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type s3Sink struct {
	log      *logger.Logger
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
}

// NewS3 uploads to an S3-compatible bucket using the default AWS credential
// chain. S3Endpoint points the client at MinIO or another compatible store.
func NewS3(ctx context.Context, cfg Config, log *logger.Logger) (Sink, error) {
	return newS3(ctx, cfg, log, nil)
}

func newS3(ctx context.Context, cfg Config, log *logger.Logger, httpClient *http.Client, extra ...func(*config.LoadOptions) error) (Sink, error) {
	bucket := strings.TrimSpace(cfg.S3Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing env var EXPORT_S3_BUCKET")
	}
	region := strings.TrimSpace(cfg.S3Region)
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := append([]func(*config.LoadOptions) error{config.WithRegion(region)}, extra...)
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.S3Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3PathStyle {
			o.UsePathStyle = true
		}
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if httpClient != nil {
			o.HTTPClient = httpClient
		}
	})
	s := &s3Sink{
		log:      log.With("service", "S3ExportSink"),
		client:   client,
		bucket:   bucket,
		region:   region,
		endpoint: endpoint,
	}
	s.log.Info("Export sink initialized", "bucket", bucket, "region", region, "endpoint", endpoint)
	return s, nil
}

func (s *s3Sink) Kind() string { return KindS3 }

func (s *s3Sink) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	input := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key), Body: body}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put s3 object: %w", err)
	}
	return s3ObjectURL(s.endpoint, s.region, s.bucket, key), nil
}

func s3ObjectURL(endpoint, region, bucket, key string) string {
	key = strings.TrimLeft(key, "/")
	if endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", endpoint, bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
