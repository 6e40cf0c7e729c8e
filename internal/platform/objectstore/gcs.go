package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type gcsSink struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	emulatorHost  string
	publicBaseURL string
}

// NewGCS uploads to a Cloud Storage bucket. With an emulator host set the
// client runs unauthenticated against it.
func NewGCS(ctx context.Context, cfg Config, log *logger.Logger) (Sink, error) {
	bucket := strings.TrimSpace(cfg.GCSBucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing env var EXPORT_GCS_BUCKET")
	}
	emulator := strings.TrimRight(strings.TrimSpace(cfg.GCSEmulatorHost), "/")
	var opts []option.ClientOption
	if emulator != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulator)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	s := &gcsSink{
		log:           log.With("service", "GCSExportSink"),
		client:        client,
		bucket:        bucket,
		emulatorHost:  emulator,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}
	s.log.Info("Export sink initialized", "bucket", bucket, "emulator_host", emulator)
	return s, nil
}

// ClientOptionsFromEnv reads inline or file credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (s *gcsSink) Kind() string { return KindGCS }

func (s *gcsSink) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return gcsObjectURL(s.publicBaseURL, s.emulatorHost, s.bucket, key), nil
}

func gcsObjectURL(publicBase, emulatorHost, bucket, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if emulatorHost != "" {
		base := publicBase
		if base == "" {
			base = emulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(bucket), url.PathEscape(key))
	}
	if publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", publicBase, bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}
