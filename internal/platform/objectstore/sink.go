// Package objectstore mirrors export archives to an object store.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

const (
	KindNone = "none"
	KindGCS  = "gcs"
	KindS3   = "s3"
)

// Sink stores one object and returns the URL it can be fetched from.
type Sink interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Kind() string
}

type Config struct {
	Kind string

	GCSBucket       string
	GCSEmulatorHost string
	// PublicBaseURL overrides the host used in returned object URLs.
	PublicBaseURL string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// New builds the configured sink. KindNone (or an empty kind) yields a nil
// Sink and no error.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindNone:
		return nil, nil
	case KindGCS:
		return NewGCS(ctx, cfg, log)
	case KindS3:
		return NewS3(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown export sink %q", cfg.Kind)
	}
}

// ExportKey is the object key for an exported archive.
func ExportKey(studyUUID, name string) string {
	return path.Join("exports", strings.TrimSpace(studyUUID), path.Base(name))
}
