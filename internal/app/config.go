package app

import (
	"time"

	"github.com/yungbote/studyport-backend/internal/data/db"
	"github.com/yungbote/studyport-backend/internal/observability"
	"github.com/yungbote/studyport-backend/internal/platform/envutil"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
	"github.com/yungbote/studyport-backend/internal/platform/objectstore"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type Config struct {
	LogMode  string
	HTTPAddr string

	DB db.Config

	AssetsRoot           string
	StagingRoot          string
	StagingTTL           time.Duration
	StagingSweepInterval time.Duration
	StagingRetention     time.Duration
	MaxArchiveBytes      int64
	MaxUnpackedBytes     int64
	ArchiveIgnore        []string
	CopyWorkers          int

	JWTSecretKey   string
	AccessTokenTTL time.Duration
	CORSOrigins    []string

	LockBackend string
	LockDir     string
	LockTTL     time.Duration
	RedisAddr   string

	Export objectstore.Config

	Otel           observability.OtelConfig
	MetricsEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:  envutil.String("LOG_MODE", "development"),
		HTTPAddr: envutil.String("HTTP_ADDR", ":8080"),
		DB: db.Config{
			Driver:     envutil.String("DB_DRIVER", db.DriverPostgres),
			Host:       envutil.String("POSTGRES_HOST", "localhost"),
			Port:       envutil.String("POSTGRES_PORT", "5432"),
			User:       envutil.String("POSTGRES_USER", "postgres"),
			Password:   envutil.String("POSTGRES_PASSWORD", ""),
			Name:       envutil.String("POSTGRES_NAME", "studyport"),
			SQLitePath: envutil.String("SQLITE_PATH", "./data/studyport.db"),
		},
		AssetsRoot:           envutil.String("ASSETS_ROOT", "./data/assets"),
		StagingRoot:          envutil.String("STAGING_ROOT", "./data/staging"),
		StagingTTL:           envutil.Duration("STAGING_TTL", time.Hour),
		StagingSweepInterval: envutil.Duration("STAGING_SWEEP_INTERVAL", 5*time.Minute),
		StagingRetention:     envutil.Duration("STAGING_RETENTION", 7*24*time.Hour),
		MaxArchiveBytes:      envutil.Int64("MAX_ARCHIVE_BYTES", 512<<20),
		MaxUnpackedBytes:     envutil.Int64("MAX_UNPACKED_BYTES", 2<<30),
		ArchiveIgnore:        envutil.List("ARCHIVE_IGNORE", []string{"**/.DS_Store", "**/Thumbs.db", "__MACOSX/**"}),
		CopyWorkers:          envutil.Int("COPY_WORKERS", 4),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", time.Hour),
		CORSOrigins:    envutil.List("CORS_ORIGINS", nil),

		LockBackend: envutil.String("LOCK_BACKEND", LockBackendLocal),
		LockDir:     envutil.String("LOCK_DIR", "./data/locks"),
		LockTTL:     envutil.Duration("LOCK_TTL", 10*time.Minute),
		RedisAddr:   envutil.String("REDIS_ADDR", ""),

		Export: objectstore.Config{
			Kind:            envutil.String("EXPORT_SINK", objectstore.KindNone),
			GCSBucket:       envutil.String("EXPORT_GCS_BUCKET", ""),
			GCSEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
			PublicBaseURL:   envutil.String("EXPORT_PUBLIC_BASE_URL", ""),
			S3Bucket:        envutil.String("EXPORT_S3_BUCKET", ""),
			S3Region:        envutil.String("AWS_REGION", "us-east-1"),
			S3Endpoint:      envutil.String("EXPORT_S3_ENDPOINT", ""),
			S3PathStyle:     envutil.Bool("EXPORT_S3_PATH_STYLE", false),
		},

		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "studyport"),
			Environment: envutil.String("APP_ENV", "development"),
			Version:     envutil.String("APP_VERSION", "dev"),
			Exporter:    envutil.String("OTEL_EXPORTER", "otlp"),
			Endpoint:    envutil.String("OTEL_ENDPOINT", ""),
			Insecure:    envutil.Bool("OTEL_INSECURE", true),
			SampleRatio: 1,
		},
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
	}
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY is not set; bearer tokens cannot be verified")
	}
	return cfg
}
