package app

import (
	"github.com/yungbote/studyport-backend/internal/http"
	httpH "github.com/yungbote/studyport-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyport-backend/internal/http/middleware"
	"github.com/yungbote/studyport-backend/internal/observability"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	ImportExport *httpH.ImportExportHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(),
		ImportExport: httpH.NewImportExportHandler(log, services.ImportExport, cfg.MaxArchiveBytes),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(cfg.HTTPAddr, http.RouterConfig{
		Log:                 log,
		Metrics:             metrics,
		ServiceName:         serviceName,
		CORSOrigins:         cfg.CORSOrigins,
		AuthMiddleware:      middleware.Auth,
		ImportExportHandler: handlers.ImportExport,
		HealthHandler:       handlers.Health,
	})
}
