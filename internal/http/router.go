package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/studyport-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyport-backend/internal/http/middleware"
	"github.com/yungbote/studyport-backend/internal/observability"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthMiddleware      *httpMW.AuthMiddleware
	ImportExportHandler *httpH.ImportExportHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Import / export
		if h := cfg.ImportExportHandler; h != nil {
			protected.POST("/studies/import", h.ImportStudy)
			protected.POST("/studies/import/:token/confirm", h.ConfirmStudy)
			protected.POST("/studies/:id/components/import", h.ImportComponent)
			protected.POST("/components/import/:token/confirm", h.ConfirmComponent)
			protected.DELETE("/imports/:token", h.Discard)
			protected.GET("/studies/:id/export", h.ExportStudy)
			protected.GET("/studies/:id/components/:componentId/export", h.ExportComponent)
		}
	}

	return r
}
