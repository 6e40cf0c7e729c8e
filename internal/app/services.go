package app

import (
	"fmt"

	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	ie "github.com/yungbote/studyport-backend/internal/modules/importexport"
	"github.com/yungbote/studyport-backend/internal/observability"
	"github.com/yungbote/studyport-backend/internal/platform/assetfs"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
	"github.com/yungbote/studyport-backend/internal/services"
	"github.com/yungbote/studyport-backend/internal/staging"
)

type Services struct {
	Auth         services.AuthService
	Staging      *staging.Manager
	ImportExport ie.Usecases
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	fsys := afero.NewOsFs()

	codec, err := archive.NewCodec(fsys, archive.Options{
		Ignore:           cfg.ArchiveIgnore,
		MaxUnpackedBytes: cfg.MaxUnpackedBytes,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init archive codec: %w", err)
	}
	assets, err := assetfs.NewStore(fsys, cfg.AssetsRoot, cfg.CopyWorkers, log)
	if err != nil {
		return Services{}, fmt.Errorf("init asset store: %w", err)
	}
	stagingMgr, err := staging.NewManager(fsys, staging.Config{
		Root:            cfg.StagingRoot,
		TTL:             cfg.StagingTTL,
		SweepInterval:   cfg.StagingSweepInterval,
		Retention:       cfg.StagingRetention,
		MaxArchiveBytes: cfg.MaxArchiveBytes,
	}, codec, repos.StagingSession, metrics, log)
	if err != nil {
		return Services{}, fmt.Errorf("init staging manager: %w", err)
	}

	transfer := ie.New(ie.UsecasesDeps{
		DB:         db,
		Log:        log,
		Metrics:    metrics,
		Runner:     aggregates.NewGormTxRunner(db),
		Hooks:      aggregates.NewObservabilityHooks(metrics),
		Studies:    repos.Study,
		Components: repos.Component,
		Codec:      codec,
		Staging:    stagingMgr,
		Assets:     assets,
		Locks:      clients.Locks,
		Sink:       clients.Sink,
	})

	return Services{
		Auth:         services.NewAuthService(log, repos.User, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Staging:      stagingMgr,
		ImportExport: transfer,
	}, nil
}
