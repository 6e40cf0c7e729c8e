// Package importexport implements the two-phase study/component import
// (upload, report, confirm or discard) and the export packager.
package importexport

import (
	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	"github.com/yungbote/studyport-backend/internal/data/repos"
	"github.com/yungbote/studyport-backend/internal/observability"
	"github.com/yungbote/studyport-backend/internal/platform/assetfs"
	"github.com/yungbote/studyport-backend/internal/platform/dirlock"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
	"github.com/yungbote/studyport-backend/internal/platform/objectstore"
	"github.com/yungbote/studyport-backend/internal/staging"
	"gorm.io/gorm"
)

type UsecasesDeps struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Metrics *observability.Metrics
	// Runner and Hooks default to a gorm transaction runner and no-op hooks.
	Runner aggregates.TxRunner
	Hooks  aggregates.Hooks

	Studies    repos.StudyRepo
	Components repos.ComponentRepo

	Codec   *archive.Codec
	Staging *staging.Manager
	Assets  *assetfs.Store
	Locks   dirlock.Locker
	// Sink mirrors export archives when set.
	Sink objectstore.Sink
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Log != nil {
		deps.Log = deps.Log.With("service", "ImportExport")
	} else {
		deps.Log = logger.Nop()
	}
	return Usecases{deps: deps}
}

func (u Usecases) writeDeps() aggregates.BaseDeps {
	return aggregates.BaseDeps{
		DB:     u.deps.DB,
		Log:    u.deps.Log,
		Runner: u.deps.Runner,
		Hooks:  u.deps.Hooks,
	}
}
