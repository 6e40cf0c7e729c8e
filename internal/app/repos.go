package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/studyport-backend/internal/data/repos"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type Repos struct {
	User           repos.UserRepo
	Study          repos.StudyRepo
	Component      repos.ComponentRepo
	StagingSession repos.StagingSessionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		Study:          repos.NewStudyRepo(db, log),
		Component:      repos.NewComponentRepo(db, log),
		StagingSession: repos.NewStagingSessionRepo(db, log),
	}
}
