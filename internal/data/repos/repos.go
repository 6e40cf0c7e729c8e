package repos

import (
	"github.com/yungbote/studyport-backend/internal/data/repos/studies"
	"github.com/yungbote/studyport-backend/internal/data/repos/user"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo

type StudyRepo = studies.StudyRepo
type ComponentRepo = studies.ComponentRepo
type StagingSessionRepo = studies.StagingSessionRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return user.NewUserRepo(db, baseLog)
}

func NewStudyRepo(db *gorm.DB, baseLog *logger.Logger) StudyRepo {
	return studies.NewStudyRepo(db, baseLog)
}

func NewComponentRepo(db *gorm.DB, baseLog *logger.Logger) ComponentRepo {
	return studies.NewComponentRepo(db, baseLog)
}

func NewStagingSessionRepo(db *gorm.DB, baseLog *logger.Logger) StagingSessionRepo {
	return studies.NewStagingSessionRepo(db, baseLog)
}
