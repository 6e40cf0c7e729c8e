package studies

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type StudyRepo interface {
	Create(dbc dbctx.Context, study *types.Study) (*types.Study, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Study, error)
	GetByUUID(dbc dbctx.Context, studyUUID string) (*types.Study, error)
	DirNameTaken(dbc dbctx.Context, dirName string, excludeID uint) (bool, error)
	UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error
	IsMember(dbc dbctx.Context, studyID uint, userID uuid.UUID) (bool, error)
	AddMember(dbc dbctx.Context, studyID uint, userID uuid.UUID) error
}

type studyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudyRepo(db *gorm.DB, baseLog *logger.Logger) StudyRepo {
	return &studyRepo{
		db:  db,
		log: baseLog.With("repo", "StudyRepo"),
	}
}

func (r *studyRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context())
}

func (r *studyRepo) Create(dbc dbctx.Context, study *types.Study) (*types.Study, error) {
	if study == nil {
		return nil, nil
	}
	if err := r.tx(dbc).Create(study).Error; err != nil {
		return nil, err
	}
	return study, nil
}

// GetByID loads a study with its components in position order. A missing row
// yields (nil, nil).
func (r *studyRepo) GetByID(dbc dbctx.Context, id uint) (*types.Study, error) {
	if id == 0 {
		return nil, nil
	}
	return r.first(dbc, "id = ?", id)
}

func (r *studyRepo) GetByUUID(dbc dbctx.Context, studyUUID string) (*types.Study, error) {
	if studyUUID == "" {
		return nil, nil
	}
	return r.first(dbc, "uuid = ?", studyUUID)
}

func (r *studyRepo) first(dbc dbctx.Context, query string, args ...interface{}) (*types.Study, error) {
	var study types.Study
	err := r.tx(dbc).
		Preload("Components", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where(query, args...).
		First(&study).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &study, nil
}

// DirNameTaken reports whether a study other than excludeID owns dirName.
func (r *studyRepo) DirNameTaken(dbc dbctx.Context, dirName string, excludeID uint) (bool, error) {
	var count int64
	q := r.tx(dbc).Model(&types.Study{}).Where("dir_name = ?", dirName)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *studyRepo) UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).
		Model(&types.Study{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *studyRepo) IsMember(dbc dbctx.Context, studyID uint, userID uuid.UUID) (bool, error) {
	if studyID == 0 || userID == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := r.tx(dbc).
		Model(&types.StudyMember{}).
		Where("study_id = ? AND user_id = ?", studyID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *studyRepo) AddMember(dbc dbctx.Context, studyID uint, userID uuid.UUID) error {
	if studyID == 0 || userID == uuid.Nil {
		return nil
	}
	member := &types.StudyMember{StudyID: studyID, UserID: userID}
	return r.tx(dbc).
		Where(types.StudyMember{StudyID: studyID, UserID: userID}).
		FirstOrCreate(member).Error
}
