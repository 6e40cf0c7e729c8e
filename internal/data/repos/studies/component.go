package studies

import (
	"errors"

	"gorm.io/gorm"

	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type ComponentRepo interface {
	Create(dbc dbctx.Context, components []*types.Component) ([]*types.Component, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Component, error)
	GetByStudyID(dbc dbctx.Context, studyID uint) ([]*types.Component, error)
	GetByStudyAndUUID(dbc dbctx.Context, studyID uint, componentUUID string) (*types.Component, error)
	UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error
	DeleteByIDs(dbc dbctx.Context, ids []uint) error
	MaxPosition(dbc dbctx.Context, studyID uint) (int, error)
}

type componentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentRepo(db *gorm.DB, baseLog *logger.Logger) ComponentRepo {
	return &componentRepo{
		db:  db,
		log: baseLog.With("repo", "ComponentRepo"),
	}
}

func (r *componentRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context())
}

func (r *componentRepo) Create(dbc dbctx.Context, components []*types.Component) ([]*types.Component, error) {
	if len(components) == 0 {
		return []*types.Component{}, nil
	}
	if err := r.tx(dbc).Create(&components).Error; err != nil {
		return nil, err
	}
	return components, nil
}

func (r *componentRepo) GetByID(dbc dbctx.Context, id uint) (*types.Component, error) {
	if id == 0 {
		return nil, nil
	}
	var c types.Component
	err := r.tx(dbc).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *componentRepo) GetByStudyID(dbc dbctx.Context, studyID uint) ([]*types.Component, error) {
	var out []*types.Component
	if studyID == 0 {
		return out, nil
	}
	if err := r.tx(dbc).
		Where("study_id = ?", studyID).
		Order("position ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *componentRepo) GetByStudyAndUUID(dbc dbctx.Context, studyID uint, componentUUID string) (*types.Component, error) {
	if studyID == 0 || componentUUID == "" {
		return nil, nil
	}
	var c types.Component
	err := r.tx(dbc).
		Where("study_id = ? AND uuid = ?", studyID, componentUUID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *componentRepo) UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).
		Model(&types.Component{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *componentRepo) DeleteByIDs(dbc dbctx.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.tx(dbc).Where("id IN ?", ids).Delete(&types.Component{}).Error
}

// MaxPosition returns the highest position in the study, or 0 when empty.
func (r *componentRepo) MaxPosition(dbc dbctx.Context, studyID uint) (int, error) {
	var max *int
	if err := r.tx(dbc).
		Model(&types.Component{}).
		Where("study_id = ?", studyID).
		Select("MAX(position)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
