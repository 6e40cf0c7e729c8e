package studies

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type StagingSessionRepo interface {
	Create(dbc dbctx.Context, session *types.StagingSession) (*types.StagingSession, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StagingSession, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.StagingSession, error)
	// TransitionState moves the session to a new state only while it is in one
	// of from. It reports whether this caller performed the transition.
	TransitionState(dbc dbctx.Context, id uuid.UUID, from []string, updates map[string]interface{}) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListExpired(dbc dbctx.Context, now time.Time, limit int) ([]*types.StagingSession, error)
	DeleteTerminalBefore(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type stagingSessionRepo struct {
	db    *gorm.DB
	guard aggregates.CASGuard
	log   *logger.Logger
}

func NewStagingSessionRepo(db *gorm.DB, baseLog *logger.Logger) StagingSessionRepo {
	return &stagingSessionRepo{
		db:    db,
		guard: aggregates.NewCASGuard(db),
		log:   baseLog.With("repo", "StagingSessionRepo"),
	}
}

func (r *stagingSessionRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Context())
}

func (r *stagingSessionRepo) Create(dbc dbctx.Context, session *types.StagingSession) (*types.StagingSession, error) {
	if session == nil {
		return nil, nil
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if err := r.tx(dbc).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *stagingSessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.StagingSession, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var s types.StagingSession
	err := r.tx(dbc).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *stagingSessionRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.StagingSession, error) {
	var out []*types.StagingSession
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *stagingSessionRepo) TransitionState(dbc dbctx.Context, id uuid.UUID, from []string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return r.guard.UpdateByState(dbc, types.StagingSession{}.TableName(), id, from, updates)
}

func (r *stagingSessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).
		Model(&types.StagingSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListExpired returns non-terminal sessions whose expiry is at or before now.
func (r *stagingSessionRepo) ListExpired(dbc dbctx.Context, now time.Time, limit int) ([]*types.StagingSession, error) {
	var out []*types.StagingSession
	q := r.tx(dbc).
		Where("state IN ? AND expires_at <= ?", []string{types.StagingUploaded, types.StagingReported}, now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTerminalBefore removes confirmed/discarded rows last touched before cutoff.
func (r *stagingSessionRepo) DeleteTerminalBefore(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	res := r.tx(dbc).
		Where("state IN ? AND updated_at < ?", []string{types.StagingConfirmed, types.StagingDiscarded}, cutoff).
		Delete(&types.StagingSession{})
	return res.RowsAffected, res.Error
}
