// Package staging tracks uploaded archives from extraction until they are
// confirmed, discarded or reclaimed by the sweeper.
package staging

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gorm.io/datatypes"

	"github.com/yungbote/studyport-backend/internal/archive"
	"github.com/yungbote/studyport-backend/internal/data/aggregates"
	"github.com/yungbote/studyport-backend/internal/data/repos"
	types "github.com/yungbote/studyport-backend/internal/domain"
	"github.com/yungbote/studyport-backend/internal/domain/transfer"
	"github.com/yungbote/studyport-backend/internal/observability"
	"github.com/yungbote/studyport-backend/internal/platform/dbctx"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

const exportsDir = "exports"

type Config struct {
	// Root is the private extraction root. It must not lie inside the assets root.
	Root            string
	TTL             time.Duration
	SweepInterval   time.Duration
	Retention       time.Duration
	MaxArchiveBytes int64
}

type Manager struct {
	fs      afero.Fs
	cfg     Config
	codec   *archive.Codec
	repo    repos.StagingSessionRepo
	metrics *observability.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewManager(fs afero.Fs, cfg Config, codec *archive.Codec, repo repos.StagingSessionRepo, metrics *observability.Metrics, baseLog *logger.Logger) (*Manager, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("staging root required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	cfg.Root = filepath.Clean(cfg.Root)
	if err := fs.MkdirAll(filepath.Join(cfg.Root, exportsDir), 0o755); err != nil {
		return nil, transfer.FromFS("staging.init", err)
	}
	return &Manager{
		fs:      fs,
		cfg:     cfg,
		codec:   codec,
		repo:    repo,
		metrics: metrics,
		log:     baseLog.With("service", "StagingManager"),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock overrides the time source.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) Root() string { return m.cfg.Root }

// ExportsDir is where export archives are written before streaming.
func (m *Manager) ExportsDir() string { return filepath.Join(m.cfg.Root, exportsDir) }

type StageInput struct {
	Owner         uuid.UUID
	Kind          string
	TargetStudyID *uint
	ArchiveName   string
	Archive       io.ReaderAt
	Size          int64
}

// Stage extracts an upload into a fresh directory named by a server-generated
// token and records the session as uploaded. Nothing is left on disk when it
// fails.
func (m *Manager) Stage(dbc dbctx.Context, in StageInput) (*types.StagingSession, *archive.Unpacked, error) {
	const op = "staging.stage"
	if in.Owner == uuid.Nil {
		return nil, nil, transfer.NewError(transfer.CodeForbidden, op, "missing acting identity", nil)
	}
	if in.Kind != types.ImportKindStudy && in.Kind != types.ImportKindComponent {
		return nil, nil, transfer.NewError(transfer.CodeBadRequest, op, "unknown import kind "+in.Kind, nil)
	}
	if in.Archive == nil || in.Size <= 0 {
		return nil, nil, transfer.NewError(transfer.CodeBadRequest, op, "empty upload", nil)
	}
	if m.cfg.MaxArchiveBytes > 0 && in.Size > m.cfg.MaxArchiveBytes {
		return nil, nil, transfer.NewError(transfer.CodeBadRequest, op, fmt.Sprintf("archive exceeds %d bytes", m.cfg.MaxArchiveBytes), nil)
	}

	token := uuid.New()
	dir := filepath.Join(m.cfg.Root, token.String())
	fail := func(err error) (*types.StagingSession, *archive.Unpacked, error) {
		if rmErr := m.fs.RemoveAll(dir); rmErr != nil {
			m.log.Warn("staging cleanup failed", "staging_token", token, "error", rmErr)
		}
		return nil, nil, err
	}

	unpacked, err := m.codec.Unpack(in.Archive, in.Size, dir)
	if err != nil {
		return fail(err)
	}
	if unpacked.Document.Kind != in.Kind {
		return fail(transfer.NewError(transfer.CodeBadRequest, op, fmt.Sprintf("expected a %s archive, got %s", in.Kind, unpacked.Document.Kind), nil))
	}
	if err := unpacked.Document.Validate(); err != nil {
		return fail(err)
	}

	now := m.now()
	session := &types.StagingSession{
		ID:            token,
		OwnerUserID:   in.Owner,
		Kind:          in.Kind,
		TargetStudyID: in.TargetStudyID,
		ArchiveName:   in.ArchiveName,
		StagingDir:    dir,
		State:         types.StagingUploaded,
		ExpiresAt:     now.Add(m.cfg.TTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := m.repo.Create(dbc, session); err != nil {
		return fail(aggregates.MapError(op, err))
	}
	m.log.Debug("Archive staged", "staging_token", token, "kind", in.Kind, "user_id", in.Owner)
	return session, unpacked, nil
}

// Load returns a live session owned by owner together with its staged
// document. Unknown, consumed and expired tokens all yield staging_expired.
func (m *Manager) Load(dbc dbctx.Context, token, owner uuid.UUID, kind string) (*types.StagingSession, *archive.Unpacked, error) {
	const op = "staging.load"
	session, err := m.repo.GetByID(dbc, token)
	if err != nil {
		return nil, nil, aggregates.MapError(op, err)
	}
	if session == nil || session.Terminal() {
		return nil, nil, transfer.NewError(transfer.CodeStagingExpired, op, "staging session is gone or already used", nil)
	}
	if session.OwnerUserID != owner {
		return nil, nil, transfer.NewError(transfer.CodeForbidden, op, "staging session belongs to another user", nil)
	}
	if session.Kind != kind {
		return nil, nil, transfer.NewError(transfer.CodeBadRequest, op, fmt.Sprintf("token belongs to a %s import", session.Kind), nil)
	}
	if !m.now().Before(session.ExpiresAt) {
		m.expire(dbc, session)
		return nil, nil, transfer.NewError(transfer.CodeStagingExpired, op, "staging session expired", nil)
	}
	unpacked, err := m.codec.LoadStaged(session.StagingDir)
	if err != nil {
		m.log.Warn("staged archive unreadable", "staging_token", token, "error", err)
		m.Release(dbc, session, types.OutcomeFailed)
		return nil, nil, transfer.NewError(transfer.CodeStagingExpired, op, "staged archive is no longer available", err)
	}
	return session, unpacked, nil
}

// MarkReported moves uploaded -> reported and stores the conflict report.
func (m *Manager) MarkReported(dbc dbctx.Context, session *types.StagingSession, report any) error {
	const op = "staging.report"
	raw, err := json.Marshal(report)
	if err != nil {
		return transfer.NewError(transfer.CodeInternal, op, "encode report", err)
	}
	ok, err := m.repo.TransitionState(dbc, session.ID, []string{types.StagingUploaded}, map[string]interface{}{
		"state":  types.StagingReported,
		"report": datatypes.JSON(raw),
	})
	if err != nil {
		return aggregates.MapError(op, err)
	}
	if err := aggregates.RequireCASSuccess(ok, "staging session is no longer awaiting a report"); err != nil {
		return transfer.NewError(transfer.CodeStagingExpired, op, "staging session is no longer awaiting a report", err)
	}
	session.State = types.StagingReported
	session.Report = datatypes.JSON(raw)
	return nil
}

// Claim moves reported -> confirmed. Exactly one caller can win; every other
// confirm on the same token observes staging_expired.
func (m *Manager) Claim(dbc dbctx.Context, session *types.StagingSession) error {
	const op = "staging.claim"
	ok, err := m.repo.TransitionState(dbc, session.ID, []string{types.StagingReported}, map[string]interface{}{
		"state": types.StagingConfirmed,
	})
	if err != nil {
		return aggregates.MapError(op, err)
	}
	if err := aggregates.RequireCASSuccess(ok, "staging session already consumed"); err != nil {
		return transfer.NewError(transfer.CodeStagingExpired, op, "staging session already consumed", err)
	}
	session.State = types.StagingConfirmed
	return nil
}

// Release frees the staging directory and records outcome. A session that
// has not reached a terminal state is discarded. Failures are logged; the
// sweeper reclaims anything left behind.
func (m *Manager) Release(dbc dbctx.Context, session *types.StagingSession, outcome string) {
	if session == nil {
		return
	}
	if err := m.fs.RemoveAll(session.StagingDir); err != nil {
		m.log.Warn("staging directory removal failed", "staging_token", session.ID, "error", err)
	}
	if !session.Terminal() {
		if _, err := m.repo.TransitionState(dbc, session.ID, []string{types.StagingUploaded, types.StagingReported}, map[string]interface{}{
			"state":   types.StagingDiscarded,
			"outcome": outcome,
		}); err != nil {
			m.log.Warn("staging discard failed", "staging_token", session.ID, "error", err)
		}
		session.State = types.StagingDiscarded
		session.Outcome = outcome
		return
	}
	if err := m.repo.UpdateFields(dbc, session.ID, map[string]interface{}{
		"outcome":    outcome,
		"updated_at": m.now(),
	}); err != nil {
		m.log.Warn("staging outcome update failed", "staging_token", session.ID, "error", err)
	}
	session.Outcome = outcome
}

// Discard drops a pending upload. Unknown and already finished tokens are
// ignored, so calling it repeatedly is harmless. A confirm that is still
// applying keeps its staged tree; it releases the tree itself.
func (m *Manager) Discard(dbc dbctx.Context, token, owner uuid.UUID) error {
	const op = "staging.discard"
	session, err := m.repo.GetByID(dbc, token)
	if err != nil {
		return aggregates.MapError(op, err)
	}
	if session == nil {
		return nil
	}
	if session.OwnerUserID != owner {
		return transfer.NewError(transfer.CodeForbidden, op, "staging session belongs to another user", nil)
	}
	if session.InFlight() {
		return nil
	}
	if session.Terminal() {
		if err := m.fs.RemoveAll(session.StagingDir); err != nil {
			m.log.Warn("staging directory removal failed", "staging_token", token, "error", err)
		}
		return nil
	}
	m.Release(dbc, session, types.OutcomeDiscarded)
	return nil
}

func (m *Manager) expire(dbc dbctx.Context, session *types.StagingSession) {
	m.Release(dbc, session, types.OutcomeExpired)
}
