package domain

import (
	"github.com/yungbote/studyport-backend/internal/domain/studies"
	"github.com/yungbote/studyport-backend/internal/domain/user"
)

type User = user.User

type Study = studies.Study
type Component = studies.Component
type StudyMember = studies.StudyMember
type StagingSession = studies.StagingSession

const (
	ImportKindStudy     = studies.ImportKindStudy
	ImportKindComponent = studies.ImportKindComponent

	StagingUploaded  = studies.StagingUploaded
	StagingReported  = studies.StagingReported
	StagingConfirmed = studies.StagingConfirmed
	StagingDiscarded = studies.StagingDiscarded

	OutcomeApplied   = studies.OutcomeApplied
	OutcomeNoop      = studies.OutcomeNoop
	OutcomeFailed    = studies.OutcomeFailed
	OutcomeExpired   = studies.OutcomeExpired
	OutcomeDiscarded = studies.OutcomeDiscarded
)

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&User{},
		&Study{},
		&Component{},
		&StudyMember{},
		&StagingSession{},
	}
}
