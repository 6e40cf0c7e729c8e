package studies

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ImportKindStudy     = "study"
	ImportKindComponent = "component"
)

// Staging session lifecycle states.
const (
	StagingUploaded  = "uploaded"
	StagingReported  = "reported"
	StagingConfirmed = "confirmed"
	StagingDiscarded = "discarded"
)

// Outcomes recorded when a session reaches a terminal state.
const (
	OutcomeApplied   = "applied"
	OutcomeNoop      = "noop"
	OutcomeFailed    = "failed"
	OutcomeExpired   = "expired"
	OutcomeDiscarded = "discarded"
)

// StagingSession maps a server-generated token to an extracted upload.
type StagingSession struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID   uuid.UUID      `gorm:"column:owner_user_id;type:uuid;not null;index" json:"owner_user_id"`
	Kind          string         `gorm:"column:kind;not null" json:"kind"`
	TargetStudyID *uint          `gorm:"column:target_study_id" json:"target_study_id,omitempty"`
	ArchiveName   string         `gorm:"column:archive_name" json:"archive_name"`
	StagingDir    string         `gorm:"column:staging_dir;not null" json:"staging_dir"`
	State         string         `gorm:"column:state;not null;index" json:"state"`
	Report        datatypes.JSON `gorm:"column:report" json:"report,omitempty"`
	Outcome       string         `gorm:"column:outcome" json:"outcome,omitempty"`
	ExpiresAt     time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (StagingSession) TableName() string { return "staging_session" }

// Terminal reports whether no further transition is allowed.
func (s *StagingSession) Terminal() bool {
	return s != nil && (s.State == StagingConfirmed || s.State == StagingDiscarded)
}

// InFlight reports whether a confirm has claimed the session but not yet
// recorded an outcome. Its staged tree is still being read.
func (s *StagingSession) InFlight() bool {
	return s != nil && s.State == StagingConfirmed && s.Outcome == ""
}
