package studies

import (
	"time"

	"github.com/google/uuid"
)

// StudyMember grants a user rights over a study.
type StudyMember struct {
	StudyID   uint      `gorm:"column:study_id;primaryKey" json:"study_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey;index" json:"user_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (StudyMember) TableName() string { return "study_member" }
