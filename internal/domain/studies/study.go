package studies

import (
	"time"

	"gorm.io/datatypes"
)

// Study is a persisted study record. UUID is the durable cross-system identity;
// ID is local and assigned at creation.
type Study struct {
	ID                 uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID               string                      `gorm:"column:uuid;size:64;not null;uniqueIndex" json:"uuid"`
	Title              string                      `gorm:"column:title;not null" json:"title"`
	Description        string                      `gorm:"column:description" json:"description"`
	Properties         datatypes.JSON              `gorm:"column:properties" json:"properties,omitempty"`
	DirName            string                      `gorm:"column:dir_name;size:255;not null;uniqueIndex" json:"dir_name"`
	AllowedWorkerTypes datatypes.JSONSlice[string] `gorm:"column:allowed_worker_types" json:"allowed_worker_types"`

	Components []*Component `gorm:"foreignKey:StudyID;constraint:OnDelete:CASCADE" json:"components,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Study) TableName() string { return "study" }
