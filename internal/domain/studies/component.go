package studies

import (
	"time"

	"gorm.io/datatypes"
)

// Component belongs to exactly one study. Position is contiguous from 1 within
// the study.
type Component struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	StudyID        uint           `gorm:"column:study_id;not null;uniqueIndex:idx_component_study_uuid,priority:1;index" json:"study_id"`
	UUID           string         `gorm:"column:uuid;size:64;not null;uniqueIndex:idx_component_study_uuid,priority:2" json:"uuid"`
	Position       int            `gorm:"column:position;not null" json:"position"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Comments       string         `gorm:"column:comments" json:"comments"`
	Active         bool           `gorm:"column:active;not null" json:"active"`
	Reloadable     bool           `gorm:"column:reloadable;not null" json:"reloadable"`
	AssetEntryPath string         `gorm:"column:asset_entry_path" json:"asset_entry_path"`
	Properties     datatypes.JSON `gorm:"column:properties" json:"properties,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Component) TableName() string { return "component" }
