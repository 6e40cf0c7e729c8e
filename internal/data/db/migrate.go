package db

import (
	"fmt"

	types "github.com/yungbote/studyport-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.AllModels()...)
}

// EnsureStagingIndexes adds the sweep index used to find expired sessions.
func EnsureStagingIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_staging_session_state_expires
		ON staging_session (state, expires_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_staging_session_state_expires: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_component_study_position
		ON component (study_id, position);
	`).Error; err != nil {
		return fmt.Errorf("create idx_component_study_position: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureStagingIndexes(s.db); err != nil {
		s.log.Error("Staging index migration failed", "error", err)
		return err
	}
	return nil
}
