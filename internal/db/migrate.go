package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/curricula-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.ImportJob{},
		&domain.CurriculumDoc{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
