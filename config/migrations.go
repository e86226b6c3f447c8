package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/geofence/models"
)

// Migrations brings the region service schema up to date
func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "14102026_create_regions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Region{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("regions")
			},
		},
		{
			ID: "14102026_index_active_regions",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_regions_is_active ON regions(is_active) WHERE deleted_at IS NULL").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_regions_is_active").Error
			},
		},
	})
	return m.Migrate()
}
