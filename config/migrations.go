package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/siteprogress/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "01092026_create_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.Site{}, &models.ProgressRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("progress_records", "sites", "users")
			},
		},
		{
			ID: "15092026_add_floor_and_work_type_entries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.FloorEntry{}, &models.WorkTypeEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("work_type_entries", "floor_entries")
			},
		},
		{
			ID: "01102026_add_floor_lookup_indexes",
			Migrate: func(tx *gorm.DB) error {
				// Floor views filter by site and floor together
				if err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_floor_entries_site_floor ON floor_entries (site_id, floor_label)").Error; err != nil {
					return err
				}
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_work_type_entries_site_floor ON work_type_entries (site_id, floor_label)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX IF EXISTS idx_floor_entries_site_floor").Error; err != nil {
					return err
				}
				return tx.Exec("DROP INDEX IF EXISTS idx_work_type_entries_site_floor").Error
			},
		},
		{
			ID: "15102026_nullable_work_type_progress",
			Migrate: func(tx *gorm.DB) error {
				// Lines reported without a percentage are stored as NULL
				return tx.Migrator().AlterColumn(&models.WorkTypeEntry{}, "ProgressPercentage")
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("UPDATE work_type_entries SET progress_percentage = 0 WHERE progress_percentage IS NULL").Error; err != nil {
					return err
				}
				type workTypeEntry struct {
					ProgressPercentage int `gorm:"not null"`
				}
				return tx.Table("work_type_entries").Migrator().AlterColumn(&workTypeEntry{}, "ProgressPercentage")
			},
		},
	})

	return m.Migrate()
}
