package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createOrphanedFilesTableMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_orphaned_files_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS orphaned_files (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					bucket VARCHAR(100) NOT NULL,
					file_ref VARCHAR(255) NOT NULL UNIQUE,
					document_id UUID,
					attempts INTEGER NOT NULL DEFAULT 0,
					last_error TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_orphaned_files_updated_at ON orphaned_files(updated_at);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS orphaned_files").Error
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createOrphanedFilesTableMigration())
}
