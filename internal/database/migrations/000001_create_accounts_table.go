package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createAccountsTableMigration creates the local mirror of identity provider accounts
func createAccountsTableMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_accounts_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

				CREATE TABLE IF NOT EXISTS accounts (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					email VARCHAR(255),
					display_name VARCHAR(255),
					account_type VARCHAR(20) NOT NULL DEFAULT 'agent',
					is_suspended BOOLEAN NOT NULL DEFAULT FALSE,
					suspended_at TIMESTAMP WITH TIME ZONE,
					suspension_reason TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_accounts_deleted_at ON accounts(deleted_at);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS accounts").Error
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createAccountsTableMigration())
}
