package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createKYCTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_kyc_tables",
		Migrate: func(tx *gorm.DB) error {
			// user_id is not a foreign key: users live in the identity provider
			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS kyc_documents (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					user_id UUID NOT NULL,
					document_type VARCHAR(50) NOT NULL,
					document_number VARCHAR(100),
					file_reference VARCHAR(255),
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					verified_at TIMESTAMP WITH TIME ZONE,
					verified_by UUID,
					rejection_reason TEXT,
					expiry_date TIMESTAMP WITH TIME ZONE,
					notes TEXT,
					is_primary BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					CONSTRAINT kyc_documents_status_check CHECK (status IN ('pending', 'verified', 'rejected'))
				);

				CREATE INDEX IF NOT EXISTS idx_kyc_documents_user_id ON kyc_documents(user_id);
				CREATE INDEX IF NOT EXISTS idx_kyc_documents_status ON kyc_documents(status);
				CREATE INDEX IF NOT EXISTS idx_kyc_documents_file_reference ON kyc_documents(file_reference);
				CREATE INDEX IF NOT EXISTS idx_kyc_documents_submitted_at ON kyc_documents(submitted_at DESC);
			`).Error; err != nil {
				return err
			}

			// History rows outlive their document for auditing
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS kyc_document_histories (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					document_id UUID NOT NULL,
					previous_status VARCHAR(20) NOT NULL,
					new_status VARCHAR(20) NOT NULL,
					changed_by UUID,
					notes TEXT,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_kyc_document_histories_document_id ON kyc_document_histories(document_id);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Exec("DROP TABLE IF EXISTS kyc_document_histories").Error; err != nil {
				return err
			}
			return tx.Exec("DROP TABLE IF EXISTS kyc_documents").Error
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createKYCTablesMigration())
}
