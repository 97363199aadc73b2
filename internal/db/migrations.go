package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'submission_outcome') THEN
			CREATE TYPE submission_outcome AS ENUM ('SUCCEEDED', 'REJECTED', 'FAILED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS contract_submission (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		session_id VARCHAR(64) NOT NULL,
		operation VARCHAR(32) NOT NULL,
		contract_id VARCHAR(64),
		contract_number VARCHAR(64),
		customer_id VARCHAR(64),
		line_count INTEGER NOT NULL DEFAULT 0,
		ticket_count INTEGER NOT NULL DEFAULT 0,
		outcome submission_outcome NOT NULL,
		message TEXT,
		payload JSONB,
		created_by_user_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'contract_submission' AND column_name = 'ticket_count') THEN
			ALTER TABLE contract_submission ADD COLUMN ticket_count INTEGER NOT NULL DEFAULT 0;
		END IF;
	END
	$$;`,
	`CREATE INDEX IF NOT EXISTS idx_contract_submission_contract_id ON contract_submission (contract_id) WHERE contract_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_contract_submission_session_id ON contract_submission (session_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_submission_created_at ON contract_submission (created_at DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
