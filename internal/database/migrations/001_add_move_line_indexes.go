package migrations

import (
	"gorm.io/gorm"
)

// AddMoveLineIndexes creates the composite indexes the balancer and the
// matcher lean on: grouping move lines by (account, party) and looking
// up posted counterparts by (payment, account).
func AddMoveLineIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_move_lines_account_party
			ON move_lines (account_id, party_id)`,
		`CREATE INDEX IF NOT EXISTS idx_statement_move_lines_payment_account
			ON statement_move_lines (payment_id, account_id)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
