package party

import (
	"gorm.io/gorm"
)

// Party is a customer or supplier the company settles obligations with.
// The two account references hold the party's default receivable and
// payable ledger accounts.
type Party struct {
	gorm.Model          `json:"-"`
	PartyID             string `gorm:"uniqueIndex" json:"party_id"`
	Name                string `json:"name"`
	ReceivableAccountID string `json:"receivable_account_id"`
	PayableAccountID    string `json:"payable_account_id"`
}
