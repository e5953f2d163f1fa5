package party

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNoDefaultAccount is returned when a party has no default account
// configured for the requested obligation kind.
var ErrNoDefaultAccount = errors.New("party has no default account for kind")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateParty(p *Party) error {
	return d.db.Create(p).Error
}

func (d *Database) GetParty(partyID string) (*Party, error) {
	var p Party
	if err := d.db.Where("party_id = ?", partyID).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch party: %w", err)
	}
	return &p, nil
}

// DefaultAccount resolves the party's default ledger account for an
// obligation kind ("RECEIVABLE" or "PAYABLE").
func (d *Database) DefaultAccount(partyID, kind string) (string, error) {
	p, err := d.GetParty(partyID)
	if err != nil {
		return "", err
	}
	var accountID string
	switch kind {
	case "RECEIVABLE":
		accountID = p.ReceivableAccountID
	case "PAYABLE":
		accountID = p.PayableAccountID
	}
	if accountID == "" {
		return "", ErrNoDefaultAccount
	}
	return accountID, nil
}
