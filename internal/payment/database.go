package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrInvalidClearingConfig is returned when a journal's clearing
	// percent and clearing account are inconsistent.
	ErrInvalidClearingConfig = errors.New("clearing percent required iff clearing account is set, in (0, 1]")
	// ErrNegativeAmount is returned when a payment is created with a
	// negative amount.
	ErrNegativeAmount = errors.New("payment amount must be non-negative")
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateJournal validates and stores a payment journal. A journal with
// a clearing account but no percent defaults to clearing in full.
func (d *Database) CreateJournal(journal *Journal) error {
	if journal.HasClearing() {
		if journal.ClearingPercent == nil {
			one := decimal.NewFromInt(1)
			journal.ClearingPercent = &one
		}
		p := *journal.ClearingPercent
		if p.Sign() <= 0 || p.GreaterThan(decimal.NewFromInt(1)) {
			return ErrInvalidClearingConfig
		}
	} else if journal.ClearingPercent != nil {
		return ErrInvalidClearingConfig
	}
	return d.db.Create(journal).Error
}

func (d *Database) GetJournal(journalID string) (*Journal, error) {
	var journal Journal
	if err := d.db.Where("journal_id = ?", journalID).First(&journal).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch journal: %w", err)
	}
	return &journal, nil
}

func (d *Database) CreateGroup(group *Group) error {
	return d.db.Create(group).Error
}

func (d *Database) GetGroup(groupID string) (*Group, error) {
	var group Group
	if err := d.db.Where("group_id = ?", groupID).First(&group).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch group: %w", err)
	}
	return &group, nil
}

func (d *Database) CreatePayment(p *Payment) error {
	if p.Amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if p.State == "" {
		p.State = StateDraft
	}
	return d.db.Create(p).Error
}

func (d *Database) GetPayment(paymentID string) (*Payment, error) {
	var p Payment
	if err := d.db.Where("payment_id = ?", paymentID).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &p, nil
}

func (d *Database) UpdatePayment(p *Payment) error {
	p.UpdatedAt = time.Now()
	return d.db.Save(p).Error
}

// GroupPayments returns the member payments of a group in insertion
// order.
func (d *Database) GroupPayments(groupID string) ([]Payment, error) {
	var payments []Payment
	if err := d.db.Where("group_id = ?", groupID).Order("id").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch group payments: %w", err)
	}
	return payments, nil
}

// GroupTotal derives a group's total amount by summing its member
// payments. The total is recomputed on every call, never cached.
func (d *Database) GroupTotal(groupID string) (decimal.Decimal, error) {
	payments, err := d.GroupPayments(groupID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range payments {
		total = total.Add(payments[i].Amount)
	}
	return total, nil
}

// SearchGroups returns candidate groups of the given kind whose journal
// trades in the given currency and whose derived total equals the target
// amount exactly. Results are ordered by group insertion order, which
// fixes the matcher's first-eligible-wins iteration. The sum comparison
// runs on decimals in process rather than in SQL so that equality stays
// exact.
func (d *Database) SearchGroups(kind, currency string, total decimal.Decimal) ([]Group, error) {
	var groups []Group
	err := d.db.
		Joins("JOIN journals ON journals.journal_id = groups.journal_id").
		Where("groups.kind = ? AND journals.currency = ?", kind, currency).
		Order("groups.id").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search payment groups: %w", err)
	}

	var matching []Group
	for i := range groups {
		groupTotal, err := d.GroupTotal(groups[i].GroupID)
		if err != nil {
			return nil, err
		}
		if groupTotal.Equal(total) {
			matching = append(matching, groups[i])
		}
	}
	return matching, nil
}
