package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment states. A payment only moves forward except for the explicit
// succeed/fail transitions driven by statement observation.
const (
	StateDraft      = "DRAFT"
	StateSubmitted  = "SUBMITTED"
	StateProcessing = "PROCESSING"
	StateSucceeded  = "SUCCEEDED"
	StateFailed     = "FAILED"
)

// Journal owns the clearing configuration for the payments routed
// through it. ClearingPercent is required iff ClearingAccountID is set
// and must lie in (0, 1].
type Journal struct {
	gorm.Model        `json:"-"`
	JournalID         string           `gorm:"uniqueIndex" json:"journal_id"`
	Name              string           `json:"name"`
	Currency          string           `json:"currency"`
	BankAccountID     string           `json:"bank_account_id"`
	ClearingAccountID *string          `json:"clearing_account_id,omitempty"`
	ClearingPercent   *decimal.Decimal `gorm:"type:numeric" json:"clearing_percent,omitempty"`
	Advance           bool             `json:"advance"`
}

// HasClearing reports whether payments on this journal route through a
// clearing account.
func (j *Journal) HasClearing() bool {
	return j.ClearingAccountID != nil && *j.ClearingAccountID != ""
}

// Percent returns the effective clearing percent. A journal with a
// clearing account and no explicit percent clears in full.
func (j *Journal) Percent() decimal.Decimal {
	if j.ClearingPercent == nil {
		return decimal.NewFromInt(1)
	}
	return *j.ClearingPercent
}

// Group is a set of payments sharing kind and journal. Its total amount
// is always derived from the member payments, never cached.
type Group struct {
	gorm.Model `json:"-"`
	GroupID    string    `gorm:"uniqueIndex" json:"group_id"`
	Kind       string    `json:"kind"`
	JournalID  string    `json:"journal_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type Payment struct {
	gorm.Model     `json:"-"`
	PaymentID      string          `gorm:"uniqueIndex" json:"payment_id"`
	Kind           string          `json:"kind"` // RECEIVABLE, PAYABLE
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `gorm:"type:numeric" json:"amount"`
	PartyID        string          `gorm:"index" json:"party_id"`
	State          string          `json:"state"`
	JournalID      string          `gorm:"index" json:"journal_id"`
	GroupID        *string         `gorm:"index" json:"group_id,omitempty"`
	LineID         *string         `gorm:"index" json:"line_id,omitempty"`
	ClearingMoveID *string         `json:"clearing_move_id,omitempty"`
	Description    string          `json:"description"`
	Date           time.Time       `json:"date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Terminal reports whether the payment reached a final state.
func (p *Payment) Terminal() bool {
	return p.State == StateSucceeded || p.State == StateFailed
}
