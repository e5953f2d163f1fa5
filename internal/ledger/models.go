package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MoveStateDraft  = "DRAFT"
	MoveStatePosted = "POSTED"
)

// Account is a general ledger account. Only accounts with Reconcile set
// participate in reconciliation grouping.
type Account struct {
	gorm.Model `json:"-"`
	AccountID  string `gorm:"uniqueIndex" json:"account_id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	Currency   string `json:"currency"`
	Reconcile  bool   `json:"reconcile"`
}

// Move is a double-entry journal move. Lines belong to exactly one move
// and only posted moves count towards balances.
type Move struct {
	gorm.Model `json:"-"`
	MoveID     string    `gorm:"uniqueIndex" json:"move_id"`
	State      string    `json:"state"` // DRAFT, POSTED
	Date       time.Time `json:"date"`
	Origin     string    `json:"origin"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MoveLine is a single ledger line. Debit and credit are mutually
// exclusive: one of them is always zero.
type MoveLine struct {
	gorm.Model       `json:"-"`
	LineID           string          `gorm:"uniqueIndex" json:"line_id"`
	MoveID           string          `gorm:"index" json:"move_id"`
	AccountID        string          `gorm:"index" json:"account_id"`
	PartyID          *string         `gorm:"index" json:"party_id,omitempty"`
	Debit            decimal.Decimal `gorm:"type:numeric" json:"debit"`
	Credit           decimal.Decimal `gorm:"type:numeric" json:"credit"`
	Date             time.Time       `json:"date"`
	Description      string          `json:"description"`
	ReconciliationID *string         `gorm:"index" json:"reconciliation_id,omitempty"`
	// StatementLineID tags a line as the direct counterpart of a bank
	// statement line, set when an existing obligation line explains the
	// statement movement exactly.
	StatementLineID *string `gorm:"index" json:"statement_line_id,omitempty"`
}

// Balance returns debit minus credit.
func (l *MoveLine) Balance() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// Reconciled reports whether the line already belongs to a reconciliation.
func (l *MoveLine) Reconciled() bool {
	return l.ReconciliationID != nil && *l.ReconciliationID != ""
}

// Reconciliation marks a zero-summing set of move lines as mutually
// offsetting. It exists only as the shared tag on its member lines.
type Reconciliation struct {
	gorm.Model       `json:"-"`
	ReconciliationID string    `gorm:"uniqueIndex" json:"reconciliation_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// ExchangeRate is a dated conversion rate between two currencies.
type ExchangeRate struct {
	gorm.Model `json:"-"`
	From       string          `gorm:"index:idx_rate_pair" json:"from"`
	To         string          `gorm:"index:idx_rate_pair" json:"to"`
	Rate       decimal.Decimal `gorm:"type:numeric" json:"rate"`
	Date       time.Time       `json:"date"`
}
