package statement

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	StatementStateDraft     = "DRAFT"
	StatementStateConfirmed = "CONFIRMED"

	LineStateDraft     = "DRAFT"
	LineStateConfirmed = "CONFIRMED"
	LineStatePosted    = "POSTED"
	LineStateCanceled  = "CANCELED"
)

// Statement is a bank statement imported for a bank journal. The
// journal carries the statement currency and the bank ledger account.
type Statement struct {
	gorm.Model  `json:"-"`
	StatementID string    `gorm:"uniqueIndex" json:"statement_id"`
	JournalID   string    `gorm:"index" json:"journal_id"`
	Date        time.Time `json:"date"`
	State       string    `json:"state"` // DRAFT, CONFIRMED
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StatementLine is one observed bank movement. Amount is in statement
// currency, CompanyAmount the converted company-side total and
// MovesAmount the signed sum of ledger lines already attached to it.
type StatementLine struct {
	gorm.Model    `json:"-"`
	LineID        string          `gorm:"uniqueIndex" json:"line_id"`
	StatementID   string          `gorm:"index" json:"statement_id"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `gorm:"type:numeric" json:"amount"`
	CompanyAmount decimal.Decimal `gorm:"type:numeric" json:"company_amount"`
	MovesAmount   decimal.Decimal `gorm:"type:numeric" json:"moves_amount"`
	State         string          `json:"state"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Unexplained returns the residual company-side amount not yet matched
// to any ledger line.
func (l *StatementLine) Unexplained() decimal.Decimal {
	return l.CompanyAmount.Sub(l.MovesAmount)
}

// MoveLine is a counterpart line of a statement line: the ledger leg
// that explains (part of) the observed bank movement. When the line
// settles a payment it carries the payment reference; posting it drives
// the settlement state engine.
type MoveLine struct {
	gorm.Model    `json:"-"`
	CounterpartID string          `gorm:"uniqueIndex" json:"counterpart_id"`
	LineID        string          `gorm:"index" json:"line_id"`
	AccountID     string          `gorm:"index" json:"account_id"`
	PartyID       *string         `json:"party_id,omitempty"`
	Amount        decimal.Decimal `gorm:"type:numeric" json:"amount"` // signed, statement journal currency
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	PaymentID     *string         `gorm:"index" json:"payment_id,omitempty"`
	MoveID        *string         `gorm:"index" json:"move_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName keeps statement counterparts apart from ledger move lines.
func (MoveLine) TableName() string {
	return "statement_move_lines"
}

// Posted reports whether the counterpart has been posted to the ledger.
func (m *MoveLine) Posted() bool {
	return m.MoveID != nil && *m.MoveID != ""
}
