package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrImbalanced is returned when a reconciliation is attempted over
	// lines whose signed sum is not exactly zero.
	ErrImbalanced = errors.New("reconciliation lines do not sum to zero")
	// ErrLineReconciled is returned when a line already belongs to a
	// reconciliation.
	ErrLineReconciled = errors.New("move line is already reconciled")
	// ErrNoRate is returned when no exchange rate covers a conversion.
	ErrNoRate = errors.New("no exchange rate for currency pair")
	// ErrMoveNotDraft is returned when posting a move that is not a draft.
	ErrMoveNotDraft = errors.New("move is not in draft state")
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// WithTx runs fn against a Database bound to a single transaction. The
// reconciliation pass uses this so that matching, line creation and
// balancing commit or roll back as one unit.
func (d *Database) WithTx(fn func(tx *Database) error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewDatabase(tx))
	})
}

// DB exposes the underlying gorm handle for sibling stores sharing the
// same transaction.
func (d *Database) DB() *gorm.DB {
	return d.db
}

func (d *Database) CreateAccount(account *Account) error {
	return d.db.Create(account).Error
}

func (d *Database) GetAccount(accountID string) (*Account, error) {
	var account Account
	if err := d.db.Where("account_id = ?", accountID).First(&account).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return &account, nil
}

// CreateMove creates a draft move together with its lines.
func (d *Database) CreateMove(move *Move, lines []*MoveLine) error {
	if move.MoveID == "" {
		move.MoveID = "MOV_" + uuid.New().String()
	}
	if move.State == "" {
		move.State = MoveStateDraft
	}
	if err := d.db.Create(move).Error; err != nil {
		return fmt.Errorf("failed to create move: %w", err)
	}
	for _, line := range lines {
		if line.LineID == "" {
			line.LineID = "LIN_" + uuid.New().String()
		}
		line.MoveID = move.MoveID
		if line.Date.IsZero() {
			line.Date = move.Date
		}
		if err := d.db.Create(line).Error; err != nil {
			return fmt.Errorf("failed to create move line: %w", err)
		}
	}
	return nil
}

func (d *Database) GetMove(moveID string) (*Move, error) {
	var move Move
	if err := d.db.Where("move_id = ?", moveID).First(&move).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch move: %w", err)
	}
	return &move, nil
}

func (d *Database) GetMoveLines(moveID string) ([]MoveLine, error) {
	var lines []MoveLine
	if err := d.db.Where("move_id = ?", moveID).Order("id").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch move lines: %w", err)
	}
	return lines, nil
}

// PostMove transitions a draft move to posted.
func (d *Database) PostMove(moveID string) error {
	move, err := d.GetMove(moveID)
	if err != nil {
		return err
	}
	if move.State != MoveStateDraft {
		return ErrMoveNotDraft
	}
	move.State = MoveStatePosted
	move.UpdatedAt = time.Now()
	return d.db.Save(move).Error
}

func (d *Database) GetLine(lineID string) (*MoveLine, error) {
	var line MoveLine
	if err := d.db.Where("line_id = ?", lineID).First(&line).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch move line: %w", err)
	}
	return &line, nil
}

func (d *Database) SaveLine(line *MoveLine) error {
	return d.db.Save(line).Error
}

// ReconcileLines marks a set of move lines as mutually reconciled. The
// set must sum to exactly zero and no member may already be reconciled;
// the write is atomic with respect to the surrounding transaction.
func (d *Database) ReconcileLines(lines []*MoveLine) (string, error) {
	if len(lines) == 0 {
		return "", ErrImbalanced
	}
	sum := decimal.Zero
	for _, line := range lines {
		if line.Reconciled() {
			return "", ErrLineReconciled
		}
		sum = sum.Add(line.Balance())
	}
	if !sum.IsZero() {
		return "", ErrImbalanced
	}

	reconciliation := &Reconciliation{
		ReconciliationID: "REC_" + uuid.New().String(),
		CreatedAt:        time.Now(),
	}
	if err := d.db.Create(reconciliation).Error; err != nil {
		return "", fmt.Errorf("failed to create reconciliation: %w", err)
	}
	for _, line := range lines {
		line.ReconciliationID = &reconciliation.ReconciliationID
		if err := d.db.Model(&MoveLine{}).
			Where("line_id = ?", line.LineID).
			Update("reconciliation_id", reconciliation.ReconciliationID).Error; err != nil {
			return "", fmt.Errorf("failed to tag reconciled line: %w", err)
		}
	}
	return reconciliation.ReconciliationID, nil
}

func (d *Database) CreateExchangeRate(rate *ExchangeRate) error {
	return d.db.Create(rate).Error
}

// Convert converts an amount between currencies using the latest rate
// dated at or before asOf. Same-currency conversions are the identity.
func (d *Database) Convert(amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	var rate ExchangeRate
	err := d.db.Where("\"from\" = ? AND \"to\" = ? AND date <= ?", from, to, asOf).
		Order("date DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrNoRate
		}
		return decimal.Zero, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	return amount.Mul(rate.Rate), nil
}
