package statement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateStatement(s *Statement) error {
	return d.db.Create(s).Error
}

func (d *Database) GetStatement(statementID string) (*Statement, error) {
	var s Statement
	if err := d.db.Where("statement_id = ?", statementID).First(&s).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch statement: %w", err)
	}
	return &s, nil
}

func (d *Database) UpdateStatement(s *Statement) error {
	s.UpdatedAt = time.Now()
	return d.db.Save(s).Error
}

func (d *Database) CreateLine(l *StatementLine) error {
	return d.db.Create(l).Error
}

func (d *Database) GetLine(lineID string) (*StatementLine, error) {
	var l StatementLine
	if err := d.db.Where("line_id = ?", lineID).First(&l).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch statement line: %w", err)
	}
	return &l, nil
}

func (d *Database) UpdateLine(l *StatementLine) error {
	l.UpdatedAt = time.Now()
	return d.db.Save(l).Error
}

func (d *Database) LinesForStatement(statementID string) ([]StatementLine, error) {
	var lines []StatementLine
	if err := d.db.Where("statement_id = ?", statementID).Order("id").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch statement lines: %w", err)
	}
	return lines, nil
}

// DeleteLine removes a statement line together with its counterpart
// lines. Deleting the owning line is the only way a counterpart is
// destroyed.
func (d *Database) DeleteLine(lineID string) error {
	if err := d.db.Where("line_id = ?", lineID).Delete(&MoveLine{}).Error; err != nil {
		return fmt.Errorf("failed to delete counterpart lines: %w", err)
	}
	if err := d.db.Where("line_id = ?", lineID).Delete(&StatementLine{}).Error; err != nil {
		return fmt.Errorf("failed to delete statement line: %w", err)
	}
	return nil
}

func (d *Database) CreateMoveLine(m *MoveLine) error {
	if m.CounterpartID == "" {
		m.CounterpartID = "CPT_" + uuid.New().String()
	}
	return d.db.Create(m).Error
}

func (d *Database) GetMoveLine(counterpartID string) (*MoveLine, error) {
	var m MoveLine
	if err := d.db.Where("counterpart_id = ?", counterpartID).First(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch counterpart line: %w", err)
	}
	return &m, nil
}

func (d *Database) UpdateMoveLine(m *MoveLine) error {
	m.UpdatedAt = time.Now()
	return d.db.Save(m).Error
}

func (d *Database) MoveLinesForLine(lineID string) ([]MoveLine, error) {
	var lines []MoveLine
	if err := d.db.Where("line_id = ?", lineID).Order("id").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch counterpart lines: %w", err)
	}
	return lines, nil
}

// PostedCounterparts returns the posted counterpart lines bound to a
// payment on a given account, across all statements. Used by the
// balancer when an advance journal settles through a shared clearing
// account.
func (d *Database) PostedCounterparts(paymentID, accountID string) ([]MoveLine, error) {
	var lines []MoveLine
	if err := d.db.
		Where("payment_id = ? AND account_id = ? AND move_id IS NOT NULL", paymentID, accountID).
		Order("id").
		Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch posted counterparts: %w", err)
	}
	return lines, nil
}

// CopyMoveLine clones a counterpart line for reuse on another statement
// line. The payment binding and posted move are never carried over: a
// counterpart binding is not duplicable.
func (d *Database) CopyMoveLine(src *MoveLine, targetLineID string) (*MoveLine, error) {
	clone := &MoveLine{
		CounterpartID: "CPT_" + uuid.New().String(),
		LineID:        targetLineID,
		AccountID:     src.AccountID,
		PartyID:       src.PartyID,
		Amount:        src.Amount,
		Date:          src.Date,
		Description:   src.Description,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := d.db.Create(clone).Error; err != nil {
		return nil, fmt.Errorf("failed to copy counterpart line: %w", err)
	}
	return clone, nil
}

// UnexplainedConfirmedLines returns confirmed statement lines whose
// residual is still non-zero, for the retry sweep.
func (d *Database) UnexplainedConfirmedLines() ([]StatementLine, error) {
	var lines []StatementLine
	if err := d.db.Where("state = ?", LineStateConfirmed).Order("id").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch confirmed lines: %w", err)
	}
	unexplained := lines[:0]
	for i := range lines {
		if !lines[i].Unexplained().IsZero() {
			unexplained = append(unexplained, lines[i])
		}
	}
	return unexplained, nil
}
