package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reconloop/recon-api/internal/ledger"
)

// Service exposes the payment subsystem: journals, groups, payments and
// their approval workflow. The reconciliation core consumes the same
// store and lifecycle through the statement service.
type Service struct {
	db        *Database
	lifecycle *Lifecycle
}

func NewService(gormDB *gorm.DB) *Service {
	db := NewDatabase(gormDB)
	return &Service{
		db:        db,
		lifecycle: NewLifecycle(db, ledger.NewDatabase(gormDB)),
	}
}

// DB returns the payment store, shared with the statement service.
func (s *Service) DB() *Database {
	return s.db
}

// Lifecycle returns the guarded transition driver.
func (s *Service) Lifecycle() *Lifecycle {
	return s.lifecycle
}

type JournalRequest struct {
	Name              string  `json:"name"`
	Currency          string  `json:"currency" binding:"required"`
	BankAccountID     string  `json:"bank_account_id" binding:"required"`
	ClearingAccountID *string `json:"clearing_account_id"`
	ClearingPercent   *string `json:"clearing_percent"`
	Advance           bool    `json:"advance"`
}

func (s *Service) CreateJournal(req JournalRequest) (*Journal, error) {
	journal := &Journal{
		JournalID:         "JRN_" + uuid.New().String(),
		Name:              req.Name,
		Currency:          req.Currency,
		BankAccountID:     req.BankAccountID,
		ClearingAccountID: req.ClearingAccountID,
		Advance:           req.Advance,
	}
	if req.ClearingPercent != nil {
		percent, err := decimal.NewFromString(*req.ClearingPercent)
		if err != nil {
			return nil, ErrInvalidClearingConfig
		}
		journal.ClearingPercent = &percent
	}
	if err := s.db.CreateJournal(journal); err != nil {
		return nil, err
	}

	log.Info().
		Str("journal_id", journal.JournalID).
		Str("currency", journal.Currency).
		Bool("clearing", journal.HasClearing()).
		Msg("created payment journal")
	return journal, nil
}

func (s *Service) CreateGroup(kind, journalID string) (*Group, error) {
	if _, err := s.db.GetJournal(journalID); err != nil {
		return nil, err
	}
	group := &Group{
		GroupID:   "GRP_" + uuid.New().String(),
		Kind:      kind,
		JournalID: journalID,
		CreatedAt: time.Now(),
	}
	if err := s.db.CreateGroup(group); err != nil {
		return nil, err
	}
	return group, nil
}

type PaymentRequest struct {
	Kind        string  `json:"kind" binding:"required"`
	Currency    string  `json:"currency" binding:"required"`
	Amount      string  `json:"amount" binding:"required"`
	PartyID     string  `json:"party_id" binding:"required"`
	JournalID   string  `json:"journal_id" binding:"required"`
	GroupID     *string `json:"group_id"`
	LineID      *string `json:"line_id"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

func (s *Service) CreatePayment(req PaymentRequest) (*Payment, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, ErrNegativeAmount
	}
	date := time.Now()
	if req.Date != "" {
		if parsed, err := time.Parse("2006-01-02", req.Date); err == nil {
			date = parsed
		}
	}
	p := &Payment{
		PaymentID:   "PAY_" + uuid.New().String(),
		Kind:        req.Kind,
		Currency:    req.Currency,
		Amount:      amount,
		PartyID:     req.PartyID,
		State:       StateDraft,
		JournalID:   req.JournalID,
		GroupID:     req.GroupID,
		LineID:      req.LineID,
		Description: req.Description,
		Date:        date,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.CreatePayment(p); err != nil {
		return nil, err
	}

	log.Info().
		Str("payment_id", p.PaymentID).
		Str("kind", p.Kind).
		Str("amount", p.Amount.String()).
		Msg("created payment")
	return p, nil
}

func (s *Service) SubmitPayment(paymentID string) (*Payment, error) {
	p, err := s.db.GetPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.Submit(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ProcessPayment(paymentID string) (*Payment, error) {
	p, err := s.db.GetPayment(paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.Process(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPayment(paymentID string) (*Payment, error) {
	return s.db.GetPayment(paymentID)
}
