package statement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/party"
	"github.com/reconloop/recon-api/internal/payment"
)

// ErrStatementNotDraft is returned when mutating a statement that is no
// longer draft.
var ErrStatementNotDraft = errors.New("statement is not in draft state")

// ErrLineNotConfirmed is returned when reconciling a line that is not
// confirmed.
var ErrLineNotConfirmed = errors.New("statement line is not confirmed")

// Service runs reconciliation passes over bank statement lines. Each
// pass executes as one transaction: matching, counterpart creation,
// settlement decisions and balancing commit or roll back together.
type Service struct {
	gormDB *gorm.DB
	db     *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		gormDB: gormDB,
		db:     NewDatabase(gormDB),
	}
}

// DB returns the statement store.
func (s *Service) DB() *Database {
	return s.db
}

// pass bundles the collaborator stores bound to one transaction.
type pass struct {
	statements *Database
	payments   *payment.Database
	ledger     *ledger.Database
	matcher    *Matcher
	builder    *Builder
	engine     *Engine
	balancer   *Balancer
}

func newPass(tx *gorm.DB) *pass {
	statements := NewDatabase(tx)
	payments := payment.NewDatabase(tx)
	parties := party.NewDatabase(tx)
	ledgerDB := ledger.NewDatabase(tx)
	lifecycle := payment.NewLifecycle(payments, ledgerDB)
	return &pass{
		statements: statements,
		payments:   payments,
		ledger:     ledgerDB,
		matcher:    NewMatcher(payments, ledgerDB),
		builder:    NewBuilder(payments, parties, ledgerDB, statements),
		engine:     NewEngine(payments, ledgerDB, lifecycle),
		balancer:   NewBalancer(ledgerDB, statements),
	}
}

type StatementRequest struct {
	JournalID string `json:"journal_id" binding:"required"`
	Date      string `json:"date"`
}

func (s *Service) CreateStatement(req StatementRequest) (*Statement, error) {
	if _, err := payment.NewDatabase(s.gormDB).GetJournal(req.JournalID); err != nil {
		return nil, err
	}
	date := time.Now()
	if req.Date != "" {
		if parsed, err := time.Parse("2006-01-02", req.Date); err == nil {
			date = parsed
		}
	}
	statement := &Statement{
		StatementID: "STM_" + uuid.New().String(),
		JournalID:   req.JournalID,
		Date:        date,
		State:       StatementStateDraft,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.db.CreateStatement(statement); err != nil {
		return nil, err
	}
	return statement, nil
}

type LineRequest struct {
	Date          string `json:"date"`
	Description   string `json:"description"`
	Amount        string `json:"amount" binding:"required"`
	CompanyAmount string `json:"company_amount"`
}

func (s *Service) AddLine(statementID string, req LineRequest) (*StatementLine, error) {
	statement, err := s.db.GetStatement(statementID)
	if err != nil {
		return nil, err
	}
	if statement.State != StatementStateDraft {
		return nil, ErrStatementNotDraft
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, err
	}
	companyAmount := amount
	if req.CompanyAmount != "" {
		companyAmount, err = decimal.NewFromString(req.CompanyAmount)
		if err != nil {
			return nil, err
		}
	}
	date := statement.Date
	if req.Date != "" {
		if parsed, err := time.Parse("2006-01-02", req.Date); err == nil {
			date = parsed
		}
	}
	line := &StatementLine{
		LineID:        "SLN_" + uuid.New().String(),
		StatementID:   statementID,
		Date:          date,
		Description:   req.Description,
		Amount:        amount,
		CompanyAmount: companyAmount,
		MovesAmount:   decimal.Zero,
		State:         LineStateDraft,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := s.db.CreateLine(line); err != nil {
		return nil, err
	}
	return line, nil
}

// LineResult reports the outcome of one reconciliation pass over a
// statement line.
type LineResult struct {
	LineID       string `json:"line_id"`
	Matched      bool   `json:"matched"`
	GroupID      string `json:"group_id,omitempty"`
	Counterparts int    `json:"counterparts"`
	Reconciled   int    `json:"reconciled"`
	Unexplained  string `json:"unexplained"`
	State        string `json:"state"`
}

// Confirm confirms a draft statement and runs one reconciliation pass
// per line. Lines whose residual stays unexplained remain confirmed and
// are retried by later passes.
func (s *Service) Confirm(statementID string) ([]LineResult, error) {
	statement, err := s.db.GetStatement(statementID)
	if err != nil {
		return nil, err
	}
	if statement.State != StatementStateDraft {
		return nil, ErrStatementNotDraft
	}
	lines, err := s.db.LinesForStatement(statementID)
	if err != nil {
		return nil, err
	}
	statement.State = StatementStateConfirmed
	if err := s.db.UpdateStatement(statement); err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i].State = LineStateConfirmed
		if err := s.db.UpdateLine(&lines[i]); err != nil {
			return nil, err
		}
	}

	logger := log.With().
		Str("service", "statement").
		Str("statement_id", statementID).
		Logger()
	logger.Info().Int("lines", len(lines)).Msg("confirmed statement, starting reconciliation")

	results := make([]LineResult, 0, len(lines))
	for i := range lines {
		result, err := s.ReconcileLine(lines[i].LineID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// ReconcileLine runs one reconciliation pass over a confirmed statement
// line: match a payment group against the unexplained residual, create
// or tag counterpart lines, apply settlement decisions and balance the
// touched ledger lines. The whole pass is one transaction. A no-match
// or a lost concurrent claim is a normal outcome, not an error.
func (s *Service) ReconcileLine(lineID string) (*LineResult, error) {
	var result *LineResult
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		st := newPass(tx)
		var err error
		result, err = s.reconcileLine(st, lineID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) reconcileLine(st *pass, lineID string) (*LineResult, error) {
	line, err := st.statements.GetLine(lineID)
	if err != nil {
		return nil, err
	}
	if line.State != LineStateConfirmed {
		return nil, ErrLineNotConfirmed
	}
	statement, err := st.statements.GetStatement(line.StatementID)
	if err != nil {
		return nil, err
	}
	journal, err := st.payments.GetJournal(statement.JournalID)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("service", "statement").
		Str("line_id", lineID).
		Logger()

	unexplained := line.Unexplained()
	result := &LineResult{
		LineID:      lineID,
		Unexplained: unexplained.String(),
		State:       line.State,
	}
	if unexplained.IsZero() {
		line.State = LineStatePosted
		if err := st.statements.UpdateLine(line); err != nil {
			return nil, err
		}
		result.State = line.State
		return result, nil
	}

	group, payments, err := st.matcher.FindGroup(unexplained, journal.Currency)
	if errors.Is(err, ErrNoMatch) {
		logger.Info().Str("unexplained", unexplained.String()).Msg("no payment group matches, line stays unexplained")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	counterparts, err := st.builder.Build(line, payments)
	if errors.Is(err, ErrGroupClaimed) {
		logger.Warn().Str("group_id", group.GroupID).Msg("lost concurrent claim on group, treating as no match")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	movesDelta := decimal.Zero
	reconciled := 0
	for i := range counterparts {
		cp := &counterparts[i]
		if cp.Direct != nil {
			amount := cp.Payment.Amount.Mul(payment.SignForKind(cp.Payment.Kind))
			moveID, err := s.postBankMove(st, journal, cp.Direct.AccountID, cp.Direct.PartyID, amount, line.Date, cp.Payment.Description)
			if err != nil {
				return nil, err
			}
			paymentJournal, err := st.payments.GetJournal(cp.Payment.JournalID)
			if err != nil {
				return nil, err
			}
			n, err := st.balancer.Sweep(moveID, &cp.Payment, paymentJournal, cp.Direct.AccountID)
			if err != nil {
				return nil, err
			}
			reconciled += n
			movesDelta = movesDelta.Add(amount)
			continue
		}

		n, err := s.postCounterpart(st, cp.Line, journal)
		if err != nil {
			return nil, err
		}
		reconciled += n
		movesDelta = movesDelta.Add(cp.Line.Amount)
	}

	line.MovesAmount = line.MovesAmount.Add(movesDelta)
	if line.Unexplained().IsZero() {
		line.State = LineStatePosted
	}
	if err := st.statements.UpdateLine(line); err != nil {
		return nil, err
	}

	result.Matched = true
	result.GroupID = group.GroupID
	result.Counterparts = len(counterparts)
	result.Reconciled = reconciled
	result.Unexplained = line.Unexplained().String()
	result.State = line.State

	logger.Info().
		Str("group_id", group.GroupID).
		Int("counterparts", len(counterparts)).
		Int("reconciled", reconciled).
		Str("unexplained", result.Unexplained).
		Msg("reconciliation pass completed")
	return result, nil
}

// postBankMove posts the two-leg statement move for a signed amount:
// the bank leg on the journal's bank account and the counterpart leg on
// the given account.
func (s *Service) postBankMove(st *pass, journal *payment.Journal, accountID string, partyID *string, amount decimal.Decimal, date time.Time, description string) (string, error) {
	bankLeg := &ledger.MoveLine{
		AccountID:   journal.BankAccountID,
		Description: description,
	}
	counterLeg := &ledger.MoveLine{
		AccountID:   accountID,
		PartyID:     partyID,
		Description: description,
	}
	if amount.Sign() >= 0 {
		bankLeg.Debit = amount
		counterLeg.Credit = amount
	} else {
		bankLeg.Credit = amount.Neg()
		counterLeg.Debit = amount.Neg()
	}
	move := &ledger.Move{Date: date}
	if err := st.ledger.CreateMove(move, []*ledger.MoveLine{bankLeg, counterLeg}); err != nil {
		return "", err
	}
	if err := st.ledger.PostMove(move.MoveID); err != nil {
		return "", err
	}
	return move.MoveID, nil
}

// postCounterpart posts a counterpart line to the ledger, runs the
// settlement engine over it and sweeps the touched lines. Returns the
// number of reconciliations made.
func (s *Service) postCounterpart(st *pass, counterpart *MoveLine, statementJournal *payment.Journal) (int, error) {
	moveID, err := s.postBankMove(st, statementJournal, counterpart.AccountID, counterpart.PartyID,
		counterpart.Amount, counterpart.Date, counterpart.Description)
	if err != nil {
		return 0, err
	}
	counterpart.MoveID = &moveID
	if err := st.statements.UpdateMoveLine(counterpart); err != nil {
		return 0, err
	}

	p, err := st.engine.OnCounterpartPosted(counterpart, statementJournal)
	if err != nil {
		return 0, err
	}
	var journal *payment.Journal
	if p != nil {
		journal, err = st.payments.GetJournal(p.JournalID)
		if err != nil {
			return 0, err
		}
	}
	return st.balancer.Sweep(moveID, p, journal, counterpart.AccountID)
}

type CounterpartRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// AddCounterpart manually attaches a payment counterpart to a statement
// line, defaulting account and amount from the payment's clearing
// configuration. Explicit account or amount override the defaults.
func (s *Service) AddCounterpart(lineID string, req CounterpartRequest) (*MoveLine, error) {
	var counterpart *MoveLine
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		st := newPass(tx)
		line, err := st.statements.GetLine(lineID)
		if err != nil {
			return err
		}
		statement, err := st.statements.GetStatement(line.StatementID)
		if err != nil {
			return err
		}
		journal, err := st.payments.GetJournal(statement.JournalID)
		if err != nil {
			return err
		}
		p, err := st.payments.GetPayment(req.PaymentID)
		if err != nil {
			return err
		}
		counterpart, err = st.builder.DefaultCounterpart(p, line, journal)
		if err != nil {
			return err
		}
		if req.AccountID != "" {
			counterpart.AccountID = req.AccountID
		}
		if req.Amount != "" {
			amount, err := decimal.NewFromString(req.Amount)
			if err != nil {
				return err
			}
			counterpart.Amount = amount
		}
		return st.statements.CreateMoveLine(counterpart)
	})
	if err != nil {
		return nil, err
	}
	return counterpart, nil
}

// PostCounterpart posts a manually attached counterpart line: the
// statement move is posted, the settlement engine decides the payment's
// fate and the balancer reconciles the zero-sum groups.
func (s *Service) PostCounterpart(counterpartID string) (*LineResult, error) {
	var result *LineResult
	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		st := newPass(tx)
		counterpart, err := st.statements.GetMoveLine(counterpartID)
		if err != nil {
			return err
		}
		line, err := st.statements.GetLine(counterpart.LineID)
		if err != nil {
			return err
		}
		statement, err := st.statements.GetStatement(line.StatementID)
		if err != nil {
			return err
		}
		journal, err := st.payments.GetJournal(statement.JournalID)
		if err != nil {
			return err
		}

		reconciled, err := s.postCounterpart(st, counterpart, journal)
		if err != nil {
			return err
		}

		line.MovesAmount = line.MovesAmount.Add(counterpart.Amount)
		if line.Unexplained().IsZero() && line.State == LineStateConfirmed {
			line.State = LineStatePosted
		}
		if err := st.statements.UpdateLine(line); err != nil {
			return err
		}

		result = &LineResult{
			LineID:       line.LineID,
			Matched:      true,
			Counterparts: 1,
			Reconciled:   reconciled,
			Unexplained:  line.Unexplained().String(),
			State:        line.State,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CopyCounterpart duplicates a counterpart line onto another statement
// line, stripping the payment binding.
func (s *Service) CopyCounterpart(counterpartID, targetLineID string) (*MoveLine, error) {
	src, err := s.db.GetMoveLine(counterpartID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.GetLine(targetLineID); err != nil {
		return nil, err
	}
	return s.db.CopyMoveLine(src, targetLineID)
}

func (s *Service) GetStatement(statementID string) (*Statement, []StatementLine, error) {
	statement, err := s.db.GetStatement(statementID)
	if err != nil {
		return nil, nil, err
	}
	lines, err := s.db.LinesForStatement(statementID)
	if err != nil {
		return nil, nil, err
	}
	return statement, lines, nil
}
