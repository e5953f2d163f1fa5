package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/rs/zerolog/log"
)

// ErrInvalidTransition is returned when a lifecycle call is made on a
// payment whose state is not compatible with the transition.
var ErrInvalidTransition = errors.New("payment state does not allow transition")

// Lifecycle drives the guarded state transitions of payments. Each
// transition is a no-op when the payment is already in the target state,
// which keeps settlement decisions idempotent.
type Lifecycle struct {
	payments *Database
	ledger   *ledger.Database
}

func NewLifecycle(payments *Database, ledgerDB *ledger.Database) *Lifecycle {
	return &Lifecycle{
		payments: payments,
		ledger:   ledgerDB,
	}
}

// Submit moves a draft payment into the approval pipeline.
func (l *Lifecycle) Submit(p *Payment) error {
	if p.State == StateSubmitted {
		return nil
	}
	if p.State != StateDraft {
		return ErrInvalidTransition
	}
	p.State = StateSubmitted
	return l.payments.UpdatePayment(p)
}

// Process marks a submitted payment as in flight with the bank.
func (l *Lifecycle) Process(p *Payment) error {
	if p.State == StateProcessing {
		return nil
	}
	if p.State != StateSubmitted {
		return ErrInvalidTransition
	}
	p.State = StateProcessing
	return l.payments.UpdatePayment(p)
}

// Succeed marks a payment as settled. A clearing-routed payment gets its
// clearing move created here, in draft, if it does not have one yet.
// Allowed from PROCESSING and from FAILED (a payment observed to settle
// after a bounce recovers); calling it on an already succeeded payment
// is a no-op.
func (l *Lifecycle) Succeed(p *Payment) error {
	if p.State == StateSucceeded {
		return nil
	}
	if p.State != StateProcessing && p.State != StateFailed {
		return ErrInvalidTransition
	}
	p.State = StateSucceeded
	if err := l.payments.UpdatePayment(p); err != nil {
		return err
	}

	journal, err := l.payments.GetJournal(p.JournalID)
	if err != nil {
		return err
	}
	if journal.HasClearing() && p.ClearingMoveID == nil && p.LineID != nil {
		if _, err := l.CreateClearingMove(p, p.Date); err != nil {
			return err
		}
	}

	log.Info().
		Str("payment_id", p.PaymentID).
		Str("state", p.State).
		Msg("payment succeeded")
	return nil
}

// Fail marks a payment as bounced. Allowed from PROCESSING and from
// SUCCEEDED (a settlement later reversed by the bank); a no-op on an
// already failed payment.
func (l *Lifecycle) Fail(p *Payment) error {
	if p.State == StateFailed {
		return nil
	}
	if p.State != StateProcessing && p.State != StateSucceeded {
		return ErrInvalidTransition
	}
	p.State = StateFailed
	if err := l.payments.UpdatePayment(p); err != nil {
		return err
	}

	log.Info().
		Str("payment_id", p.PaymentID).
		Str("state", p.State).
		Msg("payment failed")
	return nil
}

// CreateClearingMove builds the draft move that routes the payment's
// advancement portion from the obligation account to the journal's
// clearing account. Line amounts are scaled by the clearing percent, so
// a partially cleared payment advances only that portion.
func (l *Lifecycle) CreateClearingMove(p *Payment, date time.Time) (*ledger.Move, error) {
	journal, err := l.payments.GetJournal(p.JournalID)
	if err != nil {
		return nil, err
	}
	if !journal.HasClearing() {
		return nil, fmt.Errorf("journal %s has no clearing account", journal.JournalID)
	}
	if p.ClearingMoveID != nil {
		return l.ledger.GetMove(*p.ClearingMoveID)
	}
	if p.LineID == nil {
		return nil, fmt.Errorf("payment %s has no obligation line to clear", p.PaymentID)
	}

	obligation, err := l.ledger.GetLine(*p.LineID)
	if err != nil {
		return nil, err
	}

	amount, err := l.ledger.Convert(p.Amount, p.Currency, journal.Currency, date)
	if err != nil {
		return nil, err
	}
	advanced := amount.Mul(journal.Percent())

	// The clearing move offsets the obligation line and parks the
	// advanced portion on the clearing account until the bank confirms.
	obligationLeg := &ledger.MoveLine{
		AccountID:   obligation.AccountID,
		PartyID:     obligation.PartyID,
		Description: p.Description,
	}
	clearingLeg := &ledger.MoveLine{
		AccountID:   *journal.ClearingAccountID,
		PartyID:     obligation.PartyID,
		Description: p.Description,
	}
	if p.Kind == KindPayable {
		obligationLeg.Debit = advanced
		clearingLeg.Credit = advanced
	} else {
		obligationLeg.Credit = advanced
		clearingLeg.Debit = advanced
	}

	move := &ledger.Move{
		Date:   date,
		Origin: p.PaymentID,
	}
	if err := l.ledger.CreateMove(move, []*ledger.MoveLine{obligationLeg, clearingLeg}); err != nil {
		return nil, err
	}

	p.ClearingMoveID = &move.MoveID
	if err := l.payments.UpdatePayment(p); err != nil {
		return nil, err
	}

	log.Debug().
		Str("payment_id", p.PaymentID).
		Str("move_id", move.MoveID).
		Str("advanced", advanced.String()).
		Msg("created clearing move")
	return move, nil
}
