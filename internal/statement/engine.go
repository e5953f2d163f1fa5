package statement

import (
	"github.com/rs/zerolog/log"

	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/payment"
)

// Engine decides the fate of a payment from a posted counterpart line.
// A clearing-routed payment sits in PROCESSING until the bank is
// observed either moving the pending remainder (success) or reversing
// the full or advancement amount (failure).
type Engine struct {
	payments  *payment.Database
	ledger    *ledger.Database
	lifecycle *payment.Lifecycle
}

func NewEngine(payments *payment.Database, ledgerDB *ledger.Database, lifecycle *payment.Lifecycle) *Engine {
	return &Engine{
		payments:  payments,
		ledger:    ledgerDB,
		lifecycle: lifecycle,
	}
}

// OnCounterpartPosted runs the settlement decision table for a posted
// counterpart line bound to a payment, then posts the payment's
// clearing move if one exists and is still draft. Rule order matters:
// the failure rule is checked first because both rules can structurally
// match when the clearing percent is 1 and the pending amount is zero.
// The fail and succeed transitions are idempotent, guarded by payment
// state.
func (e *Engine) OnCounterpartPosted(counterpart *MoveLine, statementJournal *payment.Journal) (*payment.Payment, error) {
	if counterpart.PaymentID == nil {
		return nil, nil
	}

	p, err := e.payments.GetPayment(*counterpart.PaymentID)
	if err != nil {
		return nil, err
	}
	journal, err := e.payments.GetJournal(p.JournalID)
	if err != nil {
		return nil, err
	}

	converted, err := e.ledger.Convert(p.Amount, p.Currency, statementJournal.Currency, p.Date)
	if err != nil {
		return nil, err
	}
	paymentAmount := converted.Mul(payment.SignForKind(p.Kind))
	split, hasSplit := payment.ClearingSplit(paymentAmount, journal)

	var obligationAccount string
	if p.LineID != nil {
		obligation, err := e.ledger.GetLine(*p.LineID)
		if err != nil {
			return nil, err
		}
		obligationAccount = obligation.AccountID
	}

	posted := counterpart.Amount
	logger := log.With().
		Str("component", "settlement_engine").
		Str("payment_id", p.PaymentID).
		Str("posted_amount", posted.String()).
		Str("posted_account", counterpart.AccountID).
		Logger()

	reversedFull := posted.Equal(paymentAmount.Neg())
	reversedAdvancement := hasSplit && posted.Equal(split.Advancement.Neg())
	// At percent 1 the pending remainder is zero and a zero-amount leg
	// on the obligation account must not read as a settlement.
	pendingObserved := hasSplit && !split.Pending.IsZero() && obligationAccount != "" &&
		counterpart.AccountID == obligationAccount && posted.Equal(split.Pending)
	advanceSettled := journal.Advance && posted.Equal(paymentAmount) &&
		(!journal.HasClearing() || counterpart.AccountID != *journal.ClearingAccountID)

	switch {
	case (p.State == payment.StateProcessing || p.State == payment.StateSucceeded) &&
		!journal.Advance && (reversedFull || reversedAdvancement):
		logger.Info().Msg("observed reversal, failing payment")
		if err := e.lifecycle.Fail(p); err != nil {
			return nil, err
		}
	case (p.State == payment.StateProcessing || p.State == payment.StateFailed) &&
		(pendingObserved || advanceSettled):
		logger.Info().Msg("observed settlement, succeeding payment")
		if err := e.lifecycle.Succeed(p); err != nil {
			return nil, err
		}
	}

	if p.ClearingMoveID != nil {
		move, err := e.ledger.GetMove(*p.ClearingMoveID)
		if err != nil {
			return nil, err
		}
		if move.State != ledger.MoveStatePosted {
			if err := e.ledger.PostMove(move.MoveID); err != nil {
				return nil, err
			}
			logger.Debug().Str("move_id", move.MoveID).Msg("posted clearing move")
		}
	}
	return p, nil
}
