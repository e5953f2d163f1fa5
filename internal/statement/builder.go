package statement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/party"
	"github.com/reconloop/recon-api/internal/payment"
)

// ErrNoObligationLine is returned when a clearing default needs the
// payment's obligation line and the payment has none.
var ErrNoObligationLine = errors.New("payment has no obligation line")

// Counterpart is the planned explanation of one matched payment: either
// an existing ledger line tagged directly, or a synthesized counterpart
// line to be posted.
type Counterpart struct {
	Payment payment.Payment
	Direct  *ledger.MoveLine
	Line    *MoveLine
}

// Builder turns matched payments into counterpart lines. It is the only
// step of a pass that creates ledger state.
type Builder struct {
	payments   *payment.Database
	parties    *party.Database
	ledger     *ledger.Database
	statements *Database
}

func NewBuilder(payments *payment.Database, parties *party.Database, ledgerDB *ledger.Database, statements *Database) *Builder {
	return &Builder{
		payments:   payments,
		parties:    parties,
		ledger:     ledgerDB,
		statements: statements,
	}
}

// Build plans a counterpart for each payment of a matched group. A
// payment whose existing obligation line balances exactly to the
// payment amount keeps that line as the direct counterpart; otherwise a
// new counterpart line is synthesized. Field derivations run in a fixed
// order for every payment: account, party, amount, date, description.
//
// Returns ErrGroupClaimed when any obligation line was reconciled since
// the match, which is how a lost concurrent claim surfaces.
func (b *Builder) Build(line *StatementLine, payments []payment.Payment) ([]Counterpart, error) {
	counterparts := make([]Counterpart, 0, len(payments))
	date := time.Date(line.Date.Year(), line.Date.Month(), line.Date.Day(), 0, 0, 0, 0, time.UTC)

	for i := range payments {
		p := payments[i]
		var accountID string
		if p.LineID != nil {
			obligation, err := b.ledger.GetLine(*p.LineID)
			if err != nil {
				return nil, err
			}
			if obligation.Reconciled() {
				return nil, ErrGroupClaimed
			}
			if obligation.Balance().Abs().Equal(p.Amount) {
				obligation.StatementLineID = &line.LineID
				if err := b.ledger.SaveLine(obligation); err != nil {
					return nil, err
				}
				log.Debug().
					Str("payment_id", p.PaymentID).
					Str("ledger_line_id", obligation.LineID).
					Msg("tagged existing line as direct counterpart")
				counterparts = append(counterparts, Counterpart{Payment: p, Direct: obligation})
				continue
			}
			accountID = obligation.AccountID
		} else {
			var err error
			accountID, err = b.parties.DefaultAccount(p.PartyID, p.Kind)
			if err != nil {
				return nil, err
			}
		}

		partyID := p.PartyID
		moveLine := &MoveLine{
			CounterpartID: "CPT_" + uuid.New().String(),
			LineID:        line.LineID,
			AccountID:     accountID,
			PartyID:       &partyID,
			Amount:        p.Amount.Mul(payment.SignForKind(p.Kind)),
			Date:          date,
			Description:   p.Description,
			PaymentID:     &p.PaymentID,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if err := b.statements.CreateMoveLine(moveLine); err != nil {
			return nil, err
		}
		counterparts = append(counterparts, Counterpart{Payment: p, Line: moveLine})
	}
	return counterparts, nil
}

// DefaultCounterpart derives the account and amount for a manually
// attached payment counterpart, clearing-aware: before the clearing
// move exists the default is the advancement leg on the clearing
// account; once it exists, the pending remainder against the obligation
// account. Without clearing configuration the full payment amount goes
// against the obligation account. The caller may override any field
// before posting.
func (b *Builder) DefaultCounterpart(p *payment.Payment, line *StatementLine, statementJournal *payment.Journal) (*MoveLine, error) {
	journal, err := b.payments.GetJournal(p.JournalID)
	if err != nil {
		return nil, err
	}

	amount, err := b.ledger.Convert(p.Amount, p.Currency, statementJournal.Currency, p.Date)
	if err != nil {
		return nil, err
	}

	var accountID string
	if journal.HasClearing() {
		percent := journal.Percent()
		if percent.LessThan(decimal.NewFromInt(1)) && p.ClearingMoveID != nil {
			// Advancement already routed; default to the pending
			// remainder on the obligation account.
			if p.LineID == nil {
				return nil, ErrNoObligationLine
			}
			obligation, err := b.ledger.GetLine(*p.LineID)
			if err != nil {
				return nil, err
			}
			accountID = obligation.AccountID
			amount = amount.Sub(amount.Mul(percent))
		} else {
			accountID = *journal.ClearingAccountID
			amount = amount.Mul(percent)
		}
	} else if p.LineID != nil {
		obligation, err := b.ledger.GetLine(*p.LineID)
		if err != nil {
			return nil, err
		}
		accountID = obligation.AccountID
	} else {
		accountID, err = b.parties.DefaultAccount(p.PartyID, p.Kind)
		if err != nil {
			return nil, err
		}
	}

	amount = amount.Mul(payment.SignForKind(p.Kind))
	partyID := p.PartyID
	return &MoveLine{
		CounterpartID: "CPT_" + uuid.New().String(),
		LineID:        line.LineID,
		AccountID:     accountID,
		PartyID:       &partyID,
		Amount:        amount,
		Date:          line.Date,
		Description:   p.Description,
		PaymentID:     &p.PaymentID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}, nil
}
