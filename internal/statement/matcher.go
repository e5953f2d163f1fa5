package statement

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/payment"
)

var (
	// ErrNoMatch means no payment group explains the residual amount.
	// It is a normal outcome of a pass, not a failure: the statement
	// line stays unexplained and is retried later.
	ErrNoMatch = errors.New("no payment group matches the unexplained amount")
	// ErrGroupClaimed means a concurrent pass claimed the selected
	// group first. The losing pass treats it as no match.
	ErrGroupClaimed = errors.New("payment group already claimed")
)

// Matcher locates the payment group whose aggregate amount exactly
// explains an unexplained statement amount.
type Matcher struct {
	payments *payment.Database
	ledger   *ledger.Database
}

func NewMatcher(payments *payment.Database, ledgerDB *ledger.Database) *Matcher {
	return &Matcher{
		payments: payments,
		ledger:   ledgerDB,
	}
}

// FindGroup searches for a payment group matching the unexplained
// amount in the given statement currency. The obligation kind is
// derived from the amount's sign; a zero amount short-circuits to no
// match. Candidates are tried in group insertion order and the first
// fully eligible one wins: a group is rejected whole as soon as any
// member payment's obligation line already carries a reconciliation.
//
// Eligibility is evaluated against the same transaction the caller
// later writes under, so two concurrent passes cannot both claim a
// group: the loser sees the claimed line and rejects the candidate.
func (m *Matcher) FindGroup(unexplained decimal.Decimal, currency string) (*payment.Group, []payment.Payment, error) {
	kind, ok := payment.ClassifyAmount(unexplained)
	if !ok {
		return nil, nil, ErrNoMatch
	}

	logger := log.With().
		Str("component", "matcher").
		Str("kind", kind).
		Str("amount", unexplained.String()).
		Logger()

	groups, err := m.payments.SearchGroups(kind, currency, unexplained.Abs())
	if err != nil {
		return nil, nil, err
	}
	logger.Debug().Int("candidates", len(groups)).Msg("searched candidate groups")

	for i := range groups {
		group := &groups[i]
		payments, err := m.payments.GroupPayments(group.GroupID)
		if err != nil {
			return nil, nil, err
		}
		if len(payments) == 0 {
			continue
		}
		eligible := true
		for j := range payments {
			if payments[j].LineID == nil {
				continue
			}
			line, err := m.ledger.GetLine(*payments[j].LineID)
			if err != nil {
				return nil, nil, err
			}
			if line.Reconciled() {
				eligible = false
				break
			}
		}
		if eligible {
			logger.Debug().
				Str("group_id", group.GroupID).
				Int("payments", len(payments)).
				Msg("matched payment group")
			return group, payments, nil
		}
	}
	return nil, nil, ErrNoMatch
}
