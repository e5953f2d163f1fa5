package statement

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/payment"
)

// Balancer sweeps the ledger lines implicated by a pass and reconciles
// the subsets that net to zero. A reconciled set must itself balance,
// mirroring double-entry bookkeeping; groups that do not sum to zero
// are left alone for a future pass.
type Balancer struct {
	ledger     *ledger.Database
	statements *Database
}

func NewBalancer(ledgerDB *ledger.Database, statements *Database) *Balancer {
	return &Balancer{
		ledger:     ledgerDB,
		statements: statements,
	}
}

// Sweep gathers the posted move's lines, the payment's obligation line,
// and the clearing move's lines when one exists. For an advance journal
// settling through the shared clearing account it additionally pulls in
// every other posted counterpart move for the same payment on that
// account. Lines are grouped by (account, party) and each zero-summing
// group of reconcilable, unreconciled lines is reconciled in one atomic
// step. Returns the number of reconciliations made.
func (b *Balancer) Sweep(moveID string, p *payment.Payment, journal *payment.Journal, postedAccountID string) (int, error) {
	lines, err := b.ledger.GetMoveLines(moveID)
	if err != nil {
		return 0, err
	}
	pool := make([]ledger.MoveLine, 0, len(lines)+4)
	pool = append(pool, lines...)

	if p != nil {
		if p.LineID != nil {
			obligation, err := b.ledger.GetLine(*p.LineID)
			if err != nil {
				return 0, err
			}
			pool = append(pool, *obligation)
		}
		switch {
		case p.ClearingMoveID != nil:
			clearingLines, err := b.ledger.GetMoveLines(*p.ClearingMoveID)
			if err != nil {
				return 0, err
			}
			pool = append(pool, clearingLines...)
		case journal != nil && journal.HasClearing() && journal.Advance &&
			postedAccountID == *journal.ClearingAccountID:
			counterparts, err := b.statements.PostedCounterparts(p.PaymentID, postedAccountID)
			if err != nil {
				return 0, err
			}
			for i := range counterparts {
				if counterparts[i].MoveID == nil || *counterparts[i].MoveID == moveID {
					continue
				}
				moveLines, err := b.ledger.GetMoveLines(*counterparts[i].MoveID)
				if err != nil {
					return 0, err
				}
				pool = append(pool, moveLines...)
			}
		}
	}

	return b.reconcileZeroSums(pool)
}

type groupKey struct {
	accountID string
	partyID   string
}

func (b *Balancer) reconcileZeroSums(pool []ledger.MoveLine) (int, error) {
	accounts := make(map[string]*ledger.Account)
	seen := make(map[string]bool)
	groups := make(map[groupKey][]*ledger.MoveLine)
	var order []groupKey

	for i := range pool {
		line := &pool[i]
		if seen[line.LineID] {
			continue
		}
		seen[line.LineID] = true
		if line.Reconciled() {
			continue
		}
		account, ok := accounts[line.AccountID]
		if !ok {
			var err error
			account, err = b.ledger.GetAccount(line.AccountID)
			if err != nil {
				return 0, err
			}
			accounts[line.AccountID] = account
		}
		if !account.Reconcile {
			continue
		}
		key := groupKey{accountID: line.AccountID}
		if line.PartyID != nil {
			key.partyID = *line.PartyID
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], line)
	}

	reconciled := 0
	for _, key := range order {
		group := groups[key]
		sum := decimal.Zero
		for _, line := range group {
			sum = sum.Add(line.Balance())
		}
		if !sum.IsZero() {
			continue
		}
		reconciliationID, err := b.ledger.ReconcileLines(group)
		if err != nil {
			return reconciled, err
		}
		reconciled++
		log.Debug().
			Str("component", "balancer").
			Str("account_id", key.accountID).
			Str("party_id", key.partyID).
			Str("reconciliation_id", reconciliationID).
			Int("lines", len(group)).
			Msg("reconciled zero-sum group")
	}
	return reconciled, nil
}
