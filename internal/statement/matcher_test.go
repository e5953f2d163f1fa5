package statement_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/reconloop/recon-api/internal/database"
	"github.com/reconloop/recon-api/internal/ledger"
	"github.com/reconloop/recon-api/internal/payment"
	"github.com/reconloop/recon-api/internal/statement"
)

type matcherFixture struct {
	db       *gorm.DB
	ledger   *ledger.Database
	payments *payment.Database
	matcher  *statement.Matcher
	seq      int
}

func newMatcherFixture(t *testing.T) *matcherFixture {
	t.Helper()
	db, err := database.NewTestDatabase()
	require.NoError(t, err)

	ledgerDB := ledger.NewDatabase(db)
	payments := payment.NewDatabase(db)

	for _, account := range []*ledger.Account{
		{AccountID: "ACC_bank", Code: "572", Currency: "EUR"},
		{AccountID: "ACC_receivable", Code: "430", Currency: "EUR", Reconcile: true},
		{AccountID: "ACC_payable", Code: "410", Currency: "EUR", Reconcile: true},
		{AccountID: "ACC_revenue", Code: "700", Currency: "EUR"},
	} {
		require.NoError(t, ledgerDB.CreateAccount(account))
	}
	require.NoError(t, payments.CreateJournal(&payment.Journal{
		JournalID:     "JRN_1",
		Currency:      "EUR",
		BankAccountID: "ACC_bank",
	}))

	return &matcherFixture{
		db:       db,
		ledger:   ledgerDB,
		payments: payments,
		matcher:  statement.NewMatcher(payments, ledgerDB),
	}
}

// seedGroup creates a receivable group whose member payments carry
// posted obligation lines for the given amounts.
func (f *matcherFixture) seedGroup(t *testing.T, amounts ...string) (*payment.Group, []*ledger.MoveLine) {
	t.Helper()
	f.seq++
	group := &payment.Group{
		GroupID:   fmt.Sprintf("GRP_%d", f.seq),
		Kind:      payment.KindReceivable,
		JournalID: "JRN_1",
	}
	require.NoError(t, f.payments.CreateGroup(group))

	partyID := "PTY_1"
	var obligations []*ledger.MoveLine
	for i, raw := range amounts {
		amount := decimal.RequireFromString(raw)
		obligation := &ledger.MoveLine{AccountID: "ACC_receivable", PartyID: &partyID, Debit: amount}
		contra := &ledger.MoveLine{AccountID: "ACC_revenue", Credit: amount}
		move := &ledger.Move{Date: time.Now()}
		require.NoError(t, f.ledger.CreateMove(move, []*ledger.MoveLine{obligation, contra}))
		require.NoError(t, f.ledger.PostMove(move.MoveID))
		obligations = append(obligations, obligation)

		require.NoError(t, f.payments.CreatePayment(&payment.Payment{
			PaymentID: fmt.Sprintf("PAY_%d_%d", f.seq, i),
			Kind:      payment.KindReceivable,
			Currency:  "EUR",
			Amount:    amount,
			PartyID:   partyID,
			State:     payment.StateProcessing,
			JournalID: "JRN_1",
			GroupID:   &group.GroupID,
			LineID:    &obligation.LineID,
			Date:      time.Now(),
		}))
	}
	return group, obligations
}

func TestFindGroupExactTotal(t *testing.T) {
	f := newMatcherFixture(t)
	group, _ := f.seedGroup(t, "100.00", "10.00")

	got, payments, err := f.matcher.FindGroup(decimal.RequireFromString("110.00"), "EUR")
	require.NoError(t, err)
	assert.Equal(t, group.GroupID, got.GroupID)
	assert.Len(t, payments, 2)
}

func TestFindGroupRejectsNearMiss(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedGroup(t, "100.00")

	// Matching is exact to the last decimal place, never tolerance-based.
	for _, amount := range []string{"100.01", "99.99", "100.001"} {
		_, _, err := f.matcher.FindGroup(decimal.RequireFromString(amount), "EUR")
		assert.ErrorIs(t, err, statement.ErrNoMatch, "amount %s", amount)
	}
}

func TestFindGroupZeroAmount(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedGroup(t, "0")

	_, _, err := f.matcher.FindGroup(decimal.Zero, "EUR")
	assert.ErrorIs(t, err, statement.ErrNoMatch)
}

func TestFindGroupKindFromSign(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedGroup(t, "100.00")

	// A negative statement amount looks for payable groups; the seeded
	// group is receivable.
	_, _, err := f.matcher.FindGroup(decimal.RequireFromString("-100.00"), "EUR")
	assert.ErrorIs(t, err, statement.ErrNoMatch)
}

func TestFindGroupCurrencyFilter(t *testing.T) {
	f := newMatcherFixture(t)
	f.seedGroup(t, "100.00")

	_, _, err := f.matcher.FindGroup(decimal.RequireFromString("100.00"), "USD")
	assert.ErrorIs(t, err, statement.ErrNoMatch)
}

func TestFindGroupSkipsReconciledObligations(t *testing.T) {
	f := newMatcherFixture(t)
	claimed, obligations := f.seedGroup(t, "60.00", "40.00")
	fresh, _ := f.seedGroup(t, "100.00")

	// Reconcile one obligation of the first group; the whole group
	// becomes ineligible and the second one wins.
	counter := &ledger.MoveLine{AccountID: "ACC_receivable", Credit: decimal.RequireFromString("60.00")}
	bank := &ledger.MoveLine{AccountID: "ACC_bank", Debit: decimal.RequireFromString("60.00")}
	move := &ledger.Move{Date: time.Now()}
	require.NoError(t, f.ledger.CreateMove(move, []*ledger.MoveLine{counter, bank}))
	require.NoError(t, f.ledger.PostMove(move.MoveID))
	_, err := f.ledger.ReconcileLines([]*ledger.MoveLine{obligations[0], counter})
	require.NoError(t, err)

	got, _, err := f.matcher.FindGroup(decimal.RequireFromString("100.00"), "EUR")
	require.NoError(t, err)
	assert.NotEqual(t, claimed.GroupID, got.GroupID)
	assert.Equal(t, fresh.GroupID, got.GroupID)
}

func TestFindGroupFirstEligibleWins(t *testing.T) {
	f := newMatcherFixture(t)
	first, _ := f.seedGroup(t, "100.00")
	f.seedGroup(t, "100.00")

	got, _, err := f.matcher.FindGroup(decimal.RequireFromString("100.00"), "EUR")
	require.NoError(t, err)
	assert.Equal(t, first.GroupID, got.GroupID)
}
