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
	"github.com/reconloop/recon-api/internal/party"
	"github.com/reconloop/recon-api/internal/payment"
	"github.com/reconloop/recon-api/internal/statement"
)

type serviceFixture struct {
	db        *gorm.DB
	ledger    *ledger.Database
	payments  *payment.Database
	lifecycle *payment.Lifecycle
	service   *statement.Service
	seq       int
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := database.NewTestDatabase()
	require.NoError(t, err)

	ledgerDB := ledger.NewDatabase(db)
	payments := payment.NewDatabase(db)

	for _, account := range []*ledger.Account{
		{AccountID: "ACC_bank", Code: "572", Currency: "EUR"},
		{AccountID: "ACC_receivable", Code: "430", Currency: "EUR", Reconcile: true},
		{AccountID: "ACC_clearing", Code: "431", Currency: "EUR", Reconcile: true},
		{AccountID: "ACC_revenue", Code: "700", Currency: "EUR"},
	} {
		require.NoError(t, ledgerDB.CreateAccount(account))
	}
	require.NoError(t, party.NewDatabase(db).CreateParty(&party.Party{
		PartyID:             "PTY_1",
		Name:                "Acme",
		ReceivableAccountID: "ACC_receivable",
	}))
	require.NoError(t, payments.CreateJournal(&payment.Journal{
		JournalID:     "JRN_plain",
		Currency:      "EUR",
		BankAccountID: "ACC_bank",
	}))
	clearing := "ACC_clearing"
	half := decimal.RequireFromString("0.5")
	require.NoError(t, payments.CreateJournal(&payment.Journal{
		JournalID:         "JRN_clearing",
		Currency:          "EUR",
		BankAccountID:     "ACC_bank",
		ClearingAccountID: &clearing,
		ClearingPercent:   &half,
	}))
	advanceHalf := half
	require.NoError(t, payments.CreateJournal(&payment.Journal{
		JournalID:         "JRN_advance",
		Currency:          "EUR",
		BankAccountID:     "ACC_bank",
		ClearingAccountID: &clearing,
		ClearingPercent:   &advanceHalf,
		Advance:           true,
	}))
	full := decimal.RequireFromString("1")
	require.NoError(t, payments.CreateJournal(&payment.Journal{
		JournalID:         "JRN_fullclear",
		Currency:          "EUR",
		BankAccountID:     "ACC_bank",
		ClearingAccountID: &clearing,
		ClearingPercent:   &full,
	}))

	return &serviceFixture{
		db:        db,
		ledger:    ledgerDB,
		payments:  payments,
		lifecycle: payment.NewLifecycle(payments, ledgerDB),
		service:   statement.NewService(db),
	}
}

// seedPayment creates a processing payment with a posted obligation line
// on the given journal, optionally bound to a group.
func (f *serviceFixture) seedPayment(t *testing.T, journalID, amount string, groupID *string) *payment.Payment {
	t.Helper()
	f.seq++
	value := decimal.RequireFromString(amount)
	partyID := "PTY_1"

	obligation := &ledger.MoveLine{AccountID: "ACC_receivable", PartyID: &partyID, Debit: value}
	contra := &ledger.MoveLine{AccountID: "ACC_revenue", Credit: value}
	move := &ledger.Move{Date: time.Now()}
	require.NoError(t, f.ledger.CreateMove(move, []*ledger.MoveLine{obligation, contra}))
	require.NoError(t, f.ledger.PostMove(move.MoveID))

	p := &payment.Payment{
		PaymentID: fmt.Sprintf("PAY_%d", f.seq),
		Kind:      payment.KindReceivable,
		Currency:  "EUR",
		Amount:    value,
		PartyID:   partyID,
		State:     payment.StateDraft,
		JournalID: journalID,
		GroupID:   groupID,
		LineID:    &obligation.LineID,
		Date:      time.Now(),
	}
	require.NoError(t, f.payments.CreatePayment(p))
	require.NoError(t, f.lifecycle.Submit(p))
	require.NoError(t, f.lifecycle.Process(p))
	return p
}

func (f *serviceFixture) statementWithLine(t *testing.T, journalID, amount string) (*statement.Statement, *statement.StatementLine) {
	t.Helper()
	st, err := f.service.CreateStatement(statement.StatementRequest{JournalID: journalID})
	require.NoError(t, err)
	line, err := f.service.AddLine(st.StatementID, statement.LineRequest{
		Amount:      amount,
		Description: "bank movement",
	})
	require.NoError(t, err)
	return st, line
}

func (f *serviceFixture) freshPayment(t *testing.T, paymentID string) *payment.Payment {
	t.Helper()
	p, err := f.payments.GetPayment(paymentID)
	require.NoError(t, err)
	return p
}

// A statement movement equal to a group's total tags the obligation
// lines directly and reconciles each against its statement counterpart
// leg, without touching payment state.
func TestConfirmMatchesGroupWithDirectCounterparts(t *testing.T) {
	f := newServiceFixture(t)
	group := &payment.Group{GroupID: "GRP_1", Kind: payment.KindReceivable, JournalID: "JRN_plain"}
	require.NoError(t, f.payments.CreateGroup(group))
	p1 := f.seedPayment(t, "JRN_plain", "100.00", &group.GroupID)
	p2 := f.seedPayment(t, "JRN_plain", "10.00", &group.GroupID)

	st, _ := f.statementWithLine(t, "JRN_plain", "110.00")
	results, err := f.service.Confirm(st.StatementID)
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.True(t, result.Matched)
	assert.Equal(t, group.GroupID, result.GroupID)
	assert.Equal(t, 2, result.Counterparts)
	assert.Equal(t, 2, result.Reconciled)
	assert.True(t, decimal.RequireFromString(result.Unexplained).IsZero())
	assert.Equal(t, statement.LineStatePosted, result.State)

	for _, p := range []*payment.Payment{p1, p2} {
		obligation, err := f.ledger.GetLine(*p.LineID)
		require.NoError(t, err)
		assert.True(t, obligation.Reconciled())
		// Direct tagging explains the movement without settling anything.
		assert.Equal(t, payment.StateProcessing, f.freshPayment(t, p.PaymentID).State)
	}
}

func TestConfirmLeavesUnmatchedLineForRetry(t *testing.T) {
	f := newServiceFixture(t)
	st, line := f.statementWithLine(t, "JRN_plain", "110.00")

	results, err := f.service.Confirm(st.StatementID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Matched)
	assert.Equal(t, statement.LineStateConfirmed, results[0].State)

	// A later pass picks the line up once a matching group exists.
	group := &payment.Group{GroupID: "GRP_late", Kind: payment.KindReceivable, JournalID: "JRN_plain"}
	require.NoError(t, f.payments.CreateGroup(group))
	f.seedPayment(t, "JRN_plain", "110.00", &group.GroupID)

	result, err := f.service.ReconcileLine(line.LineID)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, statement.LineStatePosted, result.State)
}

// Observing the pending remainder on the obligation account settles a
// clearing-routed payment: it succeeds, its clearing move is posted and
// the obligation nets to zero across the three receivable legs.
func TestPendingRemainderSettlesClearingPayment(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_clearing", "100.00", nil)
	_, err := f.lifecycle.CreateClearingMove(p, p.Date)
	require.NoError(t, err)

	st, line := f.statementWithLine(t, "JRN_clearing", "50.00")
	_, err = f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	counterpart, err := f.service.AddCounterpart(line.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
	})
	require.NoError(t, err)
	assert.Equal(t, "ACC_receivable", counterpart.AccountID)
	assert.True(t, counterpart.Amount.Equal(decimal.RequireFromString("50.00")), "default amount = %s", counterpart.Amount)

	result, err := f.service.PostCounterpart(counterpart.CounterpartID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reconciled)
	assert.True(t, decimal.RequireFromString(result.Unexplained).IsZero())
	assert.Equal(t, statement.LineStatePosted, result.State)

	settled := f.freshPayment(t, p.PaymentID)
	assert.Equal(t, payment.StateSucceeded, settled.State)

	require.NotNil(t, settled.ClearingMoveID)
	clearingMove, err := f.ledger.GetMove(*settled.ClearingMoveID)
	require.NoError(t, err)
	assert.Equal(t, ledger.MoveStatePosted, clearingMove.State)

	obligation, err := f.ledger.GetLine(*settled.LineID)
	require.NoError(t, err)
	assert.True(t, obligation.Reconciled())
}

// A bank reversal of the advancement amount on the clearing account
// fails the payment.
func TestAdvancementReversalFailsClearingPayment(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_clearing", "100.00", nil)
	_, err := f.lifecycle.CreateClearingMove(p, p.Date)
	require.NoError(t, err)

	st, line := f.statementWithLine(t, "JRN_clearing", "-50.00")
	_, err = f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	counterpart, err := f.service.AddCounterpart(line.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
		AccountID: "ACC_clearing",
		Amount:    "-50.00",
	})
	require.NoError(t, err)

	result, err := f.service.PostCounterpart(counterpart.CounterpartID)
	require.NoError(t, err)
	assert.Equal(t, statement.LineStatePosted, result.State)

	assert.Equal(t, payment.StateFailed, f.freshPayment(t, p.PaymentID).State)
}

// On an advance journal the bank pays the full amount up front, so
// observing it on a non-clearing account settles the payment.
func TestAdvanceJournalFullObservationSucceeds(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_advance", "100.00", nil)

	st, line := f.statementWithLine(t, "JRN_advance", "100.00")
	_, err := f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	counterpart, err := f.service.AddCounterpart(line.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
		AccountID: "ACC_receivable",
		Amount:    "100.00",
	})
	require.NoError(t, err)

	result, err := f.service.PostCounterpart(counterpart.CounterpartID)
	require.NoError(t, err)
	assert.Equal(t, statement.LineStatePosted, result.State)

	settled := f.freshPayment(t, p.PaymentID)
	assert.Equal(t, payment.StateSucceeded, settled.State)

	require.NotNil(t, settled.ClearingMoveID)
	clearingMove, err := f.ledger.GetMove(*settled.ClearingMoveID)
	require.NoError(t, err)
	assert.Equal(t, ledger.MoveStatePosted, clearingMove.State)
}

// An advance journal expects reversal-shaped flows, so observing one
// must not fail the payment.
func TestAdvanceJournalIgnoresAdvancementReversal(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_advance", "100.00", nil)
	_, err := f.lifecycle.CreateClearingMove(p, p.Date)
	require.NoError(t, err)

	st, line := f.statementWithLine(t, "JRN_advance", "-50.00")
	_, err = f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	counterpart, err := f.service.AddCounterpart(line.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
		AccountID: "ACC_clearing",
		Amount:    "-50.00",
	})
	require.NoError(t, err)

	_, err = f.service.PostCounterpart(counterpart.CounterpartID)
	require.NoError(t, err)

	assert.Equal(t, payment.StateProcessing, f.freshPayment(t, p.PaymentID).State)
}

// When an advance-journal payment settles through the shared clearing
// account, the sweep pulls in that payment's other posted counterpart
// moves so the offsetting clearing legs reconcile across statement
// lines.
func TestAdvanceJournalSweepsSharedClearingAccount(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_advance", "100.00", nil)

	st, err := f.service.CreateStatement(statement.StatementRequest{JournalID: "JRN_advance"})
	require.NoError(t, err)
	inflow, err := f.service.AddLine(st.StatementID, statement.LineRequest{Amount: "100.00"})
	require.NoError(t, err)
	outflow, err := f.service.AddLine(st.StatementID, statement.LineRequest{Amount: "-100.00"})
	require.NoError(t, err)
	_, err = f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	first, err := f.service.AddCounterpart(inflow.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
		AccountID: "ACC_clearing",
		Amount:    "100.00",
	})
	require.NoError(t, err)
	result, err := f.service.PostCounterpart(first.CounterpartID)
	require.NoError(t, err)
	// A lone clearing leg has nothing to offset yet.
	assert.Equal(t, 0, result.Reconciled)

	second, err := f.service.AddCounterpart(outflow.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
		AccountID: "ACC_clearing",
		Amount:    "-100.00",
	})
	require.NoError(t, err)
	result, err = f.service.PostCounterpart(second.CounterpartID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reconciled)

	// Both clearing legs are closed out together; the full-amount
	// reversal shape does not fail an advance-journal payment.
	posted, err := f.service.DB().GetMoveLine(first.CounterpartID)
	require.NoError(t, err)
	require.NotNil(t, posted.MoveID)
	firstLines, err := f.ledger.GetMoveLines(*posted.MoveID)
	require.NoError(t, err)
	for i := range firstLines {
		if firstLines[i].AccountID == "ACC_clearing" {
			assert.True(t, firstLines[i].Reconciled())
		}
	}
	assert.Equal(t, payment.StateProcessing, f.freshPayment(t, p.PaymentID).State)
}

// At percent 1 the pending remainder is zero; a zero-amount leg on the
// obligation account must not settle the payment.
func TestFullPercentClearingIgnoresZeroAmountLeg(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_fullclear", "100.00", nil)
	_, err := f.lifecycle.CreateClearingMove(p, p.Date)
	require.NoError(t, err)

	st, line := f.statementWithLine(t, "JRN_fullclear", "10.00")
	_, err = f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	counterpart, err := f.service.AddCounterpart(line.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
		AccountID: "ACC_receivable",
		Amount:    "0",
	})
	require.NoError(t, err)

	_, err = f.service.PostCounterpart(counterpart.CounterpartID)
	require.NoError(t, err)

	assert.Equal(t, payment.StateProcessing, f.freshPayment(t, p.PaymentID).State)
}

// A reversal of the full payment amount fails a payment on a plain
// journal.
func TestFullReversalFailsPayment(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_plain", "100.00", nil)

	st, line := f.statementWithLine(t, "JRN_plain", "-100.00")
	_, err := f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	counterpart, err := f.service.AddCounterpart(line.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
		Amount:    "-100.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "ACC_receivable", counterpart.AccountID)

	_, err = f.service.PostCounterpart(counterpart.CounterpartID)
	require.NoError(t, err)

	assert.Equal(t, payment.StateFailed, f.freshPayment(t, p.PaymentID).State)
}

func TestCopyCounterpartStripsPaymentBinding(t *testing.T) {
	f := newServiceFixture(t)
	p := f.seedPayment(t, "JRN_plain", "100.00", nil)

	_, line := f.statementWithLine(t, "JRN_plain", "100.00")
	st2, err := f.service.CreateStatement(statement.StatementRequest{JournalID: "JRN_plain"})
	require.NoError(t, err)
	target, err := f.service.AddLine(st2.StatementID, statement.LineRequest{Amount: "100.00"})
	require.NoError(t, err)

	counterpart, err := f.service.AddCounterpart(line.LineID, statement.CounterpartRequest{
		PaymentID: p.PaymentID,
	})
	require.NoError(t, err)

	copied, err := f.service.CopyCounterpart(counterpart.CounterpartID, target.LineID)
	require.NoError(t, err)
	assert.Equal(t, target.LineID, copied.LineID)
	assert.Equal(t, counterpart.AccountID, copied.AccountID)
	assert.True(t, copied.Amount.Equal(counterpart.Amount))
	assert.Nil(t, copied.PaymentID)
	assert.Nil(t, copied.MoveID)
}

func TestStatementGuards(t *testing.T) {
	f := newServiceFixture(t)
	st, line := f.statementWithLine(t, "JRN_plain", "10.00")

	// Draft lines cannot be reconciled.
	_, err := f.service.ReconcileLine(line.LineID)
	assert.ErrorIs(t, err, statement.ErrLineNotConfirmed)

	_, err = f.service.Confirm(st.StatementID)
	require.NoError(t, err)

	// A confirmed statement takes no new lines and no second confirm.
	_, err = f.service.AddLine(st.StatementID, statement.LineRequest{Amount: "5.00"})
	assert.ErrorIs(t, err, statement.ErrStatementNotDraft)
	_, err = f.service.Confirm(st.StatementID)
	assert.ErrorIs(t, err, statement.ErrStatementNotDraft)
}

func TestZeroResidualLinePostsWithoutMatching(t *testing.T) {
	f := newServiceFixture(t)
	st, err := f.service.CreateStatement(statement.StatementRequest{JournalID: "JRN_plain"})
	require.NoError(t, err)
	_, err = f.service.AddLine(st.StatementID, statement.LineRequest{Amount: "0"})
	require.NoError(t, err)

	results, err := f.service.Confirm(st.StatementID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Matched)
	assert.Equal(t, statement.LineStatePosted, results[0].State)
}
