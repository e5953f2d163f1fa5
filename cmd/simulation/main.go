package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reconloop/recon-api/internal/auth"
)

const serverAddress = "http://localhost:8080"

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes min, max, mean and median durations
func (rs *routeStats) calculate() (min, max, mean, median time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})
	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]
	return min, max, mean, median
}

type client struct {
	http  *http.Client
	token string
	stats map[string]*routeStats
}

func newClient() *client {
	return &client{
		http:  &http.Client{Timeout: 10 * time.Second},
		stats: make(map[string]*routeStats),
	}
}

// call posts a JSON body and decodes the data envelope into out.
func (c *client) call(route, method, path string, body interface{}, out interface{}) error {
	stats, ok := c.stats[route]
	if !ok {
		stats = &routeStats{name: route}
		c.stats[route] = stats
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, serverAddress+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	stats.addDuration(time.Since(start))
	if err != nil {
		stats.failures++
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		stats.failures++
		return err
	}
	if resp.StatusCode >= 400 {
		stats.failures++
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (c *client) authenticate() error {
	var token struct {
		Token string `json:"jwt_token"`
	}
	err := c.call("auth", "POST", "/api/v1/auth/token", map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}, &token)
	if err != nil {
		return err
	}
	c.token = token.Token
	return nil
}

func (c *client) createAccount(code, name string, reconcile bool) (string, error) {
	var account struct {
		AccountID string `json:"account_id"`
	}
	err := c.call("accounts", "POST", "/api/v1/ledger/accounts", map[string]interface{}{
		"code":      code,
		"name":      name,
		"currency":  "EUR",
		"reconcile": reconcile,
	}, &account)
	return account.AccountID, err
}

func main() {
	log.Info().Msg("starting reconciliation simulation")

	c := newClient()
	if err := c.authenticate(); err != nil {
		log.Fatal().Err(err).Msg("authentication failed")
	}

	// Chart of accounts
	bankAccount, err := c.createAccount("572", "Bank", false)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bank account")
	}
	receivableAccount, err := c.createAccount("430", "Receivables", true)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receivable account")
	}
	payableAccount, err := c.createAccount("410", "Payables", true)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create payable account")
	}
	clearingAccount, err := c.createAccount("431", "Bank Clearing", true)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create clearing account")
	}
	revenueAccount, err := c.createAccount("700", "Revenue", false)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create revenue account")
	}

	// Party
	var partyResp struct {
		PartyID string `json:"party_id"`
	}
	err = c.call("parties", "POST", "/api/v1/parties", map[string]string{
		"name":                  "Acme Industries",
		"receivable_account_id": receivableAccount,
		"payable_account_id":    payableAccount,
	}, &partyResp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create party")
	}

	// Journals: a plain one and one routed through the clearing account
	var plainJournal, clearingJournal struct {
		JournalID string `json:"journal_id"`
	}
	err = c.call("journals", "POST", "/api/v1/payments/journals", map[string]interface{}{
		"name":            "Bank transfers",
		"currency":        "EUR",
		"bank_account_id": bankAccount,
	}, &plainJournal)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create plain journal")
	}
	err = c.call("journals", "POST", "/api/v1/payments/journals", map[string]interface{}{
		"name":                "Discounted receipts",
		"currency":            "EUR",
		"bank_account_id":     bankAccount,
		"clearing_account_id": clearingAccount,
		"clearing_percent":    "0.5",
	}, &clearingJournal)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create clearing journal")
	}

	// Two obligations and payments grouped together: 100.00 + 10.00
	var group struct {
		GroupID string `json:"group_id"`
	}
	err = c.call("groups", "POST", "/api/v1/payments/groups", map[string]string{
		"kind":       "RECEIVABLE",
		"journal_id": plainJournal.JournalID,
	}, &group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create payment group")
	}

	amounts := []string{"100.00", "10.00"}
	for _, amount := range amounts {
		var obligation struct {
			LineID string `json:"line_id"`
		}
		err = c.call("obligations", "POST", "/api/v1/ledger/obligations", map[string]string{
			"account_id":        receivableAccount,
			"contra_account_id": revenueAccount,
			"party_id":          partyResp.PartyID,
			"amount":            amount,
			"kind":              "RECEIVABLE",
			"description":       "invoice " + amount,
		}, &obligation)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create obligation")
		}

		var p struct {
			PaymentID string `json:"payment_id"`
		}
		err = c.call("payments", "POST", "/api/v1/payments", map[string]interface{}{
			"kind":        "RECEIVABLE",
			"currency":    "EUR",
			"amount":      amount,
			"party_id":    partyResp.PartyID,
			"journal_id":  plainJournal.JournalID,
			"group_id":    group.GroupID,
			"line_id":     obligation.LineID,
			"description": "receipt " + amount,
		}, &p)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create payment")
		}
		if err := c.call("payments", "POST", "/api/v1/payments/"+p.PaymentID+"/submit", nil, nil); err != nil {
			log.Fatal().Err(err).Msg("failed to submit payment")
		}
		if err := c.call("payments", "POST", "/api/v1/payments/"+p.PaymentID+"/process", nil, nil); err != nil {
			log.Fatal().Err(err).Msg("failed to process payment")
		}
	}

	// Bank statement observing the grouped receipt of 110.00
	var statement struct {
		StatementID string `json:"statement_id"`
	}
	err = c.call("statements", "POST", "/api/v1/statements", map[string]string{
		"journal_id": plainJournal.JournalID,
	}, &statement)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create statement")
	}
	err = c.call("statements", "POST", "/api/v1/statements/"+statement.StatementID+"/lines", map[string]string{
		"description": "incoming transfer",
		"amount":      "110.00",
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to add statement line")
	}

	var results []struct {
		LineID      string `json:"line_id"`
		Matched     bool   `json:"matched"`
		Reconciled  int    `json:"reconciled"`
		Unexplained string `json:"unexplained"`
		State       string `json:"state"`
	}
	err = c.call("confirm", "POST", "/api/v1/statements/"+statement.StatementID+"/confirm", nil, &results)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to confirm statement")
	}

	for _, result := range results {
		log.Info().
			Str("line_id", result.LineID).
			Bool("matched", result.Matched).
			Int("reconciled", result.Reconciled).
			Str("unexplained", result.Unexplained).
			Str("state", result.State).
			Msg("reconciliation result")
	}

	// Report per-route latency stats
	for name, stats := range c.stats {
		min, max, mean, median := stats.calculate()
		log.Info().
			Str("route", name).
			Int("calls", stats.totalCalls).
			Int("failures", stats.failures).
			Dur("min", min).
			Dur("max", max).
			Dur("mean", mean).
			Dur("median", median).
			Msg("route statistics")
	}

	log.Info().Msg("simulation complete")
}
