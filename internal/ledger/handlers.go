package ledger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reconloop/recon-api/pkg/response"
)

// GinHandlers contains HTTP handlers for ledger setup endpoints:
// accounts, obligation moves and exchange rates. The reconciliation
// pass itself only touches the ledger through the statement service.
type GinHandlers struct {
	db *Database
}

func NewGinHandlers(db *Database) *GinHandlers {
	return &GinHandlers{db: db}
}

type AccountRequest struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Currency  string `json:"currency" binding:"required"`
	Reconcile bool   `json:"reconcile"`
}

func (h *GinHandlers) CreateAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		account := &Account{
			AccountID: "ACC_" + uuid.New().String(),
			Code:      req.Code,
			Name:      req.Name,
			Currency:  req.Currency,
			Reconcile: req.Reconcile,
		}
		err := h.db.CreateAccount(account)
		response.Handle(c, account, err)
	}
}

type ObligationRequest struct {
	AccountID       string `json:"account_id" binding:"required"`
	ContraAccountID string `json:"contra_account_id" binding:"required"`
	PartyID         string `json:"party_id" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	Kind            string `json:"kind" binding:"required"`
	Date            string `json:"date"`
	Description     string `json:"description"`
}

// CreateObligationHandler posts a two-leg obligation move, such as an
// invoice, and returns the obligation line a payment can be bound to.
func (h *GinHandlers) CreateObligationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ObligationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			response.BadRequest(c, "Invalid amount")
			return
		}
		date := time.Now()
		if req.Date != "" {
			if parsed, err := time.Parse("2006-01-02", req.Date); err == nil {
				date = parsed
			}
		}

		obligation := &MoveLine{
			AccountID:   req.AccountID,
			PartyID:     &req.PartyID,
			Description: req.Description,
		}
		contra := &MoveLine{
			AccountID:   req.ContraAccountID,
			Description: req.Description,
		}
		// A receivable obligation debits the party account; a payable
		// one credits it.
		if req.Kind == "PAYABLE" {
			obligation.Credit = amount
			contra.Debit = amount
		} else {
			obligation.Debit = amount
			contra.Credit = amount
		}

		move := &Move{Date: date, Origin: req.Description}
		if err := h.db.CreateMove(move, []*MoveLine{obligation, contra}); err != nil {
			response.Handle(c, nil, err)
			return
		}
		if err := h.db.PostMove(move.MoveID); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, obligation, nil)
	}
}

type RateRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
	Rate string `json:"rate" binding:"required"`
	Date string `json:"date"`
}

func (h *GinHandlers) CreateRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		value, err := decimal.NewFromString(req.Rate)
		if err != nil {
			response.BadRequest(c, "Invalid rate")
			return
		}
		date := time.Now()
		if req.Date != "" {
			if parsed, err := time.Parse("2006-01-02", req.Date); err == nil {
				date = parsed
			}
		}
		rate := &ExchangeRate{From: req.From, To: req.To, Rate: value, Date: date}
		err = h.db.CreateExchangeRate(rate)
		response.Handle(c, rate, err)
	}
}

func (h *GinHandlers) GetLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		line, err := h.db.GetLine(c.Param("line_id"))
		response.Handle(c, line, err)
	}
}
