package party

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reconloop/recon-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the party directory
type GinHandlers struct {
	db *Database
}

func NewGinHandlers(db *Database) *GinHandlers {
	return &GinHandlers{db: db}
}

type PartyRequest struct {
	Name                string `json:"name" binding:"required"`
	ReceivableAccountID string `json:"receivable_account_id"`
	PayableAccountID    string `json:"payable_account_id"`
}

func (h *GinHandlers) CreatePartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PartyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		p := &Party{
			PartyID:             "PTY_" + uuid.New().String(),
			Name:                req.Name,
			ReceivableAccountID: req.ReceivableAccountID,
			PayableAccountID:    req.PayableAccountID,
		}
		err := h.db.CreateParty(p)
		response.Handle(c, p, err)
	}
}

func (h *GinHandlers) GetPartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.db.GetParty(c.Param("party_id"))
		response.Handle(c, p, err)
	}
}
