package payment

import (
	"github.com/gin-gonic/gin"

	"github.com/reconloop/recon-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the payment endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) CreateJournalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req JournalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		journal, err := h.service.CreateJournal(req)
		response.Handle(c, journal, err)
	}
}

func (h *GinHandlers) CreateGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Kind      string `json:"kind" binding:"required"`
			JournalID string `json:"journal_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		group, err := h.service.CreateGroup(req.Kind, req.JournalID)
		response.Handle(c, group, err)
	}
}

func (h *GinHandlers) CreatePaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		p, err := h.service.CreatePayment(req)
		response.Handle(c, p, err)
	}
}

func (h *GinHandlers) SubmitPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.service.SubmitPayment(c.Param("payment_id"))
		response.Handle(c, p, err)
	}
}

func (h *GinHandlers) ProcessPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.service.ProcessPayment(c.Param("payment_id"))
		response.Handle(c, p, err)
	}
}

func (h *GinHandlers) GetPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := h.service.GetPayment(c.Param("payment_id"))
		response.Handle(c, p, err)
	}
}
