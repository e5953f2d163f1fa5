package statement

import (
	"github.com/gin-gonic/gin"

	"github.com/reconloop/recon-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the statement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) CreateStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StatementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		statement, err := h.service.CreateStatement(req)
		response.Handle(c, statement, err)
	}
}

func (h *GinHandlers) AddLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LineRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		line, err := h.service.AddLine(c.Param("statement_id"), req)
		response.Handle(c, line, err)
	}
}

func (h *GinHandlers) GetStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		statement, lines, err := h.service.GetStatement(c.Param("statement_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Handle(c, gin.H{"statement": statement, "lines": lines}, nil)
	}
}

// ConfirmStatementHandler confirms a statement and runs a
// reconciliation pass over each of its lines.
func (h *GinHandlers) ConfirmStatementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := h.service.Confirm(c.Param("statement_id"))
		response.Handle(c, results, err)
	}
}

// ReconcileLineHandler re-runs a reconciliation pass over a single
// confirmed line, internal use.
func (h *GinHandlers) ReconcileLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.service.ReconcileLine(c.Param("line_id"))
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) AddCounterpartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CounterpartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		counterpart, err := h.service.AddCounterpart(c.Param("line_id"), req)
		response.Handle(c, counterpart, err)
	}
}

func (h *GinHandlers) PostCounterpartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.service.PostCounterpart(c.Param("counterpart_id"))
		response.Handle(c, result, err)
	}
}

func (h *GinHandlers) CopyCounterpartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TargetLineID string `json:"target_line_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		counterpart, err := h.service.CopyCounterpart(c.Param("counterpart_id"), req.TargetLineID)
		response.Handle(c, counterpart, err)
	}
}
