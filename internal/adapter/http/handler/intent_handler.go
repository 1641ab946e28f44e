package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"payment-intent-engine/internal/adapter/http/dto"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/pkg/apperror"
	"payment-intent-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// IntentHandler serves the payment intent endpoints.
type IntentHandler struct {
	engine     ports.IntentEngine
	events     ports.IntentEventRepository // nil = audit trail disabled
	maxTimeout time.Duration
}

// NewIntentHandler creates an IntentHandler. maxTimeout caps the
// timeout_ms a caller may request on execute.
func NewIntentHandler(engine ports.IntentEngine, events ports.IntentEventRepository, maxTimeout time.Duration) *IntentHandler {
	return &IntentHandler{engine: engine, events: events, maxTimeout: maxTimeout}
}

// Create handles POST /api/v1/intents.
func (h *IntentHandler) Create(c *gin.Context) {
	var req dto.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	intent, err := h.engine.Create(c.Request.Context(), req.ToRaw())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewIntentResponse(intent))
}

// Execute handles POST /api/v1/intents/:id/execute. An optional timeout_ms
// query parameter bounds the wait for settlement.
func (h *IntentHandler) Execute(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if raw := c.Query("timeout_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms <= 0 {
			response.Error(c, apperror.Validation("timeout_ms must be a positive integer"))
			return
		}
		timeout := time.Duration(ms) * time.Millisecond
		if h.maxTimeout > 0 && timeout > h.maxTimeout {
			timeout = h.maxTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	intent, err := h.engine.Execute(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewIntentResponse(intent))
}

// Get handles GET /api/v1/intents/:id.
func (h *IntentHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	intent, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewIntentResponse(intent))
}

// List handles GET /api/v1/intents?limit=n.
func (h *IntentHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			response.Error(c, apperror.Validation(fmt.Sprintf("limit must be between 1 and %d", maxListLimit)))
			return
		}
		limit = n
	}

	intents, err := h.engine.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	items := dto.NewIntentList(intents)
	response.List(c, items, len(items))
}

// Analytics handles GET /api/v1/analytics.
func (h *IntentHandler) Analytics(c *gin.Context) {
	a, err := h.engine.Analytics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAnalyticsResponse(a))
}

// Events handles GET /api/v1/intents/:id/events.
func (h *IntentHandler) Events(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.engine.Get(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	records, err := h.events.ListByIntent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.ErrStorage(err))
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	response.List(c, records, len(records))
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid intent id"))
		return uuid.Nil, false
	}
	return id, true
}
