package handler

import (
	"payment-intent-engine/internal/adapter/http/dto"
	"payment-intent-engine/internal/core/domain"
	"payment-intent-engine/internal/core/ports"
	"payment-intent-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// MarketHandler exposes the market feed.
type MarketHandler struct {
	snapshots ports.SnapshotProvider
	clock     ports.Clock
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(snapshots ports.SnapshotProvider, clock ports.Clock) *MarketHandler {
	return &MarketHandler{snapshots: snapshots, clock: clock}
}

// Current handles GET /api/v1/market. Before the first sample the fallback
// snapshot is returned with live=false.
func (h *MarketHandler) Current(c *gin.Context) {
	snap, ok := h.snapshots.Current()
	if !ok {
		snap = domain.DefaultMarketSnapshot(h.clock.Now())
	}
	response.OK(c, dto.MarketResponse{MarketSnapshot: snap, Live: ok})
}
