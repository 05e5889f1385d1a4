package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gradyfinch/tcg-sniper/internal/services"
)

type DealHandler struct {
	deals *services.DealService
}

func NewDealHandler(deals *services.DealService) *DealHandler {
	return &DealHandler{
		deals: deals,
	}
}

// ListDeals returns the newest unexpired deals
func (h *DealHandler) ListDeals(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	deals, err := h.deals.RecentDeals(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deals": deals,
		"count": len(deals),
	})
}
