package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradyfinch/tcg-sniper/internal/models"
	"github.com/gradyfinch/tcg-sniper/internal/services"
)

type ScannerHandler struct {
	scanner *services.Scanner
	budget  *services.BudgetGovernor
}

func NewScannerHandler(scanner *services.Scanner, budget *services.BudgetGovernor) *ScannerHandler {
	return &ScannerHandler{
		scanner: scanner,
		budget:  budget,
	}
}

// GetStatus returns the scanner state and the last cycle's stats
func (h *ScannerHandler) GetStatus(c *gin.Context) {
	stats, at := h.scanner.LastStats()
	c.JSON(http.StatusOK, gin.H{
		"state":       h.scanner.State(),
		"scan_mode":   h.scanner.Mode(),
		"search_type": h.scanner.SearchType(),
		"last_cycle":  at,
		"last_stats":  stats,
	})
}

// GetBudget returns the credit governor's current snapshot
func (h *ScannerHandler) GetBudget(c *gin.Context) {
	c.JSON(http.StatusOK, h.budget.Status())
}

type scanModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SetScanMode switches between both/graded_only/raw_only
func (h *ScannerHandler) SetScanMode(c *gin.Context) {
	var req scanModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode, ok := models.ParseScanMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan mode: " + req.Mode})
		return
	}

	h.scanner.SetScanMode(mode)
	c.JSON(http.StatusOK, gin.H{"scan_mode": mode})
}

type searchTypeRequest struct {
	SearchType string `json:"search_type" binding:"required"`
}

// SetSearchType switches the query source
func (h *ScannerHandler) SetSearchType(c *gin.Context) {
	var req searchTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, ok := models.ParseSearchType(req.SearchType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid search type: " + req.SearchType})
		return
	}

	h.scanner.SetSearchType(st)
	c.JSON(http.StatusOK, gin.H{"search_type": st})
}

type customQueriesRequest struct {
	Queries []models.ScanQuery `json:"queries" binding:"required"`
}

// SetCustomQueries replaces the user-defined query list
func (h *ScannerHandler) SetCustomQueries(c *gin.Context) {
	var req customQueriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for i := range req.Queries {
		if req.Queries[i].Term == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query term must not be empty"})
			return
		}
		if req.Queries[i].Category == "" {
			req.Queries[i].Category = models.CategoryCustom
		}
	}

	h.scanner.SetCustomQueries(req.Queries)
	c.JSON(http.StatusOK, gin.H{"count": len(req.Queries)})
}

// TriggerCycle kicks off one scan cycle out of schedule. The cycle
// outlives the request, so it runs on a background context.
func (h *ScannerHandler) TriggerCycle(c *gin.Context) {
	if !h.budget.CanMakeCall() {
		c.JSON(http.StatusConflict, gin.H{"error": services.ErrBudgetExhausted.Error()})
		return
	}
	go h.scanner.RunScanCycle(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "cycle started"})
}
