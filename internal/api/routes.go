package api

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gradyfinch/tcg-sniper/internal/api/handlers"
	"github.com/gradyfinch/tcg-sniper/internal/services"
)

func SetupRouter(scanner *services.Scanner, budget *services.BudgetGovernor, deals *services.DealService) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false // Explicitly set
	router.Use(cors.New(config))

	// Initialize handlers
	scannerHandler := handlers.NewScannerHandler(scanner, budget)
	dealHandler := handlers.NewDealHandler(deals)

	// API routes
	api := router.Group("/api")
	{
		scan := api.Group("/scanner")
		{
			scan.GET("/status", scannerHandler.GetStatus)
			scan.PUT("/mode", scannerHandler.SetScanMode)
			scan.PUT("/search-type", scannerHandler.SetSearchType)
			scan.PUT("/queries", scannerHandler.SetCustomQueries)
			scan.POST("/cycle", scannerHandler.TriggerCycle)
		}

		api.GET("/budget", scannerHandler.GetBudget)
		api.GET("/deals", dealHandler.ListDeals)
	}

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}
