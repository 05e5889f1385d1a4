package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gradyfinch/tcg-sniper/internal/api"
	"github.com/gradyfinch/tcg-sniper/internal/database"
	"github.com/gradyfinch/tcg-sniper/internal/models"
	"github.com/gradyfinch/tcg-sniper/internal/services"
)

func main() {
	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./tcg_sniper.db"
	}

	// Initialize database
	if err := database.Initialize(dbPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Catalog API (candidate lookup, prices, sale velocity)
	catalogURL := os.Getenv("CATALOG_API_URL")
	if catalogURL == "" {
		log.Fatal("CATALOG_API_URL is required")
	}
	catalog := services.NewCatalogAPIClient(catalogURL, os.Getenv("CATALOG_API_KEY"))

	// Marketplace API, wrapped with a request-per-second ceiling
	marketplaceURL := os.Getenv("MARKETPLACE_API_URL")
	if marketplaceURL == "" {
		log.Fatal("MARKETPLACE_API_URL is required")
	}
	detailLimit := 200
	if limitStr := os.Getenv("MARKETPLACE_DETAIL_DAILY_LIMIT"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			detailLimit = limit
		}
	}
	marketplaceAPI := services.NewMarketplaceAPIClient(marketplaceURL, os.Getenv("MARKETPLACE_API_KEY"), detailLimit)
	marketplace := services.NewRateLimitedMarketplace(marketplaceAPI, 2, 5)

	// Exchange rates with retry and last-known-good fallback
	exchangeURL := os.Getenv("EXCHANGE_API_URL")
	if exchangeURL == "" {
		exchangeURL = "https://api.frankfurter.app"
	}
	exchange := services.NewRetryingExchangeRate(services.NewExchangeAPIClient(exchangeURL))

	// Credit budget governor
	budgetCfg := services.BudgetConfig{}
	if creditsStr := os.Getenv("DAILY_CREDITS"); creditsStr != "" {
		if credits, err := strconv.Atoi(creditsStr); err == nil {
			budgetCfg.DailyCredits = credits
		}
	}
	budget := services.NewBudgetGovernor(budgetCfg)

	// Deal sink with log-based alerting
	deals := services.NewDealService(database.GetDB(), services.LogNotifier{})

	// The scanner ties the whole pipeline together
	scanner := services.NewScanner(services.ScannerDeps{
		Marketplace: marketplace,
		Catalog:     catalog,
		Exchange:    exchange,
		Budget:      budget,
		Deals:       deals,
	})

	if mode, ok := models.ParseScanMode(os.Getenv("SCAN_MODE")); ok {
		scanner.SetScanMode(mode)
	}

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start scanner in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in scanner: %v - restarting in 30 seconds", r)
					}
				}()
				scanner.Start(ctx)
				<-ctx.Done()
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Scanner restarting after panic recovery...")
			}
		}
	}()

	// Sync the catalog's billing-period usage into the governor on
	// startup and hourly after that
	go func() {
		syncUsage(ctx, catalog, budget)
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				syncUsage(ctx, catalog, budget)
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(scanner, budget, deals)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the scanner
	scanner.Stop()
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func syncUsage(ctx context.Context, catalog *services.CatalogAPIClient, budget *services.BudgetGovernor) {
	usage, err := catalog.Usage(ctx)
	if err != nil {
		log.Printf("Failed to fetch catalog usage: %v", err)
		return
	}
	budget.UpdateRemoteUsage(usage)
}
