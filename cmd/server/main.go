/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Lustra Fiscal Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store and seed default configuration
  3. Build the weekly orchestrator over the store's ledgers
  4. Configure HTTP router
  5. Start the finalization sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: fiscal.db)
           Use ":memory:" for in-memory database
  -sweep   Sweeper check interval (default: 1h, 0 disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/fiscal.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run without the background sweeper
  ./server -sweep=0

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lustra/fiscal-engine/api"
	"github.com/lustra/fiscal-engine/store/sqlite"
	"github.com/lustra/fiscal-engine/weekly"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "fiscal.db", "SQLite database path")
	sweepInterval := flag.Duration("sweep", 1*time.Hour, "sweeper check interval (0 disables)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Seed default brackets and bonus parameters on first run
	if err := store.SeedDefaults(context.Background()); err != nil {
		log.Fatalf("Failed to seed default configuration: %v", err)
	}

	// Wire the orchestrator over the store's ledger views
	orch := weekly.New(store, store, store, store.ServiceLedger(), store)

	// Initialize handler and router
	handler := api.NewHandler(store, orch)
	router := api.NewRouter(handler)

	// Background finalization sweeper
	sweeper := api.NewFinalizationSweeper(orch)
	if *sweepInterval > 0 {
		sweeper.CheckInterval = *sweepInterval
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
