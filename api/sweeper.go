/*
sweeper.go - Automated finalization sweeper

PURPOSE:
  Periodically looks for weekly periods that have ended with open
  performance records and finalizes them. Admins normally finalize from
  the panel; the sweeper catches the weeks nobody clicked the button.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Detects periods where today is past the period end
  - Skips periods whose batch is already finalized
  - A concurrent manual finalize is not an error: the orchestrator
    returns AlreadyFinalized and the sweeper moves on

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewFinalizationSweeper(orch)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: FinalizePerformance endpoint (manual finalization)
  - weekly/orchestrator.go: PastDuePerformancePeriods, FinalizePerformance
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lustra/fiscal-engine/fiscal"
	"github.com/lustra/fiscal-engine/weekly"
)

// FinalizationSweeper finalizes past-due performance batches.
type FinalizationSweeper struct {
	Orchestrator  *weekly.Orchestrator
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewFinalizationSweeper creates a new sweeper.
func NewFinalizationSweeper(orch *weekly.Orchestrator) *FinalizationSweeper {
	return &FinalizationSweeper{
		Orchestrator:  orch,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (fs *FinalizationSweeper) Start() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	fs.ticker = time.NewTicker(fs.CheckInterval)
	fs.wg.Add(1)

	go fs.run()

	log.Printf("[Sweeper] Started with check interval: %v", fs.CheckInterval)
}

// Stop stops the sweeper.
func (fs *FinalizationSweeper) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.ticker != nil {
		fs.ticker.Stop()
		close(fs.stop)
		fs.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (fs *FinalizationSweeper) run() {
	defer fs.wg.Done()

	// Run immediately on start
	fs.checkAndFinalize()

	for {
		select {
		case <-fs.ticker.C:
			fs.checkAndFinalize()
		case <-fs.stop:
			return
		}
	}
}

func (fs *FinalizationSweeper) checkAndFinalize() {
	ctx := context.Background()

	pastDue, err := fs.Orchestrator.PastDuePerformancePeriods(ctx)
	if err != nil {
		log.Printf("[Sweeper] Error listing past-due periods: %v", err)
		return
	}
	if len(pastDue) == 0 {
		return
	}

	log.Printf("[Sweeper] Found %d past-due period(s)", len(pastDue))

	finalized := 0
	skipped := 0
	for _, start := range pastDue {
		period := fs.Orchestrator.Calendar.PeriodStartingAt(start)

		err := fs.Orchestrator.FinalizePerformance(ctx, period)
		switch {
		case err == nil:
			finalized++
		case errors.Is(err, fiscal.ErrAlreadyFinalized):
			// Someone finalized it between listing and processing
			skipped++
		case errors.Is(err, fiscal.ErrRecordNotFound):
			// Period ended with no calculated batch; leave it for an
			// explicit calculate from the panel
			skipped++
		default:
			log.Printf("[Sweeper] Error finalizing period %s: %v", period, err)
		}
	}

	log.Printf("[Sweeper] Completed: %d finalized, %d skipped", finalized, skipped)
}

// RunNow triggers an immediate check (for testing/admin).
func (fs *FinalizationSweeper) RunNow() {
	fs.checkAndFinalize()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (fs *FinalizationSweeper) GetNextRunTime() time.Time {
	return time.Now().Add(fs.CheckInterval)
}
