package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-insight-backend/internal/database"
	"stock-insight-backend/internal/events"
	"stock-insight-backend/internal/marketdata"
)

const scanTimeout = 5 * time.Minute

// Scanner runs the signal pipeline over every watched symbol at a fixed
// interval and publishes the scan lifecycle on the event bus
type Scanner struct {
	repo       *database.Repository
	evaluator  *Evaluator
	bus        *events.EventBus
	config     Config
	logger     zerolog.Logger
	stopChan   chan struct{}
	wg         sync.WaitGroup
	scanning   int32
	mu         sync.RWMutex
	lastResult *ScanResult
}

// NewScanner creates a new scanner instance
func NewScanner(
	repo *database.Repository,
	evaluator *Evaluator,
	bus *events.EventBus,
	config Config,
	logger zerolog.Logger,
) *Scanner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 5 * time.Minute
	}
	if config.MaxSymbols <= 0 {
		config.MaxSymbols = 50
	}
	return &Scanner{
		repo:      repo,
		evaluator: evaluator,
		bus:       bus,
		config:    config,
		logger:    logger.With().Str("component", "scanner").Logger(),
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background scan loop
func (sc *Scanner) Start() {
	if !sc.config.Enabled {
		sc.logger.Info().Msg("watchlist scanner is disabled")
		return
	}

	sc.wg.Add(1)
	go sc.runScanLoop()
	sc.logger.Info().
		Dur("interval", sc.config.ScanInterval).
		Int("workers", sc.config.WorkerCount).
		Msg("watchlist scanner started")
}

// runScanLoop executes scans at configured intervals
func (sc *Scanner) runScanLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately
	sc.scan()

	for {
		select {
		case <-ticker.C:
			sc.scan()
		case <-sc.stopChan:
			sc.logger.Info().Msg("watchlist scanner stopped")
			return
		}
	}
}

// Scan executes a single scan cycle (public method for manual triggering).
// Reports false when a scan is already in progress.
func (sc *Scanner) Scan() bool {
	return sc.scan()
}

func (sc *Scanner) scan() bool {
	if !atomic.CompareAndSwapInt32(&sc.scanning, 0, 1) {
		sc.logger.Debug().Msg("scan already in progress")
		return false
	}
	defer atomic.StoreInt32(&sc.scanning, 0)

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	startTime := time.Now()
	scanID := uuid.New().String()

	symbols, err := sc.repo.AllWatchedSymbols(ctx)
	if err != nil {
		sc.logger.Error().Err(err).Msg("failed to load watched symbols")
		sc.bus.PublishError("scanner", err)
		return true
	}
	if len(symbols) == 0 {
		sc.logger.Debug().Msg("no watched symbols to scan")
		return true
	}
	if len(symbols) > sc.config.MaxSymbols {
		symbols = symbols[:sc.config.MaxSymbols]
	}

	sc.logger.Info().Str("scan_id", scanID).Int("symbols", len(symbols)).Msg("starting scan")
	sc.bus.PublishScanStarted(scanID, len(symbols))

	resultChan := make(chan Evaluation, len(symbols))
	symbolChan := make(chan string, len(symbols))
	var failed int32
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < sc.config.WorkerCount; i++ {
		wg.Add(1)
		go sc.worker(ctx, scanID, symbolChan, resultChan, &failed, &wg)
	}

	// Feed symbols to workers
	go func() {
		for _, symbol := range symbols {
			select {
			case symbolChan <- symbol:
			case <-ctx.Done():
			}
		}
		close(symbolChan)
	}()

	// Wait for workers to finish
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results
	results := []Evaluation{}
	for result := range resultChan {
		results = append(results, result)
	}

	// Rank by buy score, best first
	sort.Slice(results, func(i, j int) bool {
		return results[i].Signal.ScorePct > results[j].Signal.ScorePct
	})

	failedCount := int(atomic.LoadInt32(&failed))
	scanResult := &ScanResult{
		ScanID:         scanID,
		StartTime:      startTime,
		EndTime:        time.Now(),
		Duration:       time.Since(startTime),
		SymbolsScanned: len(symbols),
		Failed:         failedCount,
		Results:        results,
	}

	sc.mu.Lock()
	sc.lastResult = scanResult
	sc.mu.Unlock()

	sc.bus.PublishScanCompleted(scanID, len(results), failedCount, scanResult.Duration)
	sc.logger.Info().
		Str("scan_id", scanID).
		Int("scanned", len(results)).
		Int("failed", failedCount).
		Dur("elapsed", scanResult.Duration).
		Msg("scan completed")
	return true
}

// worker processes symbols from the channel
func (sc *Scanner) worker(
	ctx context.Context,
	scanID string,
	symbolChan <-chan string,
	resultChan chan<- Evaluation,
	failed *int32,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for symbol := range symbolChan {
		select {
		case <-ctx.Done():
			return
		default:
			sc.scanSymbol(ctx, scanID, symbol, resultChan, failed)
		}
	}
}

// scanSymbol runs the pipeline for a single symbol and publishes the outcome
func (sc *Scanner) scanSymbol(
	ctx context.Context,
	scanID string,
	symbol string,
	resultChan chan<- Evaluation,
	failed *int32,
) {
	ev, err := sc.evaluator.Evaluate(ctx, symbol, EvaluateOptions{Timeframe: marketdata.TimeframeDaily})
	if err != nil {
		atomic.AddInt32(failed, 1)
		sc.logger.Debug().Err(err).Str("symbol", symbol).Msg("symbol evaluation failed")
		return
	}

	sc.bus.PublishScanResult(
		scanID,
		ev.Symbol,
		string(ev.Timeframe),
		string(ev.Signal.Tone),
		ev.Signal.ScorePct,
		round2(100-ev.Signal.ScorePct),
	)
	resultChan <- *ev

	// Watchers get a user-scoped push for their symbols. Lookup is by the
	// watched form, which is what the scan working set is built from.
	watchers, err := sc.repo.WatchersOf(ctx, symbol)
	if err != nil {
		sc.logger.Debug().Err(err).Str("symbol", symbol).Msg("watcher lookup failed")
		return
	}
	for _, userID := range watchers {
		sc.bus.PublishSignalUpdate(
			userID,
			ev.Symbol,
			string(ev.Timeframe),
			string(ev.Signal.Tone),
			ev.Signal.ScorePct,
			round2(100-ev.Signal.ScorePct),
		)
	}
}

// Scanning reports whether a scan cycle is currently in flight
func (sc *Scanner) Scanning() bool {
	return atomic.LoadInt32(&sc.scanning) == 1
}

// GetLastResult returns the most recent scan result
func (sc *Scanner) GetLastResult() *ScanResult {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastResult
}

// Stop gracefully shuts down the scanner
func (sc *Scanner) Stop() {
	if !sc.config.Enabled {
		return
	}
	close(sc.stopChan)
	sc.wg.Wait()
}
