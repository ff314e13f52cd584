package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ohanaexperience/ohana-backend-sub001/pkg/logger"
)

// HoldReleaser releases expired holds in batches and reports how many were
// handled.
type HoldReleaser interface {
	ExpireHolds(ctx context.Context, batchSize int) (int, error)
}

// HoldExpiryWorkerConfig contains configuration for the hold expiry worker
type HoldExpiryWorkerConfig struct {
	// SweepInterval is the interval between sweeps for expired holds
	SweepInterval time.Duration
	// BatchSize is the number of holds to release per sweep
	BatchSize int
}

// DefaultHoldExpiryWorkerConfig returns default configuration
func DefaultHoldExpiryWorkerConfig() *HoldExpiryWorkerConfig {
	return &HoldExpiryWorkerConfig{
		SweepInterval: time.Minute,
		BatchSize:     100,
	}
}

// HoldExpiryWorker periodically releases holds whose TTL has passed. Expiry
// is otherwise lazy (conversion of a stale hold releases it on discovery);
// the sweeper keeps abandoned holds from occupying capacity until someone
// touches them.
type HoldExpiryWorker struct {
	releaser HoldReleaser
	config   *HoldExpiryWorkerConfig
	log      *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool

	totalReleased int64
	lastSweepTime time.Time
}

// NewHoldExpiryWorker creates a new hold expiry worker
func NewHoldExpiryWorker(releaser HoldReleaser, config *HoldExpiryWorkerConfig) *HoldExpiryWorker {
	if config == nil {
		config = DefaultHoldExpiryWorkerConfig()
	}
	return &HoldExpiryWorker{
		releaser: releaser,
		config:   config,
		log:      logger.Get(),
		stopCh:   make(chan struct{}),
	}
}

// Start starts the hold expiry worker
func (w *HoldExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("hold expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("starting hold expiry worker",
		zap.Duration("sweep_interval", w.config.SweepInterval),
		zap.Int("batch_size", w.config.BatchSize))

	w.wg.Add(1)
	go w.sweepLoop(ctx)

	return nil
}

// Stop stops the hold expiry worker and waits for the current sweep
func (w *HoldExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("stopping hold expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("hold expiry worker stopped")
}

func (w *HoldExpiryWorker) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *HoldExpiryWorker) sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastSweepTime = time.Now().UTC()
	w.mu.Unlock()

	released, err := w.releaser.ExpireHolds(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error("hold expiry sweep failed", zap.Error(err))
		return
	}

	if released > 0 {
		w.log.Info("released expired holds", zap.Int("count", released))
	}

	w.mu.Lock()
	w.totalReleased += int64(released)
	w.mu.Unlock()
}

// Stats returns worker statistics
func (w *HoldExpiryWorker) Stats() HoldExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return HoldExpiryWorkerStats{
		IsRunning:     w.running,
		TotalReleased: w.totalReleased,
		LastSweepTime: w.lastSweepTime,
	}
}

// HoldExpiryWorkerStats contains worker statistics
type HoldExpiryWorkerStats struct {
	IsRunning     bool      `json:"is_running"`
	TotalReleased int64     `json:"total_released"`
	LastSweepTime time.Time `json:"last_sweep_time"`
}
