package memory

import (
	"log/slog"
	"time"
)

// Sweeper defaults. The cadence is deliberately modest: expiry correctness
// comes from the lazy checks on every read path, the sweeper only bounds
// how long a never-revisited key can occupy memory.
const (
	DefaultSweepInterval = 50 * time.Millisecond
	DefaultSweepBatch    = 20
)

// Sweeper periodically reclaims expired entries from a Store.
type Sweeper struct {
	store    *Store
	interval time.Duration
	batch    int
	logger   *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// SweeperConfig configures a Sweeper. Zero fields fall back to defaults.
type SweeperConfig struct {
	Interval time.Duration
	Batch    int
	Logger   *slog.Logger
}

// NewSweeper creates a sweeper for store. Call Start to begin sweeping.
func NewSweeper(store *Store, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.Batch <= 0 {
		cfg.Batch = DefaultSweepBatch
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sweeper{
		store:    store,
		interval: cfg.Interval,
		batch:    cfg.Batch,
		logger:   cfg.Logger,
	}
}

// Start launches the background sweep loop.
func (sw *Sweeper) Start() {
	if sw.stopCh != nil {
		return
	}
	sw.stopCh = make(chan struct{})
	sw.doneCh = make(chan struct{})

	go sw.run()
}

func (sw *Sweeper) run() {
	defer close(sw.doneCh)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := sw.store.sweep(sw.batch); n > 0 {
				sw.logger.Debug("swept expired keys", "evicted", n)
			}
		case <-sw.stopCh:
			return
		}
	}
}

// Stop terminates the sweep loop and waits for it to exit. Safe to call
// once after Start.
func (sw *Sweeper) Stop() {
	if sw.stopCh == nil {
		return
	}
	close(sw.stopCh)
	<-sw.doneCh
	sw.stopCh = nil
}
