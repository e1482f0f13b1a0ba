package session

import (
	"sync"
	"time"

	"github.com/g2commons/g2commons/internal/logging"
)

// PurgeMetrics records purge outcomes. Satisfied by metrics.Metrics.
type PurgeMetrics interface {
	RecordSessionPurge(purged int64, duration time.Duration)
}

// PurgeStats contains purge statistics.
type PurgeStats struct {
	TotalRuns    int
	TotalPurged  int64
	LastRunAt    time.Time
	LastPurged   int64
	VacuumCount  int
	VacuumLastAt time.Time
}

// Purger periodically removes expired sessions from a SQLiteStore and
// occasionally compacts the database. Only the sqlite backend needs one;
// cookie sessions expire on their own.
type Purger struct {
	store          *SQLiteStore
	logger         *logging.Logger
	metrics        PurgeMetrics
	interval       time.Duration
	vacuumInterval time.Duration

	done    chan struct{}
	running bool
	mu      sync.Mutex

	statsMu sync.RWMutex
	stats   PurgeStats
}

// NewPurger creates a purger for the given store. Non-positive intervals
// fall back to defaults.
func NewPurger(store *SQLiteStore, interval, vacuumInterval time.Duration, logger *logging.Logger, m PurgeMetrics) *Purger {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if vacuumInterval <= 0 {
		vacuumInterval = 24 * time.Hour
	}
	return &Purger{
		store:          store,
		logger:         logger,
		metrics:        m,
		interval:       interval,
		vacuumInterval: vacuumInterval,
		done:           make(chan struct{}),
	}
}

// Start launches the purge loop. Safe to call once.
func (p *Purger) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	go func() {
		ticker := time.NewTicker(p.interval)
		vacuumTicker := time.NewTicker(p.vacuumInterval)
		defer ticker.Stop()
		defer vacuumTicker.Stop()

		for {
			select {
			case <-p.done:
				return
			case <-ticker.C:
				p.runOnce()
			case <-vacuumTicker.C:
				p.vacuum()
			}
		}
	}()
}

// Stop terminates the purge loop.
func (p *Purger) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.done)
}

// Stats returns a snapshot of purge statistics.
func (p *Purger) Stats() PurgeStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.stats
}

func (p *Purger) runOnce() {
	start := time.Now()
	purged, err := p.store.PurgeExpired()
	if err != nil {
		p.logger.Warn("session purge failed", "error", err.Error())
		return
	}
	if p.metrics != nil {
		p.metrics.RecordSessionPurge(purged, time.Since(start))
	}

	p.statsMu.Lock()
	p.stats.TotalRuns++
	p.stats.TotalPurged += purged
	p.stats.LastRunAt = start
	p.stats.LastPurged = purged
	p.statsMu.Unlock()

	if purged > 0 {
		p.logger.Info("expired sessions purged", "count", purged)
	}
}

func (p *Purger) vacuum() {
	if err := p.store.Vacuum(); err != nil {
		p.logger.Warn("session vacuum failed", "error", err.Error())
		return
	}
	p.statsMu.Lock()
	p.stats.VacuumCount++
	p.stats.VacuumLastAt = time.Now()
	p.statsMu.Unlock()
}
