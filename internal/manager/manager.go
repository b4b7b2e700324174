// Package manager runs the adaptive control loop: it scores prompts, reads
// memory pressure, selects a precision tier, consults the response cache and
// drives the guarded backend call for every generation request.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reflexiad/internal/backend"
	"reflexiad/internal/breaker"
	"reflexiad/internal/complexity"
	"reflexiad/internal/quant"
	"reflexiad/internal/resource"
	"reflexiad/internal/respcache"
)

// Backend is the inference runtime as the control loop sees it. Implemented
// by the backend HTTP client.
type Backend interface {
	Infer(ctx context.Context, prompt string, params backend.Params, tier quant.Tier) (backend.Result, error)
	Reconfigure(ctx context.Context, tier quant.Tier) error
	Probe(ctx context.Context) error
}

// ManagerConfig encapsulates all collaborators and tunables for Manager
// construction.
type ManagerConfig struct {
	Estimator  *complexity.Estimator
	Monitor    *resource.Monitor
	Controller *quant.Controller
	Cache      *respcache.Cache
	Breaker    *breaker.Breaker
	Retry      breaker.RetryPolicy
	Backend    Backend

	// SoftPct is the memory threshold above which new responses bypass the
	// cache; should match the controller's soft threshold.
	SoftPct float64
	// CacheMaxEntries/CacheMaxBytes are the full cache budgets the manager
	// restores once pressure subsides.
	CacheMaxEntries int
	CacheMaxBytes   int64

	Log zerolog.Logger
}

// Manager owns the current tier exclusively. Tier reads and transitions are
// serialized so concurrent requests never race a backend reconfiguration.
type Manager struct {
	est              *complexity.Estimator
	monitor          *resource.Monitor
	controller       *quant.Controller
	cache            *respcache.Cache
	brk              *breaker.Breaker
	retry            breaker.RetryPolicy
	backend          Backend
	softPct          float64
	fullCacheEntries int
	fullCacheBytes   int64
	log              zerolog.Logger

	mu        sync.Mutex
	tier      quant.Tier
	shrunk    bool
	startTime time.Time
}

// NewWithConfig constructs a Manager from ManagerConfig. The initial tier is
// the cheapest rung of the controller's ladder; the backend is reconfigured
// lazily by the first request that wants something better.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		est:              cfg.Estimator,
		monitor:          cfg.Monitor,
		controller:       cfg.Controller,
		cache:            cfg.Cache,
		brk:              cfg.Breaker,
		retry:            cfg.Retry,
		backend:          cfg.Backend,
		softPct:          cfg.SoftPct,
		fullCacheEntries: cfg.CacheMaxEntries,
		fullCacheBytes:   cfg.CacheMaxBytes,
		log:              cfg.Log,
		startTime:        time.Now(),
	}
	if m.est == nil {
		m.est = complexity.New(complexity.Weights{}, nil)
	}
	if m.softPct <= 0 {
		m.softPct = 80
	}
	if m.retry.Retryable == nil {
		// invalid input fails identically on every attempt; only counted
		// backend failures are worth repeating
		m.retry.Retryable = func(err error) bool {
			return err != nil && !breaker.IsOpen(err) && !backend.IsInvalidRequest(err)
		}
	}
	m.tier = m.controller.Ladder().Cheapest()
	return m
}

// Tier returns the tier currently configured on the backend.
func (m *Manager) Tier() quant.Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tier
}

// Ready reports whether the daemon can serve: a memory snapshot exists and
// the circuit is not open.
func (m *Manager) Ready() bool {
	if _, ok := m.monitor.Latest(); !ok {
		return false
	}
	return m.brk.Snapshot().State != breaker.StateOpen
}

// Probe checks backend reachability through the breaker gate without feeding
// its failure counter. Wired into the health monitor.
func (m *Manager) Probe(ctx context.Context) error {
	return m.brk.Probe(ctx, m.backend.Probe)
}

// HandleMemoryPressure shrinks the cache to half its configured budgets.
// Wired as the resource monitor's OnPressure callback; Generate restores the
// full budgets once a sample comes in below the soft threshold.
func (m *Manager) HandleMemoryPressure(snap resource.Snapshot) {
	m.mu.Lock()
	already := m.shrunk
	m.shrunk = true
	m.mu.Unlock()
	if already || m.cache == nil {
		return
	}
	entries := m.fullCacheEntries / 2
	if entries < 1 {
		entries = 1
	}
	m.cache.Resize(entries, m.fullCacheBytes/2)
	cacheShrinksTotal.Inc()
	m.log.Warn().Float64("mem_pct", snap.Percent).Int("entries", entries).
		Msg("memory pressure, cache budget halved")
}

// maybeRestoreCache undoes a pressure shrink once memory is back under the
// soft threshold.
func (m *Manager) maybeRestoreCache(snap resource.Snapshot) {
	if snap.Degraded || snap.Percent >= m.softPct {
		return
	}
	m.mu.Lock()
	if !m.shrunk {
		m.mu.Unlock()
		return
	}
	m.shrunk = false
	m.mu.Unlock()
	m.cache.Resize(m.fullCacheEntries, m.fullCacheBytes)
	m.log.Info().Float64("mem_pct", snap.Percent).Msg("memory pressure cleared, cache budget restored")
}
