// Package health aggregates backend, memory, cache and breaker state into a
// single report for liveness surfaces.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reflexiad/internal/breaker"
	"reflexiad/internal/resource"
	"reflexiad/internal/respcache"
	"reflexiad/pkg/types"
)

// BackendProber checks runtime reachability. The manager wires this through
// the circuit breaker's probe path so health checks never feed the failure
// counter.
type BackendProber interface {
	Probe(ctx context.Context) error
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultProbeTimeout   = 2 * time.Second
	defaultSnapshotMaxAge = 30 * time.Second
)

// Config encapsulates tunables for Monitor construction.
type Config struct {
	Backend BackendProber
	Memory  *resource.Monitor
	Cache   *respcache.Cache
	Breaker *breaker.Breaker
	// ProbeTimeout bounds each subsystem probe; a probe that exceeds it is
	// reported unhealthy instead of hanging the whole check.
	ProbeTimeout time.Duration
	// SnapshotMaxAge is how stale the latest memory snapshot may be.
	SnapshotMaxAge time.Duration
	Log            zerolog.Logger
}

// Monitor produces fresh HealthReports on demand or on a timer.
type Monitor struct {
	cfg Config
}

// New constructs a Monitor from Config.
func New(cfg Config) *Monitor {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.SnapshotMaxAge <= 0 {
		cfg.SnapshotMaxAge = defaultSnapshotMaxAge
	}
	return &Monitor{cfg: cfg}
}

// Check queries every subsystem and aggregates the result. Each report is
// generated fresh, never partially updated.
func (m *Monitor) Check(ctx context.Context) types.HealthResponse {
	checks := []types.HealthCheck{
		m.checkBackend(ctx),
		m.checkMemory(),
		m.checkCache(),
		m.checkBreaker(),
	}
	healthy := true
	for _, c := range checks {
		if !c.Healthy {
			healthy = false
			break
		}
	}
	return types.HealthResponse{Healthy: healthy, Checks: checks, CheckedUnix: time.Now().Unix()}
}

func (m *Monitor) checkBackend(ctx context.Context) types.HealthCheck {
	check := types.HealthCheck{Name: "backend"}
	if m.cfg.Backend == nil {
		check.Detail = "not configured"
		return check
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.cfg.Backend.Probe(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			check.Detail = err.Error()
			return check
		}
		check.Healthy = true
		return check
	case <-ctx.Done():
		check.Detail = "probe timed out"
		return check
	}
}

func (m *Monitor) checkMemory() types.HealthCheck {
	check := types.HealthCheck{Name: "memory"}
	if m.cfg.Memory == nil {
		check.Detail = "not configured"
		return check
	}
	snap, ok := m.cfg.Memory.Latest()
	switch {
	case !ok:
		check.Detail = "no snapshot yet"
	case snap.Degraded:
		check.Detail = "probe degraded, snapshot stale"
	case time.Since(snap.Taken) > m.cfg.SnapshotMaxAge:
		check.Detail = fmt.Sprintf("snapshot stale by %s", time.Since(snap.Taken).Round(time.Second))
	default:
		check.Healthy = true
		check.Detail = fmt.Sprintf("%.1f%% used, trend %s", snap.Percent, m.cfg.Memory.Trend())
	}
	return check
}

func (m *Monitor) checkCache() types.HealthCheck {
	check := types.HealthCheck{Name: "cache"}
	if m.cfg.Cache == nil {
		check.Detail = "not configured"
		return check
	}
	st := m.cfg.Cache.Stats()
	ratio := 0.0
	if st.MaxEntries > 0 {
		ratio = float64(st.Entries) / float64(st.MaxEntries)
	}
	check.Healthy = true
	check.Detail = fmt.Sprintf("occupancy %.0f%% (%d/%d entries)", ratio*100, st.Entries, st.MaxEntries)
	return check
}

func (m *Monitor) checkBreaker() types.HealthCheck {
	check := types.HealthCheck{Name: "breaker"}
	if m.cfg.Breaker == nil {
		check.Detail = "not configured"
		return check
	}
	s := m.cfg.Breaker.Snapshot()
	check.Detail = string(s.State)
	check.Healthy = s.State != breaker.StateOpen
	return check
}

// Run polls Check on the given interval until ctx is cancelled, logging
// transitions between healthy and unhealthy.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	wasHealthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rep := m.Check(ctx)
			if rep.Healthy != wasHealthy {
				ev := m.cfg.Log.Warn()
				if rep.Healthy {
					ev = m.cfg.Log.Info()
				}
				ev.Bool("healthy", rep.Healthy).Msg("health state changed")
				wasHealthy = rep.Healthy
			}
		}
	}
}
