// Package resource samples host memory and derives a pressure trend.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Trend describes the direction of memory pressure over the retained window.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// Snapshot is one memory sample. Snapshots are superseded, never mutated.
type Snapshot struct {
	UsedBytes  uint64
	TotalBytes uint64
	Percent    float64 // 0-100
	Taken      time.Time
	// Degraded is set when the probe failed and this snapshot carries the
	// previous reading forward.
	Degraded bool
}

// slope magnitude (percent per second) below which the trend reads stable.
const stableSlope = 0.1

// Defaults applied when corresponding MonitorConfig fields are unset.
const (
	defaultInterval    = 5 * time.Second
	defaultHistorySize = 10
)

// MonitorConfig encapsulates tunables for Monitor construction.
type MonitorConfig struct {
	Probe       Probe
	Interval    time.Duration
	HistorySize int
	// PressurePct triggers OnPressure when a sample's percent-used meets or
	// exceeds it. Zero disables the callback.
	PressurePct float64
	// OnPressure is invoked (outside the monitor lock) at most once per tick
	// while above PressurePct.
	OnPressure func(Snapshot)
	Log        zerolog.Logger
}

// Monitor owns a bounded ring of snapshots. The background tick is the single
// writer; readers observe a consistent latest snapshot without blocking it.
type Monitor struct {
	probe       Probe
	interval    time.Duration
	pressurePct float64
	onPressure  func(Snapshot)
	log         zerolog.Logger

	mu      sync.RWMutex
	ring    []Snapshot
	size    int
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewMonitor constructs a Monitor from MonitorConfig.
func NewMonitor(cfg MonitorConfig) *Monitor {
	m := &Monitor{
		probe:       cfg.Probe,
		interval:    cfg.Interval,
		pressurePct: cfg.PressurePct,
		onPressure:  cfg.OnPressure,
		log:         cfg.Log,
		size:        cfg.HistorySize,
	}
	if m.interval <= 0 {
		m.interval = defaultInterval
	}
	if m.size <= 0 {
		m.size = defaultHistorySize
	}
	m.ring = make([]Snapshot, 0, m.size)
	return m
}

// Sample takes a snapshot now, appends it to the ring and returns it.
// On probe failure the previous snapshot is carried forward with Degraded set;
// the monitor never gives up on a single failed sample.
func (m *Monitor) Sample() Snapshot {
	used, total, err := m.probe.CurrentMemory()
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var snap Snapshot
	if err != nil {
		m.log.Warn().Err(err).Msg("memory probe failed, retaining previous snapshot")
		if n := len(m.ring); n > 0 {
			snap = m.ring[n-1]
		}
		snap.Degraded = true
		snap.Taken = now
	} else {
		pct := 0.0
		if total > 0 {
			pct = float64(used) / float64(total) * 100
		}
		snap = Snapshot{UsedBytes: used, TotalBytes: total, Percent: pct, Taken: now}
	}
	// Timestamps must be strictly increasing across consecutive samples.
	if n := len(m.ring); n > 0 && !snap.Taken.After(m.ring[n-1].Taken) {
		snap.Taken = m.ring[n-1].Taken.Add(time.Nanosecond)
	}
	if len(m.ring) == m.size {
		copy(m.ring, m.ring[1:])
		m.ring[len(m.ring)-1] = snap
	} else {
		m.ring = append(m.ring, snap)
	}
	return snap
}

// Latest returns the most recent snapshot and whether one exists.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.ring) == 0 {
		return Snapshot{}, false
	}
	return m.ring[len(m.ring)-1], true
}

// History returns the retained snapshots, oldest first.
func (m *Monitor) History() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, len(m.ring))
	copy(out, m.ring)
	return out
}

// Trend computes the pressure direction from the slope between the oldest and
// newest retained samples, in percent per second.
func (m *Monitor) Trend() Trend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.ring) < 2 {
		return TrendStable
	}
	oldest := m.ring[0]
	newest := m.ring[len(m.ring)-1]
	dt := newest.Taken.Sub(oldest.Taken).Seconds()
	if dt <= 0 {
		return TrendStable
	}
	slope := (newest.Percent - oldest.Percent) / dt
	switch {
	case slope > stableSlope:
		return TrendRising
	case slope < -stableSlope:
		return TrendFalling
	default:
		return TrendStable
	}
}

// Start launches the periodic sampling task. It samples once immediately so
// callers have a snapshot before the first tick. Safe to call once.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.tick()
	go m.run(ctx)
}

// Stop cancels the background task and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done, started := m.cancel, m.done, m.started
	m.started = false
	m.mu.Unlock()
	if !started || cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	snap := m.Sample()
	if m.pressurePct > 0 && m.onPressure != nil && !snap.Degraded && snap.Percent >= m.pressurePct {
		m.log.Warn().Float64("percent", snap.Percent).Msg("memory pressure above threshold")
		m.onPressure(snap)
	}
}
