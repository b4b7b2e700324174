package manager

import (
	"time"

	"reflexiad/internal/breaker"
	"reflexiad/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	tier := m.tier
	start := m.startTime
	m.mu.Unlock()

	now := time.Now()
	resp := types.StatusResponse{
		State:          "ready",
		Tier:           string(tier),
		UptimeSeconds:  int64(now.Sub(start).Seconds()),
		ServerTimeUnix: now.Unix(),
	}

	if snap, ok := m.monitor.Latest(); ok {
		resp.Memory = types.MemoryStatus{
			UsedBytes:   snap.UsedBytes,
			TotalBytes:  snap.TotalBytes,
			Percent:     snap.Percent,
			Trend:       string(m.monitor.Trend()),
			Degraded:    snap.Degraded,
			SampledUnix: snap.Taken.Unix(),
		}
		if snap.Degraded {
			resp.State = "degraded"
		}
	}

	st := m.cache.Stats()
	resp.Cache = types.CacheStatus{
		Entries:      st.Entries,
		MaxEntries:   st.MaxEntries,
		SizeBytes:    st.SizeBytes,
		MaxSizeBytes: st.MaxSizeBytes,
		Hits:         st.Hits,
		Misses:       st.Misses,
		Evictions:    st.Evictions,
	}

	bs := m.brk.Snapshot()
	resp.Breaker = types.BreakerStatus{
		State:    string(bs.State),
		Failures: bs.Failures,
	}
	if !bs.LastTransition.IsZero() {
		resp.Breaker.LastTransitionUnix = bs.LastTransition.Unix()
	}
	if bs.State == breaker.StateOpen {
		resp.State = "degraded"
	}
	return resp
}
