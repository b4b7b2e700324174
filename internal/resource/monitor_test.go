package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeProbe returns scripted readings, then repeats the last one.
type fakeProbe struct {
	used  []uint64
	total uint64
	calls int
	fail  bool
}

func (f *fakeProbe) CurrentMemory() (uint64, uint64, error) {
	if f.fail {
		return 0, 0, errors.New("probe down")
	}
	i := f.calls
	if i >= len(f.used) {
		i = len(f.used) - 1
	}
	f.calls++
	return f.used[i], f.total, nil
}

func newTestMonitor(p Probe, size int) *Monitor {
	return NewMonitor(MonitorConfig{Probe: p, HistorySize: size, Log: zerolog.Nop()})
}

func TestSamplePercentAndHistoryOrder(t *testing.T) {
	p := &fakeProbe{used: []uint64{25, 50, 75}, total: 100}
	m := newTestMonitor(p, 10)
	for i := 0; i < 3; i++ {
		m.Sample()
	}
	hist := m.History()
	if len(hist) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(hist))
	}
	if hist[0].Percent != 25 || hist[2].Percent != 75 {
		t.Fatalf("history not oldest-first: %+v", hist)
	}
	for i := 1; i < len(hist); i++ {
		if !hist[i].Taken.After(hist[i-1].Taken) {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}
}

func TestRingEvictsOldest(t *testing.T) {
	p := &fakeProbe{used: []uint64{1, 2, 3, 4, 5}, total: 100}
	m := newTestMonitor(p, 3)
	for i := 0; i < 5; i++ {
		m.Sample()
	}
	hist := m.History()
	if len(hist) != 3 {
		t.Fatalf("expected ring bounded at 3, got %d", len(hist))
	}
	if hist[0].Percent != 3 || hist[2].Percent != 5 {
		t.Fatalf("unexpected ring contents: %+v", hist)
	}
}

func TestTrendRisingAndFalling(t *testing.T) {
	rise := &fakeProbe{used: []uint64{10, 30, 50, 70}, total: 100}
	m := newTestMonitor(rise, 10)
	for i := 0; i < 4; i++ {
		m.Sample()
	}
	if got := m.Trend(); got != TrendRising {
		t.Fatalf("expected rising, got %s", got)
	}

	fall := &fakeProbe{used: []uint64{70, 50, 30, 10}, total: 100}
	m2 := newTestMonitor(fall, 10)
	for i := 0; i < 4; i++ {
		m2.Sample()
	}
	if got := m2.Trend(); got != TrendFalling {
		t.Fatalf("expected falling, got %s", got)
	}
}

func TestTrendStableWithFewSamples(t *testing.T) {
	m := newTestMonitor(&fakeProbe{used: []uint64{50}, total: 100}, 10)
	if got := m.Trend(); got != TrendStable {
		t.Fatalf("expected stable with no samples, got %s", got)
	}
	m.Sample()
	if got := m.Trend(); got != TrendStable {
		t.Fatalf("expected stable with one sample, got %s", got)
	}
}

func TestProbeFailureRetainsPreviousSnapshot(t *testing.T) {
	p := &fakeProbe{used: []uint64{40}, total: 100}
	m := newTestMonitor(p, 10)
	m.Sample()
	p.fail = true
	snap := m.Sample()
	if !snap.Degraded {
		t.Fatalf("expected degraded snapshot after probe failure")
	}
	if snap.Percent != 40 {
		t.Fatalf("expected previous reading retained, got %v", snap.Percent)
	}
	// monitor keeps sampling after a failure
	p.fail = false
	next := m.Sample()
	if next.Degraded {
		t.Fatalf("expected recovery after probe comes back")
	}
}

func TestStartStopAndPressureCallback(t *testing.T) {
	var fired atomic.Int32
	p := &fakeProbe{used: []uint64{95}, total: 100}
	m := NewMonitor(MonitorConfig{
		Probe:       p,
		Interval:    5 * time.Millisecond,
		HistorySize: 4,
		PressurePct: 90,
		OnPressure:  func(Snapshot) { fired.Add(1) },
		Log:         zerolog.Nop(),
	})
	m.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	if fired.Load() == 0 {
		t.Fatalf("expected pressure callback to fire")
	}
	if _, ok := m.Latest(); !ok {
		t.Fatalf("expected at least one snapshot after Start")
	}
	// Stop is idempotent
	m.Stop()
}
