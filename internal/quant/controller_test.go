package quant

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"reflexiad/internal/complexity"
	"reflexiad/internal/resource"
)

type fakeBackend struct {
	calls []Tier
	err   error
}

func (f *fakeBackend) Reconfigure(_ context.Context, t Tier) error {
	f.calls = append(f.calls, t)
	return f.err
}

func newTestController(b Reconfigurer) *Controller {
	return NewController(ControllerConfig{Backend: b, Log: zerolog.Nop()})
}

func snapAt(pct float64) resource.Snapshot { return resource.Snapshot{Percent: pct} }

func TestHardThresholdForcesCheapest(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	got, err := c.SelectTier(context.Background(), complexity.Score{Value: 1.0}, snapAt(96), "f16")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != c.Ladder().Cheapest() {
		t.Fatalf("expected cheapest tier under hard pressure, got %s", got)
	}
	if len(b.calls) != 1 || b.calls[0] != "q4_0" {
		t.Fatalf("expected one reconfigure to q4_0, got %v", b.calls)
	}
}

func TestSoftThresholdCapsDescentOneStep(t *testing.T) {
	c := newTestController(&fakeBackend{})
	// soft pressure with a precise current tier: walk down one step per call
	got, err := c.SelectTier(context.Background(), complexity.Score{Value: 0.9}, snapAt(85), "q8_0")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "q5_k_m" {
		t.Fatalf("expected one-step descent to q5_k_m, got %s", got)
	}
}

func TestComplexityMapsLinearly(t *testing.T) {
	c := newTestController(&fakeBackend{})
	cases := []struct {
		complexity float64
		current    Tier
		want       Tier
	}{
		{0.0, "q4_0", "q4_0"},
		{1.0, "q8_0", "f16"},
		{0.5, "q4_k_m", "q5_k_m"},
	}
	for _, tc := range cases {
		got, err := c.SelectTier(context.Background(), complexity.Score{Value: tc.complexity}, snapAt(50), tc.current)
		if err != nil {
			t.Fatalf("select(%v): %v", tc.complexity, err)
		}
		if got != tc.want {
			t.Fatalf("complexity %v from %s: expected %s, got %s", tc.complexity, tc.current, tc.want, got)
		}
	}
}

func TestMovementRateLimitedToOneStep(t *testing.T) {
	c := newTestController(&fakeBackend{})
	// high complexity but current at cheapest: only one step up per decision
	got, err := c.SelectTier(context.Background(), complexity.Score{Value: 1.0}, snapAt(40), "q4_0")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "q4_k_m" {
		t.Fatalf("expected single-step move to q4_k_m, got %s", got)
	}
}

func TestNoChangeSkipsReconfigure(t *testing.T) {
	b := &fakeBackend{}
	c := newTestController(b)
	got, err := c.SelectTier(context.Background(), complexity.Score{Value: 0.5}, snapAt(50), "q5_k_m")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "q5_k_m" {
		t.Fatalf("expected unchanged tier, got %s", got)
	}
	if len(b.calls) != 0 {
		t.Fatalf("expected no reconfigure call, got %v", b.calls)
	}
}

func TestReconfigureFailureKeepsCurrentTier(t *testing.T) {
	b := &fakeBackend{err: errors.New("backend rejected switch")}
	c := newTestController(b)
	got, err := c.SelectTier(context.Background(), complexity.Score{Value: 1.0}, snapAt(40), "q4_0")
	if err == nil || !IsReconfigureFailed(err) {
		t.Fatalf("expected reconfigure failure, got %v", err)
	}
	if got != "q4_0" {
		t.Fatalf("expected current tier preserved on failure, got %s", got)
	}
}

func TestUnknownCurrentTreatedAsCheapest(t *testing.T) {
	c := newTestController(&fakeBackend{})
	got, err := c.SelectTier(context.Background(), complexity.Score{Value: 0}, snapAt(50), "bogus")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "q4_0" {
		t.Fatalf("expected cheapest for unknown current, got %s", got)
	}
}

func TestLadderValidate(t *testing.T) {
	if err := (Ladder{}).Validate(); err == nil {
		t.Fatalf("expected error for empty ladder")
	}
	if err := (Ladder{"a", "a"}).Validate(); err == nil {
		t.Fatalf("expected error for duplicate tiers")
	}
	if err := DefaultLadder().Validate(); err != nil {
		t.Fatalf("default ladder should validate: %v", err)
	}
}
