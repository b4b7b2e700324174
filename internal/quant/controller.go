package quant

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"reflexiad/internal/complexity"
	"reflexiad/internal/resource"
)

// Reconfigurer switches the backend to a new tier. Implemented by the
// inference backend client.
type Reconfigurer interface {
	Reconfigure(ctx context.Context, tier Tier) error
}

// Defaults applied when corresponding ControllerConfig fields are unset.
const (
	defaultSoftPct = 80.0
	defaultHardPct = 90.0
)

// ControllerConfig encapsulates tunables for Controller construction.
type ControllerConfig struct {
	Ladder  Ladder
	SoftPct float64 // cap tier at one step above cheapest beyond this
	HardPct float64 // force the cheapest tier beyond this
	Backend Reconfigurer
	Log     zerolog.Logger
}

// Controller is a pure decision function over the inputs it is given; it
// holds no mutable state besides its configuration.
type Controller struct {
	ladder  Ladder
	softPct float64
	hardPct float64
	backend Reconfigurer
	log     zerolog.Logger
}

// NewController constructs a Controller from ControllerConfig.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		ladder:  cfg.Ladder,
		softPct: cfg.SoftPct,
		hardPct: cfg.HardPct,
		backend: cfg.Backend,
		log:     cfg.Log,
	}
	if len(c.ladder) == 0 {
		c.ladder = DefaultLadder()
	}
	if c.softPct <= 0 {
		c.softPct = defaultSoftPct
	}
	if c.hardPct <= 0 {
		c.hardPct = defaultHardPct
	}
	return c
}

// Ladder returns the configured tier ladder.
func (c *Controller) Ladder() Ladder { return c.ladder }

// reconfigureError wraps a backend reconfiguration failure so callers can
// tell it apart from a decision error. The request proceeds at the old tier.
type reconfigureError struct {
	tier Tier
	err  error
}

func (e reconfigureError) Error() string {
	return fmt.Sprintf("reconfigure to %s: %v", e.tier, e.err)
}

func (e reconfigureError) Unwrap() error { return e.err }

// IsReconfigureFailed reports whether err came from a rejected tier switch.
func IsReconfigureFailed(err error) bool {
	_, ok := err.(reconfigureError)
	return ok
}

// SelectTier decides the tier for a request and, when the decision differs
// from current, reconfigures the backend before returning.
//
// Precedence: hard memory threshold forces the cheapest tier (and may jump
// multiple steps); the soft threshold caps the tier at one step above
// cheapest; otherwise complexity maps linearly onto the ladder. Outside the
// hard override, movement is limited to one step per decision.
//
// If reconfiguration fails the returned tier is current, unchanged, along
// with the error: no silent tier drift on failure.
func (c *Controller) SelectTier(ctx context.Context, score complexity.Score, snap resource.Snapshot, current Tier) (Tier, error) {
	cur := c.ladder.Index(current)
	if cur < 0 {
		cur = 0
	}

	var target int
	hard := snap.Percent > c.hardPct
	switch {
	case hard:
		target = 0
	case snap.Percent > c.softPct:
		target = linearTarget(score.Value, len(c.ladder))
		if target > 1 {
			target = 1
		}
	default:
		target = linearTarget(score.Value, len(c.ladder))
	}

	// One step of movement per decision, except the hard override.
	if !hard {
		if target > cur+1 {
			target = cur + 1
		} else if target < cur-1 {
			target = cur - 1
		}
	}

	selected := c.ladder[target]
	if selected == current {
		return current, nil
	}
	if c.backend != nil {
		if err := c.backend.Reconfigure(ctx, selected); err != nil {
			c.log.Warn().Err(err).Str("from", string(current)).Str("to", string(selected)).
				Msg("tier reconfiguration rejected, keeping current tier")
			return current, reconfigureError{tier: selected, err: err}
		}
	}
	c.log.Info().Str("from", string(current)).Str("to", string(selected)).
		Float64("complexity", score.Value).Float64("mem_pct", snap.Percent).
		Msg("tier changed")
	return selected, nil
}

// linearTarget maps a [0,1] score onto ladder ordinals.
func linearTarget(v float64, n int) int {
	if n <= 1 {
		return 0
	}
	t := int(math.Round(v * float64(n-1)))
	if t < 0 {
		t = 0
	}
	if t > n-1 {
		t = n - 1
	}
	return t
}
