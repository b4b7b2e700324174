// Package quant selects an inference precision tier from complexity and
// memory pressure, and drives backend reconfiguration on tier changes.
package quant

import "fmt"

// Tier names one precision/quantization level offered by the backend.
type Tier string

// Ladder is an ordered set of tiers, cheapest first, most precise last.
type Ladder []Tier

// DefaultLadder mirrors the common llama.cpp quantization progression.
func DefaultLadder() Ladder {
	return Ladder{"q4_0", "q4_k_m", "q5_k_m", "q8_0", "f16"}
}

// Index returns the ordinal of t within the ladder, or -1 when absent.
func (l Ladder) Index(t Tier) int {
	for i, c := range l {
		if c == t {
			return i
		}
	}
	return -1
}

// Cheapest returns the first tier of the ladder.
func (l Ladder) Cheapest() Tier { return l[0] }

// Validate rejects empty or duplicated ladders.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("tier ladder is empty")
	}
	seen := make(map[Tier]struct{}, len(l))
	for _, t := range l {
		if t == "" {
			return fmt.Errorf("tier ladder contains empty tier")
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("tier ladder contains duplicate tier %q", t)
		}
		seen[t] = struct{}{}
	}
	return nil
}
