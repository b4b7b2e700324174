// Package breaker guards backend calls with a circuit breaker and an
// explicit retry policy so a misbehaving runtime cannot cascade failures.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State of the circuit.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned without invoking the wrapped call while the circuit is
// open. It is distinguishable from a genuine backend failure.
type openError struct{ name string }

func (e openError) Error() string { return "circuit open: " + e.name }

// IsOpen reports whether err is a fast-fail rejection from an open circuit.
func IsOpen(err error) bool {
	_, ok := err.(openError)
	return ok
}

// Defaults applied when corresponding Config fields are unset.
const (
	defaultFailureThreshold = 5
	defaultWindow           = 60 * time.Second
	defaultCooldown         = 30 * time.Second
)

// Config encapsulates tunables for Breaker construction.
type Config struct {
	Name             string
	FailureThreshold int
	Window           time.Duration // failures older than this stop counting
	Cooldown         time.Duration // open duration before a half-open trial
	// IsFailure classifies errors: only failures that are evidence of backend
	// unhealthiness should count. Defaults to "any non-nil error".
	IsFailure func(error) bool
	Log       zerolog.Logger

	// now is overridable for tests.
	now func() time.Time
}

// Breaker owns its circuit state exclusively; transitions and the failure
// counter mutate atomically under one mutex.
type Breaker struct {
	cfg Config

	mu               sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	lastTransition   time.Time
	halfOpenInFlight bool
}

// New constructs a Breaker from Config.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Do wraps fn: it is rejected immediately with an open-circuit error while
// the circuit is open, and its outcome feeds the failure counter otherwise.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.allow()
	if err != nil {
		return err
	}
	callErr := fn(ctx)
	b.record(callErr, trial)
	return callErr
}

// Probe runs fn through the circuit gate without feeding the failure
// counter and without consuming the half-open trial slot. Used by explicit
// health probes.
func (b *Breaker) Probe(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	if b.state == StateOpen && b.cfg.now().Sub(b.lastTransition) <= b.cfg.Cooldown {
		name := b.cfg.Name
		b.mu.Unlock()
		return openError{name: name}
	}
	b.mu.Unlock()
	return fn(ctx)
}

// Snapshot is a read-only view of the circuit for status reporting.
type Snapshot struct {
	State          State
	Failures       int
	LastTransition time.Time
}

// Snapshot returns the current circuit view.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{State: b.state, Failures: b.failures, LastTransition: b.lastTransition}
}

// allow gates a call. It returns trial=true when the call is the single
// half-open trial.
func (b *Breaker) allow() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.cfg.now()

	switch b.state {
	case StateOpen:
		if now.Sub(b.lastTransition) <= b.cfg.Cooldown {
			return false, openError{name: b.cfg.Name}
		}
		b.transition(StateHalfOpen, now)
		b.halfOpenInFlight = true
		return true, nil
	case StateHalfOpen:
		if b.halfOpenInFlight {
			// a trial is already probing the backend
			return false, openError{name: b.cfg.Name}
		}
		b.halfOpenInFlight = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) record(err error, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.cfg.now()

	if trial {
		b.halfOpenInFlight = false
	}

	if !b.cfg.IsFailure(err) {
		// success, or a caller error that says nothing about backend health
		if err == nil && b.state == StateHalfOpen {
			b.failures = 0
			b.transition(StateClosed, now)
		}
		return
	}

	if b.state == StateHalfOpen {
		// failed trial reopens the circuit and restarts the cooldown
		b.transition(StateOpen, now)
		return
	}

	// failures outside the sliding window no longer count
	if !b.lastFailure.IsZero() && now.Sub(b.lastFailure) > b.cfg.Window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now
	if b.state == StateClosed && b.failures >= b.cfg.FailureThreshold {
		b.transition(StateOpen, now)
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	b.cfg.Log.Warn().Str("breaker", b.cfg.Name).Str("from", string(b.state)).Str("to", string(to)).
		Int("failures", b.failures).Msg("circuit state change")
	b.state = to
	b.lastTransition = now
	if to == StateClosed {
		b.failures = 0
		b.lastFailure = time.Time{}
	}
}
