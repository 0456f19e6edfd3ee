// Package circuitbreaker keeps per-resource circuit state for upstream calls.
//
// Each resource key moves closed -> open after FailureThreshold consecutive
// failures. While open, calls are rejected without I/O until the cooldown
// elapses; the next call is then let through as a half-open trial whose
// outcome closes or reopens the circuit.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/clock"
)

// ErrCircuitOpen is matched by every rejection from an open circuit.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is the concrete rejection. It unwraps to ErrCircuitOpen.
type OpenError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open for %s: retry after %s", e.Key, e.RetryAfter.Round(time.Millisecond))
}

func (e *OpenError) Unwrap() error {
	return ErrCircuitOpen
}

// State of one circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 60 * time.Second
)

// Config for a Registry.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	Clock            clock.Clock
	// OnStateChange runs synchronously under the registry lock; keep it cheap.
	OnStateChange func(key string, from, to State)
}

type circuit struct {
	state               State
	consecutiveFailures int
	openUntil           time.Time
	trialInFlight       bool
}

// Registry holds one circuit per resource key. The zero value is not usable.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	circuits map[string]*circuit
}

// New returns an empty registry.
func New(cfg Config) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Registry{cfg: cfg, circuits: make(map[string]*circuit)}
}

// Allow reports whether a call against key may proceed. A nil return from a
// half-open circuit reserves the single trial slot; the caller must follow up
// with exactly one of RecordSuccess, RecordFailure or RecordCancelled.
func (r *Registry) Allow(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(key)
	now := r.cfg.Clock.Now()

	switch c.state {
	case StateOpen:
		if now.Before(c.openUntil) {
			return &OpenError{Key: key, RetryAfter: c.openUntil.Sub(now)}
		}
		r.transition(key, c, StateHalfOpen)
		c.trialInFlight = true
		return nil
	case StateHalfOpen:
		if c.trialInFlight {
			return &OpenError{Key: key, RetryAfter: 0}
		}
		c.trialInFlight = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess resets the failure streak and closes the circuit.
func (r *Registry) RecordSuccess(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(key)
	c.consecutiveFailures = 0
	c.trialInFlight = false
	r.transition(key, c, StateClosed)
}

// RecordFailure counts one failed call. Reaching the threshold, or failing a
// half-open trial, opens the circuit for the cooldown.
func (r *Registry) RecordFailure(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.get(key)
	c.consecutiveFailures++
	c.trialInFlight = false

	if c.state == StateHalfOpen || c.consecutiveFailures >= r.cfg.FailureThreshold {
		c.openUntil = r.cfg.Clock.Now().Add(r.cfg.Cooldown)
		r.transition(key, c, StateOpen)
	}
}

// RecordCancelled releases a half-open trial without touching statistics.
func (r *Registry) RecordCancelled(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.circuits[key]; ok {
		c.trialInFlight = false
	}
}

// Reset forgets all state for key.
func (r *Registry) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.circuits[key]; ok {
		r.transition(key, c, StateClosed)
		delete(r.circuits, key)
	}
}

// Status is a read-only view of one circuit.
type Status struct {
	Key                 string    `json:"key"`
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	OpenUntil           time.Time `json:"openUntil,omitzero"`
}

// Status returns the view for key. Unknown keys report closed.
func (r *Registry) Status(key string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.circuits[key]
	if !ok {
		return Status{Key: key, State: StateClosed.String()}
	}
	return r.view(key, c)
}

// Snapshot returns every known circuit sorted by key.
func (r *Registry) Snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.circuits))
	for key, c := range r.circuits {
		out = append(out, r.view(key, c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (r *Registry) view(key string, c *circuit) Status {
	st := c.state
	// An elapsed cooldown is reported as half-open even before the next Allow.
	if st == StateOpen && !r.cfg.Clock.Now().Before(c.openUntil) {
		st = StateHalfOpen
	}
	s := Status{Key: key, State: st.String(), ConsecutiveFailures: c.consecutiveFailures}
	if c.state == StateOpen {
		s.OpenUntil = c.openUntil
	}
	return s
}

func (r *Registry) get(key string) *circuit {
	c, ok := r.circuits[key]
	if !ok {
		c = &circuit{state: StateClosed}
		r.circuits[key] = c
	}
	return c
}

func (r *Registry) transition(key string, c *circuit, to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	if r.cfg.OnStateChange != nil {
		r.cfg.OnStateChange(key, from, to)
	}
}
