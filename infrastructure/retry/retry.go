// Package retry runs an operation under exponential backoff as an explicit
// state machine:
//
//	Idle -> Attempting -> (Succeeded | Failed | Cancelled | Exhausted | Waiting)
//	Waiting -> (Attempting | Cancelled)
//
// Waits are driven by a clock.Clock so cancellation and attempt limits can be
// exercised without real sleeps.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/clock"
)

var (
	// ErrExhausted wraps the last error once MaxAttempts retryable failures occurred.
	ErrExhausted = errors.New("retry attempts exhausted")
	// ErrCancelled wraps the context error when ctx ends before a result.
	ErrCancelled = errors.New("retry cancelled")
)

// State of a Machine.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateWaiting
	StateSucceeded
	StateFailed
	StateExhausted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateWaiting:
		return "waiting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Config controls attempts and delays.
type Config struct {
	// MaxAttempts includes the first call.
	MaxAttempts int

	BaseDelay time.Duration
	Factor    float64
	MaxDelay  time.Duration

	// Jitter is the upper bound of the random delay added to each wait.
	Jitter time.Duration

	IsRetryable func(error) bool
	Clock       clock.Clock

	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64

	// OnTransition observes every state change.
	OnTransition func(from, to State, attempt int, err error)
}

// DefaultConfig mirrors the upstream quota guidance: 4 attempts from 500ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		Factor:      2,
		MaxDelay:    10 * time.Second,
		Jitter:      250 * time.Millisecond,
		IsRetryable: DefaultIsRetryable,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.Factor < 1 {
		c.Factor = d.Factor
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.IsRetryable == nil {
		c.IsRetryable = d.IsRetryable
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Rand == nil {
		c.Rand = rand.Float64
	}
}

// Delay is the wait after the given failed attempt (1-based):
// BaseDelay*Factor^(attempt-1) plus jitter, capped at MaxDelay.
func (c Config) Delay(attempt int) time.Duration {
	exp := float64(c.BaseDelay) * math.Pow(c.Factor, float64(attempt-1))
	if c.Jitter > 0 && c.Rand != nil {
		exp += c.Rand() * float64(c.Jitter)
	}
	if exp > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(exp)
}

// Machine executes one operation. It is single use and not safe for
// concurrent Run calls.
type Machine struct {
	cfg     Config
	state   State
	attempt int
	err     error
}

// New returns an idle machine.
func New(cfg Config) *Machine {
	cfg.setDefaults()
	return &Machine{cfg: cfg}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Attempts returns how many times the operation has been invoked.
func (m *Machine) Attempts() int {
	return m.attempt
}

// Run drives the machine to a terminal state and returns its error.
//
// Succeeded returns nil. Failed returns the operation error unchanged.
// Exhausted wraps ErrExhausted and the last error. Cancelled wraps
// ErrCancelled and ctx.Err().
func (m *Machine) Run(ctx context.Context, op func(context.Context) error) error {
	for !m.state.Terminal() {
		switch m.state {
		case StateIdle:
			m.move(StateAttempting, nil)
		case StateAttempting:
			m.tryOnce(ctx, op)
		case StateWaiting:
			m.wait(ctx)
		}
	}
	return m.err
}

func (m *Machine) tryOnce(ctx context.Context, op func(context.Context) error) {
	if ctx.Err() != nil {
		m.cancel(ctx)
		return
	}

	m.attempt++
	err := op(ctx)

	switch {
	case err == nil:
		m.move(StateSucceeded, nil)
	case ctx.Err() != nil:
		m.cancel(ctx)
	case !m.cfg.IsRetryable(err):
		m.move(StateFailed, err)
	case m.attempt >= m.cfg.MaxAttempts:
		m.move(StateExhausted, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, m.attempt, err))
	default:
		m.move(StateWaiting, err)
	}
}

func (m *Machine) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.cancel(ctx)
	case <-m.cfg.Clock.After(m.cfg.Delay(m.attempt)):
		m.move(StateAttempting, m.err)
	}
}

func (m *Machine) cancel(ctx context.Context) {
	m.move(StateCancelled, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
}

func (m *Machine) move(to State, err error) {
	from := m.state
	m.state = to
	m.err = err
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(from, to, m.attempt, err)
	}
}

// Do runs op on a fresh machine.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	return New(cfg).Run(ctx, op)
}

var retryablePatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"unexpected eof",
	"no such host",
	"temporary failure",
	"network is unreachable",
}

// DefaultIsRetryable accepts network timeouts and common transient transport
// failures. Context errors are never retryable.
func DefaultIsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
