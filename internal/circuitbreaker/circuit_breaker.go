// Package circuitbreaker fails upstream calls fast after repeated transport
// or server failures. Each upstream gets its own Breaker.
//
//	closed    → open       FailureThreshold consecutive failures
//	open      → half_open  Timeout after opening
//	half_open → closed     SuccessThreshold consecutive probe successes
//	half_open → open       any probe failure
//
// While half open only one probe is in flight at a time; other calls are
// rejected as if the breaker were open.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker position. Its numeric value is exported as a gauge.
type State int

// Breaker states.
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
		return "half_open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned when a call is rejected without being sent.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config holds breaker thresholds. Zero values select the defaults.
type Config struct {
	FailureThreshold int           // default 5
	SuccessThreshold int           // default 1
	Timeout          time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Breaker guards a single upstream. Every call admitted by Allow must be
// followed by exactly one Success or Failure.
type Breaker struct {
	cfg      Config
	now      func() time.Time
	onChange func(State)

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probing   bool
	openedAt  time.Time
}

// New creates a Breaker. onChange, when non-nil, is called with the new
// state after every transition while the breaker lock is held, so it must
// not call back into the Breaker.
func New(cfg Config, onChange func(State)) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), now: time.Now, onChange: onChange}
}

// State returns the current state. An open breaker whose timeout has passed
// reports half_open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expire()
	return b.state
}

// Allow reports whether a call may be sent now. In half_open it admits one
// probe and rejects everything else until that probe is reported.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expire()
	switch b.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

// Success reports that an admitted call reached the upstream and got a
// non-5xx answer.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.probing = false
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures, b.successes = 0, 0
			b.set(StateClosed)
		}
	}
}

// Failure reports that an admitted call failed in transport or with a 5xx.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	}
}

// open must be called with b.mu held.
func (b *Breaker) open() {
	b.probing = false
	b.successes = 0
	b.openedAt = b.now()
	b.set(StateOpen)
}

// expire must be called with b.mu held.
func (b *Breaker) expire() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Timeout {
		b.successes = 0
		b.set(StateHalfOpen)
	}
}

func (b *Breaker) set(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onChange != nil {
		b.onChange(s)
	}
}
