// Package circuit guards calls to an unreliable dependency. After enough
// consecutive failures a breaker opens and rejects calls until a cooldown
// passes, then lets a limited number of trial calls through.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the breaker state
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

var (
	// ErrOpen is returned while the breaker rejects calls.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrTooManyTrials is returned when the half-open trial budget is spent.
	ErrTooManyTrials = errors.New("circuit breaker trial budget exhausted")
)

// Config contains breaker configuration
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32 `yaml:"failure_threshold"`
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration `yaml:"cooldown"`
	// HalfOpenTrials is how many calls may run while half open.
	HalfOpenTrials uint32 `yaml:"half_open_trials"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, Cooldown: 30 * time.Second, HalfOpenTrials: 1}
}

// Counts is a snapshot of breaker activity.
type Counts struct {
	Requests            uint64
	Failures            uint64
	Rejected            uint64
	ConsecutiveFailures uint32
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name     string
	cfg      Config
	now      func() time.Time
	onChange func(name string, from, to State)

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	trials   uint32
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithStateChange registers a callback run on every transition. It is
// called with the breaker lock held and must not call back into it.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) { b.onChange = fn }
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(name string, cfg Config, opts ...Option) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HalfOpenTrials == 0 {
		cfg.HalfOpenTrials = def.HalfOpenTrials
	}
	b := &Breaker{name: name, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker name
func (b *Breaker) Name() string { return b.name }

// Do runs fn if the breaker allows it. Context cancellation is not
// counted against the dependency.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refreshLocked()
	switch b.state {
	case StateOpen:
		b.counts.Rejected++
		return ErrOpen
	case StateHalfOpen:
		if b.trials >= b.cfg.HalfOpenTrials {
			b.counts.Rejected++
			return ErrTooManyTrials
		}
		b.trials++
	}
	b.counts.Requests++
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		if b.state == StateHalfOpen && b.trials > 0 {
			b.trials--
		}
		return
	}

	if err == nil {
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.setStateLocked(StateClosed)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	switch b.state {
	case StateHalfOpen:
		b.setStateLocked(StateOpen)
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.cfg.FailureThreshold {
			b.setStateLocked(StateOpen)
		}
	}
}

// refreshLocked moves an open breaker to half open once the cooldown has passed.
func (b *Breaker) refreshLocked() {
	if b.state == StateOpen && !b.now().Before(b.openedAt.Add(b.cfg.Cooldown)) {
		b.setStateLocked(StateHalfOpen)
	}
}

func (b *Breaker) setStateLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.trials = 0
	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateClosed:
		b.counts.ConsecutiveFailures = 0
	}
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

// Counts returns a copy of the counters
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(StateClosed)
	b.counts = Counts{}
}

// Set holds one breaker per key, created on first use.
type Set struct {
	cfg  Config
	opts []Option

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewSet creates an empty set whose breakers share cfg and opts.
func NewSet(cfg Config, opts ...Option) *Set {
	return &Set{cfg: cfg, opts: opts, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key, creating it if needed.
func (s *Set) Get(key string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[key]; ok {
		return b
	}
	b = NewBreaker(key, s.cfg, s.opts...)
	s.breakers[key] = b
	return b
}

// States returns the state of every breaker by key.
func (s *Set) States() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(s.breakers))
	for k, b := range s.breakers {
		out[k] = b.State()
	}
	return out
}
