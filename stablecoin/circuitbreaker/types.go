package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrNotRegistered is returned by Execute for a service without a breaker.
	ErrNotRegistered = errors.New("circuit breaker not registered")
	// ErrOpen is returned while a breaker rejects calls.
	ErrOpen = errors.New("circuit breaker open")
	// ErrTooManyRequests is returned when a half-open breaker is saturated.
	ErrTooManyRequests = errors.New("circuit breaker half-open: too many requests")
)

// Manager manages circuit breakers for remote services.
type Manager interface {
	// GetOrCreate returns the existing breaker for serviceName or creates one.
	GetOrCreate(serviceName string, config Config) CircuitBreaker

	// Execute runs fn through the named breaker.
	Execute(serviceName string, fn func() (any, error)) (any, error)

	GetState(serviceName string) State
	GetCounts(serviceName string) Counts

	// IsHealthy reports whether the breaker is closed.
	IsHealthy(serviceName string) bool

	// Reset recreates the breaker in the closed state with its stored config.
	Reset(serviceName string)

	RegisterStateChangeListener(listener StateChangeListener)
}

// CircuitBreaker is a single named breaker.
type CircuitBreaker interface {
	Execute(fn func() (any, error)) (any, error)
	State() State
	Counts() Counts
}

// Config holds circuit breaker configuration.
type Config struct {
	MaxRequests         uint32        // max requests in half-open state
	Interval            time.Duration // closed-state window after which counts reset
	Timeout             time.Duration // open-state duration before half-open
	ConsecutiveFailures uint32        // consecutive failures that open the breaker
	FailureRatio        float64       // failure ratio that opens the breaker
	MinRequests         uint32        // requests before the ratio is considered
}

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Counts represents circuit breaker statistics.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// StateChangeListener is notified when a breaker changes state.
type StateChangeListener interface {
	OnStateChange(serviceName string, from State, to State)
}

// StateChangeFunc adapts a function to StateChangeListener.
type StateChangeFunc func(serviceName string, from State, to State)

// OnStateChange implements StateChangeListener.
func (f StateChangeFunc) OnStateChange(serviceName string, from State, to State) {
	f(serviceName, from, to)
}

type circuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func (cb *circuitBreaker) Execute(fn func() (any, error)) (any, error) {
	return cb.breaker.Execute(fn)
}

func (cb *circuitBreaker) State() State {
	return convertState(cb.breaker.State())
}

func (cb *circuitBreaker) Counts() Counts {
	return convertCounts(cb.breaker.Counts())
}

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

func convertCounts(counts gobreaker.Counts) Counts {
	return Counts{
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}
