package transport

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/logging"
	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

// ReliabilityConfig configures retries and circuit breaking for a Caller.
type ReliabilityConfig struct {
	MaxRetries         int                  `json:"max_retries"`
	InitialRetryDelay  time.Duration        `json:"initial_retry_delay"`
	MaxRetryDelay      time.Duration        `json:"max_retry_delay"`
	RetryBackoffFactor float64              `json:"retry_backoff_factor"`
	CircuitBreaker     CircuitBreakerConfig `json:"circuit_breaker"`
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Timeout          time.Duration `json:"timeout"`
}

// DefaultReliabilityConfig returns the default retry and breaker settings.
func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		MaxRetries:         3,
		InitialRetryDelay:  100 * time.Millisecond,
		MaxRetryDelay:      5 * time.Second,
		RetryBackoffFactor: 2.0,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

// ErrCircuitOpen is returned while the circuit breaker rejects calls.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// ReliableCaller retries failed calls on the wrapped Caller.
type ReliableCaller struct {
	next    Caller
	config  ReliabilityConfig
	breaker *circuitBreaker
	logger  logging.Logger
}

// NewReliableCaller wraps next with retries and an optional circuit breaker.
func NewReliableCaller(next Caller, config ReliabilityConfig, logger logging.Logger) *ReliableCaller {
	if logger == nil {
		logger = logging.NewNop()
	}
	rc := &ReliableCaller{
		next:   next,
		config: config,
		logger: logger.WithFields(logging.Component("transport"), logging.String("operation", "retry")),
	}
	if config.CircuitBreaker.Enabled {
		rc.breaker = &circuitBreaker{config: config.CircuitBreaker}
	}
	return rc
}

// SendRequest implements Caller.
func (rc *ReliableCaller) SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if rc.breaker != nil && !rc.breaker.allow() {
		return nil, errors.Wrap(ErrCircuitOpen, errors.CodeProviderUnavailable, "Remote provider unavailable",
			errors.CategoryTransport, errors.SeverityError).
			WithContext(&errors.Context{Method: method, Component: "transport", Operation: "circuit_breaker_check"})
	}

	var lastErr error
	maxAttempts := rc.config.MaxRetries + 1

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 0 {
			delay := rc.backoff(attempt)
			rc.logger.Debug("retrying call",
				logging.String("method", method),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay))

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		result, err := rc.next.SendRequest(ctx, method, params)
		if err == nil {
			rc.recordSuccess()
			return result, nil
		}

		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		rc.recordFailure()
		rc.logger.WithError(err).Warn("call failed",
			logging.String("method", method),
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", maxAttempts))
	}

	return nil, errors.Wrap(lastErr, errors.CodeTransportError,
		fmt.Sprintf("Request failed after %d attempts", maxAttempts),
		errors.CategoryTransport, errors.SeverityError).
		WithContext(&errors.Context{Method: method, Component: "transport", Operation: "retry_exhausted"})
}

func (rc *ReliableCaller) recordSuccess() {
	if rc.breaker != nil {
		rc.breaker.recordSuccess()
	}
}

func (rc *ReliableCaller) recordFailure() {
	if rc.breaker != nil {
		rc.breaker.recordFailure()
	}
}

// isRetryable reports whether err is a transport failure worth retrying.
// Replies from the peer and cancellations are final.
func isRetryable(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var rpcErr *protocol.Error
	if stderrors.As(err, &rpcErr) {
		return false
	}

	if e, ok := errors.As(err); ok {
		return e.Category() == errors.CategoryTransport
	}
	return true
}

func (rc *ReliableCaller) backoff(attempt int) time.Duration {
	backoff := float64(rc.config.InitialRetryDelay) * math.Pow(rc.config.RetryBackoffFactor, float64(attempt-1))
	if limit := float64(rc.config.MaxRetryDelay); limit > 0 && backoff > limit {
		backoff = limit
	}

	// ±10% jitter
	if r, err := secureRandFloat64(); err == nil {
		backoff += backoff * 0.1 * (r*2 - 1)
	}
	return time.Duration(backoff)
}

func secureRandFloat64() (float64, error) {
	n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0, err
	}
	return float64(n.Int64()) / float64(1<<53), nil
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

type circuitBreaker struct {
	mu        sync.Mutex
	config    CircuitBreakerConfig
	state     circuitState
	failures  int
	successes int
	openedAt  time.Time
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == circuitOpen {
		if time.Since(cb.openedAt) <= cb.config.Timeout {
			return false
		}
		cb.state = circuitHalfOpen
		cb.successes = 0
	}
	return true
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == circuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = circuitClosed
		}
	}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == circuitHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = circuitOpen
		cb.openedAt = time.Now()
	}
}

func (cb *circuitBreaker) currentState() circuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
