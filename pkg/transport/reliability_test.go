package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyglot/pkg/errors"
	"github.com/ajitpratap0/polyglot/pkg/protocol"
)

func fastConfig() ReliabilityConfig {
	return ReliabilityConfig{
		MaxRetries:         2,
		InitialRetryDelay:  time.Millisecond,
		MaxRetryDelay:      5 * time.Millisecond,
		RetryBackoffFactor: 2,
	}
}

func TestReliableCaller_RetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	next := CallerFunc(func(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
		if calls.Add(1) < 3 {
			return nil, errors.TransportError("send", stderrors.New("broken pipe"))
		}
		return json.RawMessage(`{"ok":true}`), nil
	})

	result, err := NewReliableCaller(next, fastConfig(), nil).SendRequest(context.Background(), "/hover", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, int32(3), calls.Load())
}

func TestReliableCaller_DoesNotRetryPeerErrors(t *testing.T) {
	var calls atomic.Int32
	next := CallerFunc(func(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
		calls.Add(1)
		return nil, &protocol.Error{Code: protocol.InvalidParams, Message: "bad"}
	})

	_, err := NewReliableCaller(next, fastConfig(), nil).SendRequest(context.Background(), "/hover", nil)
	var rpcErr *protocol.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReliableCaller_Exhausted(t *testing.T) {
	cause := errors.TransportError("send", stderrors.New("broken pipe"))
	next := CallerFunc(func(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
		return nil, cause
	})

	_, err := NewReliableCaller(next, fastConfig(), nil).SendRequest(context.Background(), "/hover", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.ErrorIs(t, err, cause)
}

func TestReliableCaller_CircuitBreaker(t *testing.T) {
	config := fastConfig()
	config.MaxRetries = 0
	config.CircuitBreaker = CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          20 * time.Millisecond,
	}

	var fail atomic.Bool
	fail.Store(true)
	next := CallerFunc(func(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
		if fail.Load() {
			return nil, stderrors.New("connection refused")
		}
		return json.RawMessage(`1`), nil
	})

	rc := NewReliableCaller(next, config, nil)
	for i := 0; i < 2; i++ {
		_, err := rc.SendRequest(context.Background(), "m", nil)
		require.Error(t, err)
	}
	assert.Equal(t, circuitOpen, rc.breaker.currentState())

	_, err := rc.SendRequest(context.Background(), "m", nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	fail.Store(false)
	time.Sleep(30 * time.Millisecond)
	_, err = rc.SendRequest(context.Background(), "m", nil)
	require.NoError(t, err)
	assert.Equal(t, circuitClosed, rc.breaker.currentState())
}

func TestReliableCaller_ContextCancelled(t *testing.T) {
	next := CallerFunc(func(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
		return nil, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReliableCaller(next, fastConfig(), nil).SendRequest(ctx, "m", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
