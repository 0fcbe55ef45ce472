package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/cadenza-chat/cadenza/pkg/utils"
)

// breakerState is the circuit breaker state.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

const (
	defaultMaxRetries       = 2
	defaultFailureThreshold = 5
	defaultOpenDuration     = 30 * time.Second
	retryBaseDelay          = 200 * time.Millisecond
)

// circuitBreaker tracks consecutive provider failures. After the threshold
// is hit the breaker opens and calls fail fast until the cool-off elapses;
// the first call after cool-off probes in half-open state.
type circuitBreaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	threshold    int
	openDuration time.Duration
	openedAt     time.Time
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{
		threshold:    defaultFailureThreshold,
		openDuration: defaultOpenDuration,
	}
}

// allow reports whether a call may proceed.
func (b *circuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if time.Since(b.openedAt) >= b.openDuration {
			b.state = breakerHalfOpen
			return nil
		}
		return fmt.Errorf("model circuit breaker open, retry after %s", b.openDuration-time.Since(b.openedAt))
	default: // half-open: single probe in flight policy is best-effort
		return nil
	}
}

func (b *circuitBreaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = breakerClosed
}

func (b *circuitBreaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		b.openedAt = time.Now()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = time.Now()
	}
}

// ResilientChatModel wraps a chat model with retry and a circuit breaker.
// It implements model.ToolCallingChatModel so it drops in wherever the raw
// provider client would be used.
type ResilientChatModel struct {
	inner      einoModel.ToolCallingChatModel
	maxRetries int
	breaker    *circuitBreaker
}

// WrapResilient wraps a chat model with the default retry/breaker policy.
func WrapResilient(inner einoModel.ToolCallingChatModel) *ResilientChatModel {
	return &ResilientChatModel{
		inner:      inner,
		maxRetries: defaultMaxRetries,
		breaker:    newCircuitBreaker(),
	}
}

// Generate calls the wrapped model, retrying transient failures with
// exponential backoff.
func (r *ResilientChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := r.breaker.allow(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		out, err := r.inner.Generate(ctx, input, opts...)
		if err == nil {
			r.breaker.onSuccess()
			return out, nil
		}
		r.breaker.onFailure()
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		utils.GetLogger().Warn("chat model call failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("chat model failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// Stream calls the wrapped model's stream entry point. Only the initial call
// is retried; once a stream is handed to the caller, mid-stream failures are
// the caller's to observe.
func (r *ResilientChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := r.breaker.allow(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		stream, err := r.inner.Stream(ctx, input, opts...)
		if err == nil {
			r.breaker.onSuccess()
			return stream, nil
		}
		r.breaker.onFailure()
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		utils.GetLogger().Warn("chat model stream failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("chat model stream failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

// WithTools binds tools on the wrapped model. The returned model shares this
// wrapper's breaker so failure accounting survives tool binding.
func (r *ResilientChatModel) WithTools(tools []*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	bound, err := r.inner.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	return &ResilientChatModel{
		inner:      bound,
		maxRetries: r.maxRetries,
		breaker:    r.breaker,
	}, nil
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := retryBaseDelay << (attempt - 1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
