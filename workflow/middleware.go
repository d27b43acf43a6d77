package workflow

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// HandlerMiddleware wraps a TaskHandler with additional behaviour.
type HandlerMiddleware func(TaskHandler) TaskHandler

// ChainHandler applies middlewares to h, outermost first.
func ChainHandler(h TaskHandler, middlewares ...HandlerMiddleware) TaskHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// timeoutHandler bounds each invocation with a context deadline.
type timeoutHandler struct {
	inner   TaskHandler
	timeout time.Duration
}

// WithTimeout returns a middleware that bounds each handler invocation.
// A non-positive timeout leaves the handler untouched.
func WithTimeout(timeout time.Duration) HandlerMiddleware {
	return func(h TaskHandler) TaskHandler {
		if timeout <= 0 {
			return h
		}
		return &timeoutHandler{inner: h, timeout: timeout}
	}
}

func (h *timeoutHandler) Name() string { return h.inner.Name() }

func (h *timeoutHandler) Execute(ctx context.Context, inputs map[string]any) (*HandlerResult, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.inner.Execute(ctx, inputs)
}

// rateLimitedHandler serialises invocations through a shared token bucket.
// Useful when many workflows share one upstream agent or provider quota.
type rateLimitedHandler struct {
	inner   TaskHandler
	limiter *rate.Limiter
}

// WithRateLimit returns a middleware that waits on the given limiter before
// each invocation. The limiter is typically shared across handlers that hit
// the same upstream.
func WithRateLimit(limiter *rate.Limiter) HandlerMiddleware {
	return func(h TaskHandler) TaskHandler {
		if limiter == nil {
			return h
		}
		return &rateLimitedHandler{inner: h, limiter: limiter}
	}
}

func (h *rateLimitedHandler) Name() string { return h.inner.Name() }

func (h *rateLimitedHandler) Execute(ctx context.Context, inputs map[string]any) (*HandlerResult, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return h.inner.Execute(ctx, inputs)
}
