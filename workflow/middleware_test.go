package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestHandlerFunc(t *testing.T) {
	h := HandlerFunc("echo", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return inputs, nil
	})
	assert.Equal(t, "echo", h.Name())

	result, err := h.Execute(context.Background(), map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "v", result.Outputs["k"])
	assert.False(t, result.StartedAt.IsZero())
}

func TestHandlerFunc_Error(t *testing.T) {
	h := HandlerFunc("fail", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return nil, assert.AnError
	})

	result, err := h.Execute(context.Background(), nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, HandlerFailed, result.Status)
	assert.Equal(t, assert.AnError.Error(), result.ErrorMessage)
}

func TestChainHandler_Order(t *testing.T) {
	var order []string
	mw := func(tag string) HandlerMiddleware {
		return func(next TaskHandler) TaskHandler {
			return HandlerFunc(next.Name(), func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
				order = append(order, tag)
				result, err := next.Execute(ctx, inputs)
				if err != nil {
					return nil, err
				}
				return result.Outputs, nil
			})
		}
	}

	h := HandlerFunc("base", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		order = append(order, "base")
		return nil, nil
	})

	chained := ChainHandler(h, mw("outer"), mw("inner"))
	_, err := chained.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
}

func TestWithTimeout(t *testing.T) {
	h := HandlerFunc("slow", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return map[string]any{"done": true}, nil
		}
	})

	wrapped := ChainHandler(h, WithTimeout(20*time.Millisecond))
	_, err := wrapped.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 非正超时不包装
	same := WithTimeout(0)(h)
	assert.Equal(t, h, same)
}

func TestWithTimeout_FastHandlerSucceeds(t *testing.T) {
	h := HandlerFunc("fast", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})

	wrapped := ChainHandler(h, WithTimeout(time.Second))
	result, err := wrapped.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
}

func TestWithRateLimit(t *testing.T) {
	h := HandlerFunc("limited", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return nil, nil
	})

	// 令牌桶耗尽后第二次调用需要等待
	limiter := rate.NewLimiter(rate.Limit(50), 1)
	wrapped := ChainHandler(h, WithRateLimit(limiter))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := wrapped.Execute(context.Background(), nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	// nil limiter 不包装
	same := WithRateLimit(nil)(h)
	assert.Equal(t, h, same)
}

func TestWithRateLimit_CancelledContext(t *testing.T) {
	h := HandlerFunc("limited", func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return nil, nil
	})

	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	wrapped := ChainHandler(h, WithRateLimit(limiter))

	// 第一次消耗唯一令牌
	_, err := wrapped.Execute(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = wrapped.Execute(ctx, nil)
	assert.Error(t, err)
}
