package api

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy 幂等读请求的重试策略
type RetryPolicy struct {
	MaxAttempts int           // 包含首次请求，<=1 表示不重试
	BaseDelay   time.Duration // 第一次重试前的等待
	MaxDelay    time.Duration // 等待上限
}

// DefaultRetryPolicy 默认策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   300 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// isRetryable 网络错误、超时、5xx 可重试；4xx 与取消不重试
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}

	var netErr *NetworkError
	var timeoutErr *TimeoutError
	return errors.As(err, &netErr) || errors.As(err, &timeoutErr)
}

// delay 第 attempt 次重试（从 0 开始）的等待时间，带 ±20% 抖动
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for range attempt {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	spread := int64(d) * 20 / 100
	if spread > 0 {
		d += time.Duration(rand.Int64N(2*spread) - spread)
	}
	return d
}

// sleepWithContext 等待 d，ctx 取消时提前返回
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
