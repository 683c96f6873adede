// Package resilience 把对远程依赖的一次调用包装为可配置的弹性策略：
// Fallback ⊃ CircuitBreaker ⊃ Retry ⊃ TimeLimiter ⊃ operation。
//
// 策略按名字创建，同名策略的熔断器状态在所有并发调用间共享。
// 业务层面的失败（调用成功但载荷表示拒绝）不属于本层的失败语义，
// 只有传输错误、超时、不可恢复的数据错误和熔断拒绝会走到 Fallback。
package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrOpenState 表示熔断器处于打开状态，调用被直接拒绝。
var ErrOpenState = errors.New("circuit breaker is open")

// PermanentError 标记一个不应被重试的失败（例如响应结构损坏）。
// 它依然是策略层面的失败，会被熔断器计数并最终交给 Fallback。
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent 包装 err，使 Retry 不再重试它。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent 判断 err 链上是否带有不可重试标记。
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Config 描述一个命名策略的全部参数。零值字段会被替换为默认值。
type Config struct {
	// Retry
	MaxAttempts  int
	WaitDuration time.Duration // 首次重试间隔，之后逐次翻倍

	// TimeLimiter
	AttemptTimeout time.Duration

	// CircuitBreaker
	FailureRateThreshold float64
	SlidingWindowSize    int
	MinimumCalls         int
	OpenStateDuration    time.Duration
	HalfOpenMaxCalls     int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.WaitDuration <= 0 {
		c.WaitDuration = 100 * time.Millisecond
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 3 * time.Second
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		c.FailureRateThreshold = 0.5
	}
	if c.SlidingWindowSize <= 0 {
		c.SlidingWindowSize = 10
	}
	if c.MinimumCalls <= 0 {
		c.MinimumCalls = c.SlidingWindowSize
	}
	if c.OpenStateDuration <= 0 {
		c.OpenStateDuration = 10 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// Policy 是一个命名弹性策略。并发安全，应在组装期创建一次并复用。
type Policy struct {
	name    string
	cfg     Config
	breaker *CircuitBreaker
}

func NewPolicy(name string, cfg Config) *Policy {
	cfg = cfg.withDefaults()
	return &Policy{
		name:    name,
		cfg:     cfg,
		breaker: newCircuitBreaker(name, cfg),
	}
}

func (p *Policy) Name() string { return p.name }

// Breaker 暴露熔断器，供指标和测试观察状态流转。
func (p *Policy) Breaker() *CircuitBreaker { return p.breaker }

// Operation 是被装饰的远程调用。
type Operation[T any] func(ctx context.Context) (T, error)

// Fallback 在策略层失败时顶替原调用，必须总能返回一个值。
type Fallback[T any] func(ctx context.Context, err error) T

// Execute 在策略 p 下运行 op。任何策略层失败（重试耗尽、超时、
// 熔断打开、不可恢复错误）都由 fb 兜底，因此 Execute 本身不会失败。
func Execute[T any](ctx context.Context, p *Policy, op Operation[T], fb Fallback[T]) T {
	value, err := Run(ctx, p, op)
	if err != nil {
		metricCalls.WithLabelValues(p.name, "fallback").Inc()
		return fb(ctx, err)
	}
	return value
}

// Run 与 Execute 相同，但把策略层失败直接返回而不是兜底。
func Run[T any](ctx context.Context, p *Policy, op Operation[T]) (T, error) {
	var zero T

	done, err := p.breaker.allow()
	if err != nil {
		metricCalls.WithLabelValues(p.name, "rejected").Inc()
		return zero, err
	}

	value, err := retry(ctx, p, op)
	done(err == nil)
	if err != nil {
		metricCalls.WithLabelValues(p.name, "failure").Inc()
		return zero, err
	}
	metricCalls.WithLabelValues(p.name, "success").Inc()
	return value, nil
}

// retry 在时间受限的单次尝试外层做有限次数的退避重试。
func retry[T any](ctx context.Context, p *Policy, op Operation[T]) (T, error) {
	var zero T
	var lastErr error

	wait := p.cfg.WaitDuration
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		value, err := runAttempt(ctx, p.cfg.AttemptTimeout, op)
		if err == nil {
			metricAttempts.WithLabelValues(p.name, "success").Inc()
			return value, nil
		}
		lastErr = err
		metricAttempts.WithLabelValues(p.name, "failure").Inc()

		// 数据损坏类失败重试也不会恢复；调用方取消则没有重试的意义
		if IsPermanent(err) || ctx.Err() != nil || attempt == p.cfg.MaxAttempts {
			break
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
		wait *= 2
	}
	return zero, lastErr
}

// runAttempt 把单次尝试限制在 timeout 内。被取消的尝试在后台自行结束，
// 其迟到的结果写入本次尝试独享的缓冲通道后被丢弃，不会串到后续尝试。
func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := op(attemptCtx)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-attemptCtx.Done():
		var zero T
		return zero, attemptCtx.Err()
	}
}
