package resilience

import (
	"sync"
	"time"
)

// State 是熔断器的三个状态。
type State int32

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

// StateChangeHook 在状态流转时被调用（持锁期间，勿阻塞）。
type StateChangeHook func(name string, from, to State)

// CircuitBreaker 维护同名策略在并发调用间共享的熔断状态。
//
// closed 状态下基于计数滑动窗口统计失败率，达到阈值且样本量足够时跳闸；
// open 状态在冷却期内直接拒绝；冷却期满进入 half-open，放行有限的试探
// 调用，试探成功关闭、失败重新打开。
type CircuitBreaker struct {
	name string

	failureRateThreshold float64
	windowSize           int
	minimumCalls         int
	openStateDuration    time.Duration
	halfOpenMaxCalls     int

	mu         sync.Mutex
	state      State
	generation uint64 // 状态流转时递增，用于丢弃上个纪元的在途结果
	outcomes   []bool // 环形窗口，true = 失败
	head       int
	total      int
	failures   int
	openedAt   time.Time
	inflight   int // half-open 下的在途试探数

	hook StateChangeHook
	now  func() time.Time
}

func newCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                 name,
		failureRateThreshold: cfg.FailureRateThreshold,
		windowSize:           cfg.SlidingWindowSize,
		minimumCalls:         cfg.MinimumCalls,
		openStateDuration:    cfg.OpenStateDuration,
		halfOpenMaxCalls:     cfg.HalfOpenMaxCalls,
		outcomes:             make([]bool, cfg.SlidingWindowSize),
		now:                  time.Now,
	}
	metricBreakerState.WithLabelValues(name).Set(float64(StateClosed))
	return cb
}

// State 返回当前状态快照。
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// OnStateChange 注册状态流转回调（指标、测试观察用）。
func (cb *CircuitBreaker) OnStateChange(hook StateChangeHook) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.hook = hook
}

// allow 决定一次调用是否放行。放行时返回的回调用于上报本次结果；
// 拒绝时返回 ErrOpenState，调用方不得发起远程调用。
func (cb *CircuitBreaker) allow() (func(success bool), error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.openStateDuration {
			return nil, ErrOpenState
		}
		cb.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.inflight >= cb.halfOpenMaxCalls {
			return nil, ErrOpenState
		}
		cb.inflight++
	}

	gen := cb.generation
	return func(success bool) { cb.onResult(gen, success) }, nil
}

func (cb *CircuitBreaker) onResult(gen uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if gen != cb.generation {
		// 结果属于流转前的纪元，作废
		return
	}

	switch cb.state {
	case StateClosed:
		cb.record(!success)
		if cb.shouldTrip() {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.inflight--
		if success {
			cb.transition(StateClosed)
		} else {
			cb.transition(StateOpen)
		}
	}
}

// record 把一次结果写入环形窗口。持锁调用。
func (cb *CircuitBreaker) record(failed bool) {
	if cb.total == cb.windowSize {
		if cb.outcomes[cb.head] {
			cb.failures--
		}
	} else {
		cb.total++
	}
	cb.outcomes[cb.head] = failed
	if failed {
		cb.failures++
	}
	cb.head = (cb.head + 1) % cb.windowSize
}

func (cb *CircuitBreaker) shouldTrip() bool {
	if cb.total < cb.minimumCalls {
		return false
	}
	return float64(cb.failures)/float64(cb.total) >= cb.failureRateThreshold
}

// transition 执行状态流转并重置相应的内部计数。持锁调用。
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.generation++

	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.inflight = 0
	case StateHalfOpen:
		cb.inflight = 0
	case StateClosed:
		cb.outcomes = make([]bool, cb.windowSize)
		cb.head, cb.total, cb.failures = 0, 0, 0
	}

	metricBreakerState.WithLabelValues(cb.name).Set(float64(to))
	metricBreakerTransitions.WithLabelValues(cb.name, to.String()).Inc()
	if cb.hook != nil {
		cb.hook(cb.name, from, to)
	}
}
