package service

import (
	"sync"
	"time"
)

// Clock 抽象当前时间与定时器，测试中可替换为虚拟时钟。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer 是 AfterFunc 返回的可取消定时器。
type Timer interface {
	Stop() bool
}

type systemClock struct{}

// SystemClock 返回基于 time 包的真实时钟。
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer 管理一个可被替换的延迟任务。每次 Schedule 都会使之前的任务失效；
// 已经触发但尚未执行的回调通过 Claim 校验代数后才会真正生效。
type Debouncer struct {
	clock Clock

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	pending bool
}

// NewDebouncer 构造 Debouncer。
func NewDebouncer(clock Clock) *Debouncer {
	if clock == nil {
		clock = SystemClock()
	}
	return &Debouncer{clock: clock}
}

// Schedule 取消当前待执行任务，delay 之后以新的代数调用 fire。
func (d *Debouncer) Schedule(delay time.Duration, fire func(gen uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = d.clock.AfterFunc(delay, func() { fire(gen) })
	return gen
}

// Claim 在回调里调用：仅当 gen 仍是最新且任务尚未被取走时返回 true。
func (d *Debouncer) Claim(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen || !d.pending {
		return false
	}
	d.pending = false
	d.timer = nil
	return true
}

// Cancel 丢弃待执行任务，返回是否确实有任务被丢弃。
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasPending := d.pending
	d.stopLocked()
	d.gen++
	d.pending = false
	return wasPending
}

// Flush 若有待执行任务，立即在调用方 goroutine 中执行 run，返回是否执行。
func (d *Debouncer) Flush(run func()) bool {
	if !d.Cancel() {
		return false
	}
	run()
	return true
}

// Pending 报告是否有尚未执行的任务。
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
