// Package poller refreshes the escalation tracker on a fixed interval.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/resolveit/escalation-monitor/internal/domain"
)

const DefaultInterval = 5 * time.Minute

type Refresher interface {
	Refresh(ctx context.Context) (domain.Snapshot, bool, error)
}

type Result struct {
	Manual   bool
	Applied  bool
	Err      error
	Duration time.Duration
}

type Poller struct {
	refresher Refresher
	interval  time.Duration
	clock     Clock
	logger    *slog.Logger

	beforeRefresh func(ctx context.Context) error
	observers     []func(Result)

	mu     sync.Mutex
	handle *Handle

	runs     atomic.Uint64
	failures atomic.Uint64
	skipped  atomic.Uint64
}

type Option func(*Poller)

// WithBeforeRefresh 每次刷新前调用，例如 token 过期时重新登录；返回错误时跳过本次刷新
func WithBeforeRefresh(fn func(ctx context.Context) error) Option {
	return func(p *Poller) {
		p.beforeRefresh = fn
	}
}

func WithObserver(fn func(Result)) Option {
	return func(p *Poller) {
		p.observers = append(p.observers, fn)
	}
}

func New(refresher Refresher, interval time.Duration, clock Clock, logger *slog.Logger, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = RealClock
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Poller{refresher: refresher, interval: interval, clock: clock, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type Handle struct {
	p        *Poller
	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool
	stopOnce sync.Once
}

// Start 立即刷新一次，之后每个间隔刷新一次。已经启动时返回原来的 Handle
func (p *Poller) Start(ctx context.Context) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return p.handle
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{p: p, cancel: cancel, done: make(chan struct{})}
	p.handle = h

	ticker := p.clock.NewTicker(p.interval)
	h.scheduled(ctx)

	go func() {
		defer close(h.done)
		defer p.release(h)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				h.wg.Wait()
				return
			case <-ticker.C():
				h.scheduled(ctx)
			}
		}
	}()

	p.logger.Info("已启动轮询", "interval", p.interval)
	return h
}

// scheduled 上一次定时刷新还没结束时跳过本次
func (h *Handle) scheduled(ctx context.Context) {
	if !h.running.CompareAndSwap(false, true) {
		h.p.skipped.Add(1)
		h.p.logger.Debug("上一次刷新尚未完成，跳过本次定时刷新")
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.running.Store(false)
		_, _, _ = h.p.run(ctx, false)
	}()
}

// RefreshNow 手动刷新，不会启动新的定时器；与定时刷新并发时由 tracker 的序号保证最后发出的请求生效
func (h *Handle) RefreshNow(ctx context.Context) (domain.Snapshot, bool, error) {
	return h.p.run(ctx, true)
}

// Stop 取消定时器并等待正在进行的定时刷新退出
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
		h.p.logger.Info("已停止轮询")
	})
}

func (p *Poller) release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == h {
		p.handle = nil
	}
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (p *Poller) run(ctx context.Context, manual bool) (snapshot domain.Snapshot, applied bool, err error) {
	start := p.clock.Now()
	p.runs.Add(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during refresh: %v", r)
			p.logger.Error("刷新时发生 panic", "error", err)
		}
		if err != nil {
			p.failures.Add(1)
		}

		result := Result{Manual: manual, Applied: applied, Err: err, Duration: p.clock.Now().Sub(start)}
		for _, observe := range p.observers {
			observe(result)
		}
	}()

	if p.beforeRefresh != nil {
		if err = p.beforeRefresh(ctx); err != nil {
			p.logger.Warn("刷新前检查失败，跳过本次刷新", "manual", manual, "error", err)
			return snapshot, false, err
		}
	}

	snapshot, applied, err = p.refresher.Refresh(ctx)
	if err != nil {
		p.logger.Warn("刷新失败", "manual", manual, "error", err)
		return snapshot, applied, err
	}

	p.logger.Debug("刷新完成", "manual", manual, "applied", applied, "total", snapshot.Stats.Total)
	return snapshot, applied, nil
}

type Stats struct {
	Runs     uint64 `json:"runs"`
	Failures uint64 `json:"failures"`
	Skipped  uint64 `json:"skipped"`
}

func (p *Poller) Stats() Stats {
	return Stats{Runs: p.runs.Load(), Failures: p.failures.Load(), Skipped: p.skipped.Load()}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}
