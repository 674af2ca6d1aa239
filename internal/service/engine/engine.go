package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/KNICEX/strategy-agent/internal/schedule"
	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/portfolio"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
)

var (
	ErrNoStrategies = errors.New("engine: no strategies added")
	ErrRunning      = errors.New("engine: already running")
)

// SourceFactory 每个 loop 使用独立的数据源实例
type SourceFactory func(rule strategy.Rule) (market.Source, error)

var _ Engine = (*WatchEngine)(nil)

// WatchEngine 并发运行多个策略, 共用一个账本
type WatchEngine struct {
	ledger    *portfolio.Ledger
	newSource SourceFactory
	executor  exchange.Executor
	loopOpts  []LoopOption

	mu      sync.Mutex
	loops   []*Loop
	running bool
	results []Result
}

func NewWatchEngine(ledger *portfolio.Ledger, newSource SourceFactory, executor exchange.Executor, opts ...LoopOption) *WatchEngine {
	return &WatchEngine{
		ledger:    ledger,
		newSource: newSource,
		executor:  executor,
		loopOpts:  opts,
	}
}

func (e *WatchEngine) AddStrategy(ctx context.Context, rule strategy.Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}

	source, err := e.newSource(rule)
	if err != nil {
		return err
	}
	loop, err := NewLoop(rule, e.ledger, source, e.executor, e.loopOpts...)
	if err != nil {
		return err
	}
	e.loops = append(e.loops, loop)
	slog.Info("strategy added", "rule", rule.ID, "name", rule.Name, "symbols", rule.Symbols)
	return nil
}

// Run 阻塞直到所有 loop 结束, 返回数据源失败的合并错误
func (e *WatchEngine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrRunning
	}
	if len(e.loops) == 0 {
		e.mu.Unlock()
		return ErrNoStrategies
	}
	e.running = true
	loops := append([]*Loop(nil), e.loops...)
	e.mu.Unlock()

	tasks := make([]schedule.Task, len(loops))
	watchTasks := make([]*WatchTask, len(loops))
	for i, loop := range loops {
		watchTasks[i] = NewWatchTask(loop)
		tasks[i] = watchTasks[i]
	}
	err := schedule.RunAll(ctx, tasks...)

	results := make([]Result, len(watchTasks))
	for i, t := range watchTasks {
		results[i] = <-t.result
	}

	e.mu.Lock()
	e.results = results
	e.running = false
	e.mu.Unlock()
	return err
}

// Stop 取消全部 loop, 在各自的下一次迭代边界生效
func (e *WatchEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, loop := range e.loops {
		loop.Cancel()
	}
	return nil
}

func (e *WatchEngine) Loops() []*Loop {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Loop(nil), e.loops...)
}

// Results 最近一次 Run 的结果, 顺序与 AddStrategy 一致
func (e *WatchEngine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

func (e *WatchEngine) Ledger() *portfolio.Ledger {
	return e.ledger
}
