package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/evaluator"
	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/notification"
	"github.com/KNICEX/strategy-agent/internal/service/portfolio"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/KNICEX/strategy-agent/pkg/idx"
	"github.com/jpillora/backoff"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type track struct {
	state      State
	entryPrice decimal.Decimal
	quantity   decimal.Decimal
}

// Loop 一个策略的 watch loop, 同时盯住策略引用的全部标的.
// Step 在单个 goroutine 里串行调用, Cancel/State/Result 可以并发调用.
type Loop struct {
	rule     strategy.Rule
	watched  []string
	windows  market.WindowSet
	ledger   *portfolio.Ledger
	source   market.Source
	executor exchange.Executor
	notifier notification.Notifier
	cfg      Config
	logger   *slog.Logger

	// entryRef 启动后第一次观测到的价格
	entryRef map[string]decimal.Decimal

	cancelled atomic.Bool

	mu     sync.RWMutex
	tracks map[string]*track
	result Result
}

type LoopOption func(l *Loop)

func WithNotifier(n notification.Notifier) LoopOption {
	return func(l *Loop) {
		l.notifier = n
	}
}

func WithConfig(cfg Config) LoopOption {
	return func(l *Loop) {
		l.cfg = cfg
	}
}

func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop rule 会被深拷贝, 之后外部修改不影响 loop
func NewLoop(rule strategy.Rule, ledger *portfolio.Ledger, source market.Source, executor exchange.Executor, opts ...LoopOption) (*Loop, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	rule = rule.Clone()
	l := &Loop{
		rule:     rule,
		watched:  rule.Watched(),
		windows:  market.NewWindowSet(rule.Lookbacks()),
		ledger:   ledger,
		source:   source,
		executor: executor,
		notifier: notification.Multi{},
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		entryRef: make(map[string]decimal.Decimal),
		tracks:   make(map[string]*track, len(rule.Symbols)),
		result:   Result{RuleID: rule.ID},
	}
	for _, symbol := range rule.Symbols {
		l.tracks[symbol] = &track{state: AwaitingEntry}
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("rule", rule.ID)
	return l, nil
}

func (l *Loop) Name() string {
	if l.rule.Name != "" {
		return l.rule.Name
	}
	return l.rule.ID
}

func (l *Loop) Rule() strategy.Rule {
	return l.rule.Clone()
}

// Cancel 协作式取消, 在下一次迭代开始前生效
func (l *Loop) Cancel() {
	l.cancelled.Store(true)
}

func (l *Loop) State(symbol string) State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if t, ok := l.tracks[symbol]; ok {
		return t.state
	}
	return ""
}

func (l *Loop) Result() Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := l.result
	res.Trades = append([]portfolio.ClosedTrade(nil), l.result.Trades...)
	return res
}

// LastPrices 各标的最新观测价格, 只在 Run 返回后调用
func (l *Loop) LastPrices() map[string]decimal.Decimal {
	return l.windows.LastPrices()
}

// Run 循环执行 Step 直到结束
func (l *Loop) Run(ctx context.Context) Result {
	l.logger.Info("watch loop started", "symbols", l.rule.Symbols, "watched", l.watched)
	for {
		if l.Step(ctx) {
			break
		}
		if l.cfg.PollInterval <= 0 {
			continue
		}
		timer := time.NewTimer(l.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	res := l.Result()
	l.logger.Info("watch loop finished", "outcome", res.Outcome, "ticks", res.Ticks, "trades", len(res.Trades))
	return res
}

// Step 一次迭代: 每个标的拉取一个采样, 再按各 track 的状态求值. 返回 loop 是否结束
func (l *Loop) Step(ctx context.Context) bool {
	if res := l.Result(); res.Done() {
		return true
	}
	if l.cancelled.Load() || ctx.Err() != nil {
		l.finish(ctx, OutcomeCancelled, nil)
		return true
	}

	fresh := make(map[string]bool, len(l.watched))
	for _, symbol := range l.watched {
		o, err := l.pull(ctx, symbol)
		switch {
		case err == nil:
		case errors.Is(err, market.ErrNoObservation):
			continue
		case ctx.Err() != nil:
			l.finish(ctx, OutcomeCancelled, nil)
			return true
		default:
			l.notify(ctx, notification.Event{Kind: notification.KindSourceFailed, Symbol: symbol, Err: err})
			l.finish(ctx, OutcomeSourceFailure, err)
			return true
		}

		w, _ := l.windows.Get(symbol)
		if err := w.Append(o); err != nil {
			// 重复或乱序的采样不算新数据
			l.logger.Debug("observation ignored", "symbol", symbol, "time", o.Time, "err", err)
			continue
		}
		fresh[symbol] = true
		if _, ok := l.entryRef[symbol]; !ok {
			l.entryRef[symbol] = o.Price
		}
	}

	for _, symbol := range l.rule.Symbols {
		l.evaluate(ctx, symbol, fresh)
	}

	l.mu.Lock()
	l.result.Ticks++
	allDone := lo.EveryBy(lo.Values(l.tracks), func(t *track) bool {
		return t.state == Complete
	})
	l.mu.Unlock()

	if allDone {
		l.finish(ctx, OutcomeCompleted, nil)
		return true
	}
	return false
}

// pull 拉取一个采样, SourceError 按退避重试, 超时视为可重试
func (l *Loop) pull(ctx context.Context, symbol string) (market.Observation, error) {
	b := &backoff.Backoff{
		Min:    l.cfg.RetryMin,
		Max:    l.cfg.RetryMax,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 0; ; attempt++ {
		o, err := l.call(ctx, symbol)
		if err == nil {
			return o, nil
		}
		if errors.Is(err, market.ErrNoObservation) || errors.Is(err, market.ErrEndOfData) || ctx.Err() != nil {
			return market.Observation{}, err
		}
		if !retryable(err) {
			return market.Observation{}, err
		}
		if attempt >= l.cfg.MaxRetries {
			return market.Observation{}, fmt.Errorf("%s: retries exhausted after %d attempts: %w", symbol, attempt+1, err)
		}

		wait := b.Duration()
		l.logger.Warn("market source error, retrying", "symbol", symbol, "attempt", attempt+1, "wait", wait, "err", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return market.Observation{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Loop) call(ctx context.Context, symbol string) (market.Observation, error) {
	if l.cfg.CallTimeout <= 0 {
		return l.source.Next(ctx, symbol)
	}
	callCtx, cancel := context.WithTimeout(ctx, l.cfg.CallTimeout)
	defer cancel()
	return l.source.Next(callCtx, symbol)
}

func retryable(err error) bool {
	var srcErr *market.SourceError
	if errors.As(err, &srcErr) {
		return !srcErr.Permanent
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (l *Loop) evaluate(ctx context.Context, symbol string, fresh map[string]bool) {
	// 交易标的本轮没有新采样时无法按当前价格下单
	if !fresh[symbol] {
		return
	}

	l.mu.RLock()
	t := *l.tracks[symbol]
	l.mu.RUnlock()

	switch t.state {
	case AwaitingEntry:
		res := evaluator.Evaluate(l.rule.Entry, evaluator.Input{
			Symbol:    symbol,
			Windows:   l.windows,
			Fresh:     fresh,
			Reference: l.entryRef,
		})
		if res.Triggered {
			l.act(ctx, symbol, strategy.ActionBuy, l.rule.Quantity, res.Reason)
		}
	case PositionOpen:
		// 出场的涨跌幅以入场成交价为基准
		ref := make(map[string]decimal.Decimal, len(l.entryRef)+1)
		for k, v := range l.entryRef {
			ref[k] = v
		}
		ref[symbol] = t.entryPrice
		res := evaluator.Evaluate(l.rule.Exit, evaluator.Input{
			Symbol:    symbol,
			Windows:   l.windows,
			Fresh:     fresh,
			Reference: ref,
		})
		if res.Triggered {
			l.act(ctx, symbol, strategy.ActionSell, t.quantity, res.Reason)
		}
	}
}

// act 决策 -> 账本预检 -> 执行 -> 记账 -> 状态迁移; 任何一步失败都保持原状态
func (l *Loop) act(ctx context.Context, symbol string, action strategy.Action, qty decimal.Decimal, reason string) {
	w, _ := l.windows.Get(symbol)
	last, _ := w.Last()
	decision := strategy.TradeDecision{
		ID:        idx.New(),
		RuleID:    l.rule.ID,
		Action:    action,
		Symbol:    symbol,
		Quantity:  qty,
		Price:     last.Price,
		Reason:    reason,
		Timestamp: last.Time,
	}

	l.mu.Lock()
	l.result.Decisions++
	l.mu.Unlock()
	l.notify(ctx, notification.Event{Kind: notification.KindDecision, Symbol: symbol, Time: decision.Timestamp, Decision: &decision})

	if err := l.ledger.Validate(decision); err != nil {
		l.notify(ctx, notification.Event{Kind: notification.KindRejected, Symbol: symbol, Time: decision.Timestamp, Decision: &decision, Err: err})
		return
	}

	fill, err := l.execute(ctx, decision)
	if err != nil {
		l.notify(ctx, notification.Event{Kind: notification.KindExecutionFailed, Symbol: symbol, Time: decision.Timestamp, Decision: &decision, Err: err})
		return
	}

	state, err := l.ledger.ApplyFill(decision, fill)
	if err != nil {
		l.logger.Error("fill rejected by ledger", "symbol", symbol, "decision", decision.ID, "err", err)
		l.notify(ctx, notification.Event{Kind: notification.KindRejected, Symbol: symbol, Time: fill.Time, Decision: &decision, Fill: &fill, Err: err})
		return
	}
	l.notify(ctx, notification.Event{Kind: notification.KindFill, Symbol: symbol, Time: fill.Time, Decision: &decision, Fill: &fill})

	switch action {
	case strategy.ActionBuy:
		l.transition(ctx, symbol, PositionOpen, func(t *track) {
			t.entryPrice = fill.Price
			t.quantity = fill.Quantity
		})
	case strategy.ActionSell:
		trade := state.Closed[len(state.Closed)-1]
		l.mu.Lock()
		l.result.Trades = append(l.result.Trades, trade)
		l.mu.Unlock()
		l.notify(ctx, notification.Event{Kind: notification.KindTradeClosed, Symbol: symbol, Time: fill.Time, Trade: &trade})

		next := Complete
		if l.rule.Repeat {
			next = AwaitingEntry
			// 重复模式下入场涨跌幅从上次出场价重新计算
			l.entryRef[symbol] = fill.Price
		}
		l.transition(ctx, symbol, next, func(t *track) {
			t.entryPrice = decimal.Zero
			t.quantity = decimal.Zero
		})
	}
}

func (l *Loop) execute(ctx context.Context, decision strategy.TradeDecision) (exchange.Fill, error) {
	if l.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.CallTimeout)
		defer cancel()
	}
	return l.executor.Execute(ctx, decision)
}

func (l *Loop) transition(ctx context.Context, symbol string, to State, update func(t *track)) {
	l.mu.Lock()
	t := l.tracks[symbol]
	from := t.state
	t.state = to
	update(t)
	l.mu.Unlock()

	l.notify(ctx, notification.Event{Kind: notification.KindStateChanged, Symbol: symbol, From: string(from), To: string(to)})
}

func (l *Loop) finish(ctx context.Context, outcome Outcome, err error) {
	l.mu.Lock()
	l.result.Outcome = outcome
	l.result.Err = err
	l.mu.Unlock()

	// ctx 可能已经取消, 结束事件仍然要送达
	l.notify(context.WithoutCancel(ctx), notification.Event{Kind: notification.KindFinished, Message: string(outcome), Err: err})
}

func (l *Loop) notify(ctx context.Context, e notification.Event) {
	e.RuleID = l.rule.ID
	if err := l.notifier.Notify(ctx, e); err != nil {
		l.logger.Warn("notify failed", "kind", e.Kind, "err", err)
	}
}
