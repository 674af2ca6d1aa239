package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var _ Notifier = (*LogNotifier)(nil)

// LogNotifier 把事件写到 slog
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	attrs := []any{"kind", e.Kind, "rule", e.RuleID}
	if e.Symbol != "" {
		attrs = append(attrs, "symbol", e.Symbol)
	}
	level := slog.LevelInfo

	switch e.Kind {
	case KindDecision:
		if d := e.Decision; d != nil {
			attrs = append(attrs, "action", d.Action, "qty", d.Quantity, "price", d.Price, "reason", d.Reason)
		}
	case KindFill:
		if f := e.Fill; f != nil {
			attrs = append(attrs, "action", f.Action, "qty", f.Quantity, "price", f.Price, "fee", f.Fee, "slippage", f.Slippage)
		}
	case KindTradeClosed:
		if t := e.Trade; t != nil {
			attrs = append(attrs, "entry", t.EntryPrice, "exit", t.ExitPrice, "qty", t.Quantity, "pnl", t.RealizedPnL)
		}
	case KindStateChanged, KindFinished:
		attrs = append(attrs, "from", e.From, "to", e.To)
	case KindRejected, KindExecutionFailed, KindSourceFailed:
		level = slog.LevelWarn
	}
	if e.Err != nil {
		attrs = append(attrs, "err", e.Err)
	}
	if e.Message != "" {
		attrs = append(attrs, "msg", e.Message)
	}
	n.logger.Log(ctx, level, "strategy event", attrs...)
	return nil
}

// Multi 依次通知所有 notifier, 某个失败不影响其余
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder 记录收到的事件, 供展示或测试使用
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds 按顺序返回指定 kind 的事件
func (r *Recorder) Kinds(kinds ...Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Event
	for _, e := range r.events {
		for _, k := range kinds {
			if e.Kind == k {
				res = append(res, e)
				break
			}
		}
	}
	return res
}
