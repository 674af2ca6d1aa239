package notification

import (
	"context"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/portfolio"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
)

type Kind string

const (
	KindDecision        Kind = "decision"
	KindFill            Kind = "fill"
	KindTradeClosed     Kind = "trade_closed"
	KindRejected        Kind = "rejected" // 账本拒绝
	KindExecutionFailed Kind = "execution_failed"
	KindSourceFailed    Kind = "source_failed"
	KindStateChanged    Kind = "state_changed"
	KindFinished        Kind = "finished"
)

// Event watch loop 对外报告的事件, 按 Kind 填充对应字段
type Event struct {
	Kind   Kind
	RuleID string
	Symbol string
	Time   time.Time

	Decision *strategy.TradeDecision
	Fill     *exchange.Fill
	Trade    *portfolio.ClosedTrade

	// state_changed / finished
	From string
	To   string

	Err     error
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc 函数适配
type NotifierFunc func(ctx context.Context, event Event) error

func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}
