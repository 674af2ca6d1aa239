package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/shopspring/decimal"
)

// Executor 执行交易决策, 模拟和实盘共用同一个契约
type Executor interface {
	Execute(ctx context.Context, decision strategy.TradeDecision) (Fill, error)
}

// Fill 一次成交回报
type Fill struct {
	DecisionID string
	OrderID    string
	Symbol     string
	Action     strategy.Action
	Price      decimal.Decimal // 实际成交均价
	Quantity   decimal.Decimal
	Fee        decimal.Decimal
	// Slippage 成交价相对决策价的偏离, 买入为正表示多付
	Slippage decimal.Decimal
	Time     time.Time
}

// Notional 成交额, 不含手续费
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}

// ExecutionError 执行失败, 决策不会被应用
type ExecutionError struct {
	DecisionID string
	Symbol     string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute decision %s on %s: %v", e.DecisionID, e.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func NewExecutionError(decision strategy.TradeDecision, err error) *ExecutionError {
	return &ExecutionError{
		DecisionID: decision.ID,
		Symbol:     decision.Symbol,
		Err:        err,
	}
}

type Interval string

func (i Interval) ToString() string {
	return string(i)
}

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration 一根 k 线的时长
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval3m:
		return 3 * time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

type Kline struct {
	OpenTime         time.Time
	CloseTime        time.Time
	Open             decimal.Decimal
	Close            decimal.Decimal
	High             decimal.Decimal
	Low              decimal.Decimal
	Volume           decimal.Decimal // 成交量
	QuoteAssetVolume decimal.Decimal // 成交额
	TradeNum         int64           // 成交笔数
}
