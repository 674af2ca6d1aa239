package backtest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice    = errors.New("backtest: decision price must be positive")
	ErrInvalidQuantity = errors.New("backtest: decision quantity must be positive")
)

var bpsBase = decimal.NewFromInt(10_000)

var _ exchange.Executor = (*Executor)(nil)

// Executor 模拟撮合: 按决策价成交, 叠加滑点和手续费
type Executor struct {
	mu          sync.Mutex
	nextOrderId int64

	slippageBps decimal.Decimal
	feeRate     decimal.Decimal

	fills []exchange.Fill
}

type Option func(e *Executor)

// WithSlippageBps 滑点, 单位为万分之一; 买入价上浮, 卖出价下调
func WithSlippageBps(bps decimal.Decimal) Option {
	return func(e *Executor) {
		e.slippageBps = bps
	}
}

// WithFeeRate 按成交额收取的手续费率, 例如 0.001
func WithFeeRate(rate decimal.Decimal) Option {
	return func(e *Executor) {
		e.feeRate = rate
	}
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		nextOrderId: 1,
		slippageBps: decimal.Zero,
		feeRate:     decimal.Zero,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, decision strategy.TradeDecision) (exchange.Fill, error) {
	if err := ctx.Err(); err != nil {
		return exchange.Fill{}, exchange.NewExecutionError(decision, err)
	}
	if !decision.Price.IsPositive() {
		return exchange.Fill{}, exchange.NewExecutionError(decision, ErrInvalidPrice)
	}
	if !decision.Quantity.IsPositive() {
		return exchange.Fill{}, exchange.NewExecutionError(decision, ErrInvalidQuantity)
	}

	shift := decision.Price.Mul(e.slippageBps).Div(bpsBase)
	var price decimal.Decimal
	switch decision.Action {
	case strategy.ActionBuy:
		price = decision.Price.Add(shift)
	case strategy.ActionSell:
		price = decision.Price.Sub(shift)
	default:
		return exchange.Fill{}, exchange.NewExecutionError(decision, fmt.Errorf("unsupported action %q", decision.Action))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextOrderId
	e.nextOrderId++

	fill := exchange.Fill{
		DecisionID: decision.ID,
		OrderID:    strconv.FormatInt(id, 10),
		Symbol:     decision.Symbol,
		Action:     decision.Action,
		Price:      price,
		Quantity:   decision.Quantity,
		Fee:        price.Mul(decision.Quantity).Mul(e.feeRate),
		Slippage:   price.Sub(decision.Price),
		Time:       decision.Timestamp,
	}
	e.fills = append(e.fills, fill)
	return fill, nil
}

// Fills 全部成交记录
func (e *Executor) Fills() []exchange.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]exchange.Fill(nil), e.fills...)
}
