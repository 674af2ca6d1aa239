package portfolio

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoOpenPosition    = errors.New("no open position")
	ErrInvalidFill       = errors.New("invalid fill")
)

// Position 持仓, 只在数量大于 0 时存在
type Position struct {
	Symbol     string
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal // 加仓后为均价
	OpenedAt   time.Time
	// OpenFees 开仓时支付但尚未结算到平仓记录的手续费
	OpenFees decimal.Decimal
}

// Value 按给定价格计算市值
func (p Position) Value(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price)
}

func (p Position) Cost() decimal.Decimal {
	return p.Quantity.Mul(p.EntryPrice)
}

// ClosedTrade 一次完整的开平仓
type ClosedTrade struct {
	RuleID      string
	Symbol      string
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	OpenedAt    time.Time
	ClosedAt    time.Time
	Fees        decimal.Decimal
	RealizedPnL decimal.Decimal // qty*(exit-entry) - fees
}

type State struct {
	InitialCash decimal.Decimal
	Cash        decimal.Decimal
	Positions   map[string]Position
	Closed      []ClosedTrade
	// Fees 累计手续费
	Fees decimal.Decimal
}

// RealizedPnL 已平仓盈亏合计
func (s State) RealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.Closed {
		total = total.Add(c.RealizedPnL)
	}
	return total
}

// UnrealizedPnL 按最新价计算的浮动盈亏, 没有价格的持仓按成本计
func (s State) UnrealizedPnL(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, p := range s.Positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		total = total.Add(p.Value(price).Sub(p.Cost()))
	}
	return total
}

// Equity 现金加持仓市值
func (s State) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	total := s.Cash
	for symbol, p := range s.Positions {
		price, ok := prices[symbol]
		if !ok {
			price = p.EntryPrice
		}
		total = total.Add(p.Value(price))
	}
	return total
}

func (s State) clone() State {
	c := s
	c.Positions = make(map[string]Position, len(s.Positions))
	for k, v := range s.Positions {
		c.Positions[k] = v
	}
	c.Closed = append([]ClosedTrade(nil), s.Closed...)
	return c
}
