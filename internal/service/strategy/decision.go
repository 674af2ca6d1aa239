package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// TradeDecision 一次触发产生的交易决策, 是已发生的事实而不是待处理请求
type TradeDecision struct {
	ID        string          `json:"id"`
	RuleID    string          `json:"rule_id"`
	Action    Action          `json:"action"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // 触发时观测到的价格
	Reason    string          `json:"reason"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notional 按触发价估算的成交额
func (d TradeDecision) Notional() decimal.Decimal {
	return d.Quantity.Mul(d.Price)
}
