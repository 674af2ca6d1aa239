package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/portfolio"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Holding 按最新价估值的持仓
type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
	Value         decimal.Decimal `json:"value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Report 组合报告
type Report struct {
	InitialCash    decimal.Decimal `json:"initial_cash"`
	Cash           decimal.Decimal `json:"cash"`
	Holdings       []Holding       `json:"holdings"`
	HoldingsValue  decimal.Decimal `json:"holdings_value"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	PnL            decimal.Decimal `json:"pnl"`
	PnLPercent     decimal.Decimal `json:"pnl_percent"`

	Trading TradingMetrics `json:"trading"`

	Transactions int                     `json:"transactions"`
	LastDecision *strategy.TradeDecision `json:"last_decision,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// TradingMetrics 已平仓交易统计
type TradingMetrics struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	Fees          decimal.Decimal `json:"fees"`
	LargestWin    decimal.Decimal `json:"largest_win"`
	LargestLoss   decimal.Decimal `json:"largest_loss"`
}

// NewReport 没有最新价的持仓按入场价估值
func NewReport(state portfolio.State, lastPrices map[string]decimal.Decimal, decisions []strategy.TradeDecision, now time.Time) Report {
	r := Report{
		InitialCash:   state.InitialCash,
		Cash:          state.Cash,
		HoldingsValue: decimal.Zero,
		Transactions:  len(decisions),
		GeneratedAt:   now,
	}

	symbols := lo.Keys(state.Positions)
	sort.Strings(symbols)
	for _, symbol := range symbols {
		pos := state.Positions[symbol]
		price, ok := lastPrices[symbol]
		if !ok {
			price = pos.EntryPrice
		}
		h := Holding{
			Symbol:        symbol,
			Quantity:      pos.Quantity,
			EntryPrice:    pos.EntryPrice,
			LastPrice:     price,
			Value:         pos.Value(price),
			UnrealizedPnL: pos.Value(price).Sub(pos.Cost()),
		}
		r.Holdings = append(r.Holdings, h)
		r.HoldingsValue = r.HoldingsValue.Add(h.Value)
	}

	r.PortfolioValue = r.Cash.Add(r.HoldingsValue)
	r.PnL = r.PortfolioValue.Sub(r.InitialCash)
	if r.InitialCash.IsPositive() {
		r.PnLPercent = r.PnL.Div(r.InitialCash).Mul(hundred).Round(4)
	}
	if len(decisions) > 0 {
		last := decisions[len(decisions)-1]
		r.LastDecision = &last
	}
	r.Trading = tradingMetrics(state)
	return r
}

func tradingMetrics(state portfolio.State) TradingMetrics {
	m := TradingMetrics{
		TotalTrades: len(state.Closed),
		RealizedPnL: state.RealizedPnL(),
		Fees:        state.Fees,
	}
	for _, c := range state.Closed {
		switch {
		case c.RealizedPnL.IsPositive():
			m.WinningTrades++
			m.LargestWin = decimal.Max(m.LargestWin, c.RealizedPnL)
		case c.RealizedPnL.IsNegative():
			m.LosingTrades++
			m.LargestLoss = decimal.Min(m.LargestLoss, c.RealizedPnL)
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).
			Div(decimal.NewFromInt(int64(m.TotalTrades))).Mul(hundred).Round(2)
	}
	return m
}

func (r Report) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Cash:            %s\n", r.Cash.StringFixed(2))
	for _, h := range r.Holdings {
		fmt.Fprintf(&sb, "  %-8s %s @ %s = %s (%s)\n", h.Symbol, h.Quantity, h.LastPrice.StringFixed(2),
			h.Value.StringFixed(2), h.UnrealizedPnL.StringFixed(2))
	}
	fmt.Fprintf(&sb, "Portfolio value: %s\n", r.PortfolioValue.StringFixed(2))
	fmt.Fprintf(&sb, "P&L:             %s (%s%%)\n", r.PnL.StringFixed(2), r.PnLPercent.StringFixed(2))
	fmt.Fprintf(&sb, "Closed trades:   %d (win rate %s%%)\n", r.Trading.TotalTrades, r.Trading.WinRate.StringFixed(2))
	fmt.Fprintf(&sb, "Transactions:    %d\n", r.Transactions)
	if d := r.LastDecision; d != nil {
		fmt.Fprintf(&sb, "Last decision:   %s %s %s @ %s\n", d.Action, d.Quantity, d.Symbol, d.Price)
	}
	return sb.String()
}
