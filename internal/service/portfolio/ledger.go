package portfolio

import (
	"fmt"
	"sync"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/shopspring/decimal"
)

// Ledger 资金与持仓账本, 多个 watch loop 可共享, 所有变更串行
type Ledger struct {
	mu    sync.Mutex
	state State
}

func NewLedger(cash decimal.Decimal) *Ledger {
	return &Ledger{
		state: State{
			InitialCash: cash,
			Cash:        cash,
			Positions:   make(map[string]Position),
			Fees:        decimal.Zero,
		},
	}
}

// Validate 执行前按决策价预检
func (l *Ledger) Validate(d strategy.TradeDecision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch d.Action {
	case strategy.ActionBuy:
		if cost := d.Notional(); l.state.Cash.LessThan(cost) {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cost, l.state.Cash)
		}
	case strategy.ActionSell:
		pos, ok := l.state.Positions[d.Symbol]
		if !ok || pos.Quantity.LessThan(d.Quantity) {
			return fmt.Errorf("%w: %s sell %s", ErrNoOpenPosition, d.Symbol, d.Quantity)
		}
	default:
		return fmt.Errorf("unsupported action %q", d.Action)
	}
	return nil
}

// ApplyFill 应用成交; 出错时账本不变
func (l *Ledger) ApplyFill(d strategy.TradeDecision, fill exchange.Fill) (State, error) {
	if !fill.Quantity.IsPositive() || !fill.Price.IsPositive() {
		return State{}, fmt.Errorf("%w: %s %s qty=%s price=%s", ErrInvalidFill, d.Action, d.Symbol, fill.Quantity, fill.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	switch d.Action {
	case strategy.ActionBuy:
		err = l.buy(d, fill)
	case strategy.ActionSell:
		err = l.sell(d, fill)
	default:
		err = fmt.Errorf("unsupported action %q", d.Action)
	}
	if err != nil {
		return State{}, err
	}
	return l.state.clone(), nil
}

func (l *Ledger) buy(d strategy.TradeDecision, fill exchange.Fill) error {
	cost := fill.Notional().Add(fill.Fee)
	if l.state.Cash.LessThan(cost) {
		return fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, cost, l.state.Cash)
	}

	pos, ok := l.state.Positions[d.Symbol]
	if !ok {
		pos = Position{
			Symbol:     d.Symbol,
			Quantity:   decimal.Zero,
			EntryPrice: decimal.Zero,
			OpenedAt:   fill.Time,
			OpenFees:   decimal.Zero,
		}
	}
	qty := pos.Quantity.Add(fill.Quantity)
	pos.EntryPrice = pos.Cost().Add(fill.Notional()).Div(qty)
	pos.Quantity = qty
	pos.OpenFees = pos.OpenFees.Add(fill.Fee)

	l.state.Positions[d.Symbol] = pos
	l.state.Cash = l.state.Cash.Sub(cost)
	l.state.Fees = l.state.Fees.Add(fill.Fee)
	return nil
}

func (l *Ledger) sell(d strategy.TradeDecision, fill exchange.Fill) error {
	pos, ok := l.state.Positions[d.Symbol]
	if !ok || pos.Quantity.LessThan(fill.Quantity) {
		return fmt.Errorf("%w: %s sell %s", ErrNoOpenPosition, d.Symbol, fill.Quantity)
	}

	// 开仓手续费按平仓比例结转
	openFees := pos.OpenFees.Mul(fill.Quantity).Div(pos.Quantity)
	fees := openFees.Add(fill.Fee)
	trade := ClosedTrade{
		RuleID:      d.RuleID,
		Symbol:      d.Symbol,
		Quantity:    fill.Quantity,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   fill.Price,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    fill.Time,
		Fees:        fees,
		RealizedPnL: fill.Price.Sub(pos.EntryPrice).Mul(fill.Quantity).Sub(fees),
	}

	pos.Quantity = pos.Quantity.Sub(fill.Quantity)
	pos.OpenFees = pos.OpenFees.Sub(openFees)
	if pos.Quantity.IsPositive() {
		l.state.Positions[d.Symbol] = pos
	} else {
		delete(l.state.Positions, d.Symbol)
	}
	l.state.Cash = l.state.Cash.Add(fill.Notional()).Sub(fill.Fee)
	l.state.Fees = l.state.Fees.Add(fill.Fee)
	l.state.Closed = append(l.state.Closed, trade)
	return nil
}

// Position 当前持仓
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.state.Positions[symbol]
	return pos, ok
}

// State 深拷贝快照
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.clone()
}
