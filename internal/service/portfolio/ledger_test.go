package portfolio

import (
	"sync"
	"testing"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/KNICEX/strategy-agent/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)

func trade(action strategy.Action, symbol, qty, price, fee string) (strategy.TradeDecision, exchange.Fill) {
	d := strategy.TradeDecision{
		ID:        symbol + string(action),
		RuleID:    "r1",
		Action:    action,
		Symbol:    symbol,
		Quantity:  decimalx.MustFromString(qty),
		Price:     decimalx.MustFromString(price),
		Timestamp: t0,
	}
	return d, exchange.Fill{
		DecisionID: d.ID,
		Symbol:     symbol,
		Action:     action,
		Price:      d.Price,
		Quantity:   d.Quantity,
		Fee:        decimalx.MustFromString(fee),
		Slippage:   decimal.Zero,
		Time:       t0,
	}
}

func TestLedger_RoundTrip(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(10_000))

	buy, fill := trade(strategy.ActionBuy, "AAPL", "10", "181", "0")
	require.NoError(t, l.Validate(buy))
	state, err := l.ApplyFill(buy, fill)
	require.NoError(t, err)
	assert.Equal(t, "8190", state.Cash.String())
	require.Contains(t, state.Positions, "AAPL")
	assert.Equal(t, "181", state.Positions["AAPL"].EntryPrice.String())

	sell, fill := trade(strategy.ActionSell, "AAPL", "10", "190", "0")
	require.NoError(t, l.Validate(sell))
	state, err = l.ApplyFill(sell, fill)
	require.NoError(t, err)
	assert.Equal(t, "10090", state.Cash.String())
	assert.Empty(t, state.Positions)
	require.Len(t, state.Closed, 1)
	assert.Equal(t, "90", state.Closed[0].RealizedPnL.String())
	assert.Equal(t, "90", state.RealizedPnL().String())
	assert.Equal(t, "r1", state.Closed[0].RuleID)
}

func TestLedger_InsufficientFundsLeavesCashUnchanged(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(1_000))
	buy, fill := trade(strategy.ActionBuy, "AAPL", "10", "181", "0")

	assert.ErrorIs(t, l.Validate(buy), ErrInsufficientFunds)
	_, err := l.ApplyFill(buy, fill)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	state := l.State()
	assert.Equal(t, "1000", state.Cash.String())
	assert.Empty(t, state.Positions)
	assert.True(t, state.Fees.IsZero())
}

func TestLedger_FeePushesOverBudget(t *testing.T) {
	// 成交额刚好等于现金, 加上手续费后不够
	l := NewLedger(decimal.NewFromInt(1_810))
	buy, fill := trade(strategy.ActionBuy, "AAPL", "10", "181", "1")
	require.NoError(t, l.Validate(buy))
	_, err := l.ApplyFill(buy, fill)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "1810", l.State().Cash.String())
}

func TestLedger_NoOpenPosition(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(10_000))
	sell, fill := trade(strategy.ActionSell, "AAPL", "10", "190", "0")
	assert.ErrorIs(t, l.Validate(sell), ErrNoOpenPosition)
	_, err := l.ApplyFill(sell, fill)
	assert.ErrorIs(t, err, ErrNoOpenPosition)

	buy, bfill := trade(strategy.ActionBuy, "AAPL", "5", "100", "0")
	_, err = l.ApplyFill(buy, bfill)
	require.NoError(t, err)
	// 卖出数量超过持仓
	_, err = l.ApplyFill(sell, fill)
	assert.ErrorIs(t, err, ErrNoOpenPosition)
	assert.Equal(t, "9500", l.State().Cash.String())
}

func TestLedger_RejectsEmptyFill(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(10_000))
	buy, fill := trade(strategy.ActionBuy, "AAPL", "10", "181", "0")
	_, err := l.ApplyFill(buy, fill)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		action strategy.Action
		qty    string
		price  string
	}{
		{name: "buy zero quantity", action: strategy.ActionBuy, qty: "0", price: "181"},
		{name: "sell zero quantity", action: strategy.ActionSell, qty: "0", price: "190"},
		{name: "sell negative quantity", action: strategy.ActionSell, qty: "-1", price: "190"},
		{name: "buy zero price", action: strategy.ActionBuy, qty: "1", price: "0"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, fill := trade(tc.action, "AAPL", "10", "181", "0")
			fill.Quantity = decimalx.MustFromString(tc.qty)
			fill.Price = decimalx.MustFromString(tc.price)

			assert.NotPanics(t, func() {
				_, err := l.ApplyFill(d, fill)
				assert.ErrorIs(t, err, ErrInvalidFill)
			})
			state := l.State()
			assert.Equal(t, "8190", state.Cash.String())
			assert.Equal(t, "10", state.Positions["AAPL"].Quantity.String())
			assert.Empty(t, state.Closed)
		})
	}
}

func TestLedger_AveragesEntryAndSplitsFees(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(10_000))
	b1, f1 := trade(strategy.ActionBuy, "MSFT", "10", "100", "2")
	b2, f2 := trade(strategy.ActionBuy, "MSFT", "10", "110", "2")
	_, err := l.ApplyFill(b1, f1)
	require.NoError(t, err)
	state, err := l.ApplyFill(b2, f2)
	require.NoError(t, err)
	assert.Equal(t, "105", state.Positions["MSFT"].EntryPrice.String())
	assert.Equal(t, "7896", state.Cash.String())

	s1, sf1 := trade(strategy.ActionSell, "MSFT", "5", "120", "1")
	state, err = l.ApplyFill(s1, sf1)
	require.NoError(t, err)
	require.Len(t, state.Closed, 1)
	closed := state.Closed[0]
	// 开仓手续费 4 的四分之一 + 平仓手续费 1
	assert.Equal(t, "2", closed.Fees.String())
	assert.Equal(t, "73", closed.RealizedPnL.String())
	assert.Equal(t, "15", state.Positions["MSFT"].Quantity.String())
	assert.Equal(t, "5", state.Fees.String())
}

// 以成交价估值时, 现金+持仓只因手续费变化
func TestLedger_ValueConservedExceptFees(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(50_000))
	steps := [][5]string{
		{"BUY", "AAPL", "10", "181", "0.5"},
		{"BUY", "MSFT", "3", "380", "0.2"},
		{"BUY", "AAPL", "5", "185", "0.1"},
		{"SELL", "AAPL", "15", "190", "0.7"},
		{"SELL", "MSFT", "1", "375", "0"},
	}
	for _, s := range steps {
		d, fill := trade(strategy.Action(s[0]), s[1], s[2], s[3], s[4])
		prices := map[string]decimal.Decimal{d.Symbol: fill.Price}
		before := l.State()
		state, err := l.ApplyFill(d, fill)
		require.NoError(t, err)

		for sym, p := range before.Positions {
			if _, ok := prices[sym]; !ok {
				prices[sym] = p.EntryPrice
			}
		}
		delta := state.Equity(prices).Sub(before.Equity(prices))
		assert.True(t, delta.Equal(fill.Fee.Neg()), "%v: delta %s", s, delta)
	}
}

func TestLedger_StateIsSnapshot(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(1_000))
	buy, fill := trade(strategy.ActionBuy, "AAPL", "1", "100", "0")
	state, err := l.ApplyFill(buy, fill)
	require.NoError(t, err)

	delete(state.Positions, "AAPL")
	_, ok := l.Position("AAPL")
	assert.True(t, ok)
}

func TestLedger_ConcurrentBuysNeverOverdraw(t *testing.T) {
	l := NewLedger(decimal.NewFromInt(1_000))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, fill := trade(strategy.ActionBuy, "AAPL", "1", "100", "0")
			if _, err := l.ApplyFill(d, fill); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	state := l.State()
	assert.True(t, state.Cash.IsZero())
	assert.Equal(t, "10", state.Positions["AAPL"].Quantity.String())
}
