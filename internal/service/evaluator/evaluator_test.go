package evaluator

import (
	"testing"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/KNICEX/strategy-agent/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)

type tick struct {
	price  float64
	volume int64
}

// feed 逐条写入采样, 每写一条调用一次 fn
func feed(t *testing.T, ws market.WindowSet, symbol string, ticks []tick, fn func(i int)) {
	for i, tk := range ticks {
		appendTick(t, ws, symbol, i, tk)
		if fn != nil {
			fn(i)
		}
	}
}

// appendTick 第 i 分钟的采样
func appendTick(t *testing.T, ws market.WindowSet, symbol string, i int, tk tick) {
	w, ok := ws.Get(symbol)
	require.True(t, ok)
	require.NoError(t, w.Append(market.Observation{
		Symbol: symbol,
		Time:   start.Add(time.Duration(i) * time.Minute),
		Price:  decimal.NewFromFloat(tk.price),
		Volume: decimal.NewFromInt(tk.volume),
	}))
}

func prices(ps ...float64) []tick {
	res := make([]tick, len(ps))
	for i, p := range ps {
		res[i] = tick{price: p, volume: 1000}
	}
	return res
}

func single(c strategy.Condition) strategy.ConditionSet {
	return strategy.ConditionSet{Operator: strategy.And, Conditions: []strategy.Condition{c}}
}

func TestPriceThreshold(t *testing.T) {
	testCases := []struct {
		name      string
		direction strategy.Direction
		price     float64
		want      bool
	}{
		{name: "above hit", direction: strategy.Above, price: 181, want: true},
		{name: "above equal", direction: strategy.Above, price: 180, want: true},
		{name: "above miss", direction: strategy.Above, price: 179.99, want: false},
		{name: "below hit", direction: strategy.Below, price: 179, want: true},
		{name: "below equal", direction: strategy.Below, price: 180, want: true},
		{name: "below miss", direction: strategy.Below, price: 180.01, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ws := market.NewWindowSet(map[string]int{"AAPL": 1})
			feed(t, ws, "AAPL", prices(tc.price), nil)
			res := Evaluate(single(strategy.Condition{
				Type:      strategy.PriceThreshold,
				Direction: tc.direction,
				Price:     decimal.NewFromInt(180),
			}), Input{Symbol: "AAPL", Windows: ws})
			assert.Equal(t, tc.want, res.Triggered)
		})
	}
}

func TestEmptyWindowNeverTriggers(t *testing.T) {
	ws := market.NewWindowSet(map[string]int{"AAPL": 1})
	res := Evaluate(single(strategy.Condition{
		Type:      strategy.PriceThreshold,
		Direction: strategy.Below,
		Price:     decimal.NewFromInt(1_000_000),
	}), Input{Symbol: "AAPL", Windows: ws})
	assert.False(t, res.Triggered)
	assert.Empty(t, res.Fired)
}

func TestMovingAverageCross_FiresOnceOnEdge(t *testing.T) {
	c := strategy.Condition{
		Type:        strategy.MovingAverageCross,
		Direction:   strategy.Above,
		ShortPeriod: 2,
		LongPeriod:  3,
	}
	ws := market.NewWindowSet(map[string]int{"AAPL": c.Lookback()})

	var fired []int
	feed(t, ws, "AAPL", prices(10, 10, 10, 10, 11, 12, 13, 14, 15), func(i int) {
		if Evaluate(single(c), Input{Symbol: "AAPL", Windows: ws}).Triggered {
			fired = append(fired, i)
		}
	})
	// 第 5 个采样上穿, 后续 4 个 tick 一直在上方也不再触发
	assert.Equal(t, []int{4}, fired)
}

func TestMovingAverageCross_Below(t *testing.T) {
	c := strategy.Condition{
		Type:        strategy.MovingAverageCross,
		Direction:   strategy.Below,
		ShortPeriod: 2,
		LongPeriod:  3,
	}
	ws := market.NewWindowSet(map[string]int{"AAPL": c.Lookback()})
	var fired []int
	feed(t, ws, "AAPL", prices(10, 10, 10, 10, 9, 8, 7), func(i int) {
		if Evaluate(single(c), Input{Symbol: "AAPL", Windows: ws}).Triggered {
			fired = append(fired, i)
		}
	})
	assert.Equal(t, []int{4}, fired)
}

func TestWarmUpIsFalse(t *testing.T) {
	testCases := []struct {
		name  string
		cond  strategy.Condition
		ticks []tick
	}{
		{
			name: "moving average cross",
			cond: strategy.Condition{
				Type: strategy.MovingAverageCross, Direction: strategy.Above, ShortPeriod: 2, LongPeriod: 3,
			},
			// 只有 3 个采样, 需要 4 个
			ticks: prices(10, 10, 20),
		},
		{
			name: "volume relative",
			cond: strategy.Condition{
				Type: strategy.VolumeRelative, Period: 3, Percent: decimal.NewFromInt(50),
			},
			ticks: []tick{{100, 10}, {100, 10}, {100, 1000}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ws := market.NewWindowSet(map[string]int{"AAPL": tc.cond.Lookback()})
			feed(t, ws, "AAPL", tc.ticks, func(int) {
				res := Evaluate(single(tc.cond), Input{Symbol: "AAPL", Windows: ws})
				assert.False(t, res.Triggered)
			})
		})
	}
}

func TestVolumeRelative(t *testing.T) {
	c := strategy.Condition{
		Type:    strategy.VolumeRelative,
		Period:  3,
		Percent: decimal.NewFromInt(50),
	}
	testCases := []struct {
		name string
		last int64
		want bool
	}{
		{name: "exactly 150%", last: 300, want: true},
		{name: "above", last: 500, want: true},
		{name: "below", last: 299, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ws := market.NewWindowSet(map[string]int{"AAPL": c.Lookback()})
			feed(t, ws, "AAPL", []tick{{10, 100}, {10, 200}, {10, 300}, {10, tc.last}}, nil)
			res := Evaluate(single(c), Input{Symbol: "AAPL", Windows: ws})
			assert.Equal(t, tc.want, res.Triggered)
		})
	}
}

func TestPercentageChange(t *testing.T) {
	testCases := []struct {
		name      string
		direction strategy.Direction
		ref       decimal.Decimal
		price     float64
		want      bool
	}{
		{name: "up 5%", direction: strategy.Above, ref: decimal.NewFromInt(100), price: 105, want: true},
		{name: "up 4.99%", direction: strategy.Above, ref: decimal.NewFromInt(100), price: 104.99, want: false},
		{name: "down 6%", direction: strategy.Below, ref: decimal.NewFromInt(100), price: 94, want: true},
		{name: "down 4%", direction: strategy.Below, ref: decimal.NewFromInt(100), price: 96, want: false},
		{name: "up does not satisfy below", direction: strategy.Below, ref: decimal.NewFromInt(100), price: 110, want: false},
		{name: "no reference", direction: strategy.Above, ref: decimal.Zero, price: 500, want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ws := market.NewWindowSet(map[string]int{"AAPL": 1})
			feed(t, ws, "AAPL", prices(tc.price), nil)
			res := Evaluate(single(strategy.Condition{
				Type:      strategy.PercentageChange,
				Direction: tc.direction,
				Percent:   decimal.NewFromInt(5),
			}), Input{
				Symbol:    "AAPL",
				Windows:   ws,
				Reference: map[string]decimal.Decimal{"AAPL": tc.ref},
			})
			assert.Equal(t, tc.want, res.Triggered)
		})
	}
}

func TestRelativePerformance(t *testing.T) {
	c := strategy.Condition{
		Type:      strategy.RelativePerformance,
		Symbol:    "XLK",
		Benchmark: "XLE",
		Direction: strategy.Above,
		Period:    2,
		Percent:   decimal.NewFromInt(5),
	}
	ws := market.NewWindowSet(map[string]int{"XLK": c.Lookback(), "XLE": c.Lookback()})
	xlk := prices(100, 100, 100, 110, 115, 120)
	xle := prices(100, 100, 100, 100, 100, 100)

	var fired []int
	for i := range xlk {
		appendTick(t, ws, "XLK", i, xlk[i])
		appendTick(t, ws, "XLE", i, xle[i])
		if Evaluate(single(c), Input{Symbol: "XLK", Windows: ws}).Triggered {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{3}, fired)
}

func TestAndNeedsSimultaneousTruth(t *testing.T) {
	set := strategy.ConditionSet{
		Operator: strategy.And,
		Conditions: []strategy.Condition{
			{Type: strategy.PriceThreshold, Direction: strategy.Above, Price: decimal.NewFromInt(100)},
			{Type: strategy.VolumeRelative, Period: 2, Percent: decimal.NewFromInt(100)},
		},
	}
	ws := market.NewWindowSet(map[string]int{"AAPL": 3})
	ticks := []tick{
		{90, 100},
		{95, 100},
		{90, 400},  // 量能满足, 价格不满足
		{101, 100}, // 价格满足, 量能不满足
		{102, 1000},
	}
	var triggered []int
	var firedCount []int
	feed(t, ws, "AAPL", ticks, func(i int) {
		res := Evaluate(set, Input{Symbol: "AAPL", Windows: ws})
		firedCount = append(firedCount, len(res.Fired))
		if res.Triggered {
			triggered = append(triggered, i)
		}
	})
	assert.Equal(t, []int{4}, triggered)
	assert.Equal(t, []int{0, 0, 1, 1, 2}, firedCount)

	set.Operator = strategy.Or
	res := Evaluate(set, Input{Symbol: "AAPL", Windows: ws})
	assert.True(t, res.Triggered)
	assert.Len(t, res.Fired, 2)
	assert.Contains(t, res.Reason, "price")
	assert.Contains(t, res.Reason, "volume")
}

func TestStaleSymbolIsFalse(t *testing.T) {
	ws := market.NewWindowSet(map[string]int{"AAPL": 1, "SPY": 1})
	feed(t, ws, "AAPL", prices(200), nil)
	feed(t, ws, "SPY", prices(600), nil)

	set := strategy.ConditionSet{
		Operator: strategy.Or,
		Conditions: []strategy.Condition{
			{Type: strategy.PriceThreshold, Direction: strategy.Above, Price: decimalx.MustFromString("150")},
			{Type: strategy.PriceThreshold, Symbol: "SPY", Direction: strategy.Above, Price: decimalx.MustFromString("550")},
		},
	}
	res := Evaluate(set, Input{
		Symbol:  "AAPL",
		Windows: ws,
		Fresh:   map[string]bool{"AAPL": false, "SPY": true},
	})
	require.True(t, res.Triggered)
	require.Len(t, res.Fired, 1)
	assert.Equal(t, "SPY", res.Fired[0].Condition.Symbol)

	res = Evaluate(set, Input{Symbol: "AAPL", Windows: ws, Fresh: map[string]bool{}})
	assert.False(t, res.Triggered)
}

func TestConditionBindsToEvaluatedSymbol(t *testing.T) {
	ws := market.NewWindowSet(map[string]int{"AAPL": 1, "MSFT": 1})
	feed(t, ws, "AAPL", prices(100), nil)
	feed(t, ws, "MSFT", prices(400), nil)
	set := single(strategy.Condition{
		Type: strategy.PriceThreshold, Direction: strategy.Above, Price: decimal.NewFromInt(300),
	})

	assert.False(t, Evaluate(set, Input{Symbol: "AAPL", Windows: ws}).Triggered)
	res := Evaluate(set, Input{Symbol: "MSFT", Windows: ws})
	require.True(t, res.Triggered)
	assert.Equal(t, "MSFT", res.Fired[0].Condition.Symbol)
}
