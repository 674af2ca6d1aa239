// Package evaluator 条件判断, 纯函数, 不持有状态
package evaluator

import (
	"fmt"
	"strings"

	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/KNICEX/strategy-agent/pkg/decimalx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Input 一次判断需要的全部上下文
type Input struct {
	// Symbol 当前评估的交易标的, 未指定标的的条件绑定到它
	Symbol  string
	Windows market.WindowSet
	// Fresh 本 tick 拿到新采样的标的, nil 表示全部新鲜
	Fresh map[string]bool
	// Reference percentage_change 的基准价, 按标的
	Reference map[string]decimal.Decimal
}

func (in Input) fresh(symbol string) bool {
	if in.Fresh == nil {
		return true
	}
	return in.Fresh[symbol]
}

type Firing struct {
	Condition strategy.Condition
	Detail    string
}

type Result struct {
	Triggered bool
	Reason    string
	Fired     []Firing
}

// Evaluate 对条件组求值; 所有条件都会被求值, 以便 Fired 完整
func Evaluate(set strategy.ConditionSet, in Input) Result {
	var (
		fired []Firing
		all   = len(set.Conditions) > 0
	)
	for _, c := range set.Conditions {
		c = c.Bind(in.Symbol)
		ok, detail := Check(c, in)
		if ok {
			fired = append(fired, Firing{Condition: c, Detail: detail})
		} else {
			all = false
		}
	}

	res := Result{Fired: fired}
	switch set.Operator {
	case strategy.Or:
		res.Triggered = len(fired) > 0
	default:
		res.Triggered = all
	}
	if res.Triggered {
		res.Reason = strings.Join(lo.Map(fired, func(f Firing, _ int) string {
			return f.Detail
		}), "; ")
	}
	return res
}

// Check 单个已绑定标的的条件; 历史不足或没有新采样时为 false
func Check(c strategy.Condition, in Input) (bool, string) {
	if !in.fresh(c.Symbol) {
		return false, ""
	}
	w, ok := in.Windows.Get(c.Symbol)
	if !ok {
		return false, ""
	}
	switch c.Type {
	case strategy.PriceThreshold:
		return priceThreshold(c, w)
	case strategy.MovingAverageCross:
		return movingAverageCross(c, w)
	case strategy.VolumeRelative:
		return volumeRelative(c, w)
	case strategy.PercentageChange:
		return percentageChange(c, w, in.Reference[c.Symbol])
	case strategy.RelativePerformance:
		if !in.fresh(c.Benchmark) {
			return false, ""
		}
		bench, ok := in.Windows.Get(c.Benchmark)
		if !ok {
			return false, ""
		}
		return relativePerformance(c, w, bench)
	default:
		return false, ""
	}
}

func priceThreshold(c strategy.Condition, w *market.Window) (bool, string) {
	last, ok := w.Last()
	if !ok {
		return false, ""
	}
	var hit bool
	switch c.Direction {
	case strategy.Above:
		hit = last.Price.GreaterThanOrEqual(c.Price)
	case strategy.Below:
		hit = last.Price.LessThanOrEqual(c.Price)
	}
	if !hit {
		return false, ""
	}
	return true, fmt.Sprintf("%s price %s %s %s", c.Symbol, last.Price, c.Direction, c.Price)
}

// sma 以倒数第 back 条为结尾的 n 周期均线
func sma(w *market.Window, n, back int) (decimal.Decimal, bool) {
	prices, ok := w.Prices(n, back)
	if !ok {
		return decimal.Zero, false
	}
	return decimalx.Mean(prices), true
}

func movingAverageCross(c strategy.Condition, w *market.Window) (bool, string) {
	shortNow, ok1 := sma(w, c.ShortPeriod, 0)
	longNow, ok2 := sma(w, c.LongPeriod, 0)
	shortPrev, ok3 := sma(w, c.ShortPeriod, 1)
	longPrev, ok4 := sma(w, c.LongPeriod, 1)
	if !(ok1 && ok2 && ok3 && ok4) {
		return false, ""
	}

	var hit bool
	switch c.Direction {
	case strategy.Above:
		hit = shortPrev.LessThanOrEqual(longPrev) && shortNow.GreaterThan(longNow)
	case strategy.Below:
		hit = shortPrev.GreaterThanOrEqual(longPrev) && shortNow.LessThan(longNow)
	}
	if !hit {
		return false, ""
	}
	return true, fmt.Sprintf("%s MA(%d)=%s crossed %s MA(%d)=%s",
		c.Symbol, c.ShortPeriod, shortNow.StringFixed(4), c.Direction, c.LongPeriod, longNow.StringFixed(4))
}

func volumeRelative(c strategy.Condition, w *market.Window) (bool, string) {
	last, ok := w.Last()
	if !ok {
		return false, ""
	}
	prior, ok := w.Volumes(c.Period, 1)
	if !ok {
		return false, ""
	}
	avg := decimalx.Mean(prior)
	ratio := decimalx.Ratio(c.Percent)

	var hit bool
	if c.Direction == strategy.Below {
		hit = last.Volume.LessThanOrEqual(avg.Mul(decimal.NewFromInt(1).Sub(ratio)))
	} else {
		hit = last.Volume.GreaterThanOrEqual(avg.Mul(decimal.NewFromInt(1).Add(ratio)))
	}
	if !hit {
		return false, ""
	}
	return true, fmt.Sprintf("%s volume %s vs %d-period average %s", c.Symbol, last.Volume, c.Period, avg.StringFixed(2))
}

func percentageChange(c strategy.Condition, w *market.Window, ref decimal.Decimal) (bool, string) {
	last, ok := w.Last()
	if !ok {
		return false, ""
	}
	change, ok := decimalx.Return(ref, last.Price)
	if !ok {
		return false, ""
	}
	threshold := decimalx.Ratio(c.Percent)

	var hit bool
	switch c.Direction {
	case strategy.Above:
		hit = change.GreaterThanOrEqual(threshold)
	case strategy.Below:
		hit = change.LessThanOrEqual(threshold.Neg())
	}
	if !hit {
		return false, ""
	}
	return true, fmt.Sprintf("%s changed %s%% from %s", c.Symbol, change.Mul(decimal.NewFromInt(100)).StringFixed(2), ref)
}

// periodReturn 以倒数第 back 条为结尾, 跨 period 个区间的收益率
func periodReturn(w *market.Window, period, back int) (decimal.Decimal, bool) {
	prices, ok := w.Prices(period+1, back)
	if !ok {
		return decimal.Zero, false
	}
	return decimalx.Return(prices[0], prices[len(prices)-1])
}

func spread(c strategy.Condition, w, bench *market.Window, back int) (decimal.Decimal, bool) {
	own, ok := periodReturn(w, c.Period, back)
	if !ok {
		return decimal.Zero, false
	}
	other, ok := periodReturn(bench, c.Period, back)
	if !ok {
		return decimal.Zero, false
	}
	return own.Sub(other), true
}

func relativePerformance(c strategy.Condition, w, bench *market.Window) (bool, string) {
	now, ok := spread(c, w, bench, 0)
	if !ok {
		return false, ""
	}
	prev, ok := spread(c, w, bench, 1)
	if !ok {
		return false, ""
	}
	threshold := decimalx.Ratio(c.Percent)

	var hit bool
	switch c.Direction {
	case strategy.Above:
		hit = prev.LessThan(threshold) && now.GreaterThanOrEqual(threshold)
	case strategy.Below:
		hit = prev.GreaterThan(threshold.Neg()) && now.LessThanOrEqual(threshold.Neg())
	}
	if !hit {
		return false, ""
	}
	return true, fmt.Sprintf("%s vs %s %d-period spread %s%% crossed %s %s%%",
		c.Symbol, c.Benchmark, c.Period, now.Mul(decimal.NewFromInt(100)).StringFixed(2), c.Direction, c.Percent)
}
