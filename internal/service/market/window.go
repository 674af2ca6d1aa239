package market

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateObservation = errors.New("market: duplicate observation timestamp")
	ErrOutOfOrder           = errors.New("market: observation older than window tail")
	ErrSymbolMismatch       = errors.New("market: observation symbol does not match window")
)

// Window 单标的的有序采样, 只追加, 长度不超过 capacity
type Window struct {
	symbol   string
	capacity int
	samples  []Observation
}

func NewWindow(symbol string, capacity int) *Window {
	capacity = max(capacity, 1)
	return &Window{
		symbol:   symbol,
		capacity: capacity,
		samples:  make([]Observation, 0, capacity),
	}
}

func (w *Window) Symbol() string { return w.symbol }

func (w *Window) Capacity() int { return w.capacity }

func (w *Window) Len() int { return len(w.samples) }

// Append 时间戳必须严格递增, 重复时间戳被拒绝且窗口不变
func (w *Window) Append(o Observation) error {
	if o.Symbol != w.symbol {
		return fmt.Errorf("%w: %s into %s", ErrSymbolMismatch, o.Symbol, w.symbol)
	}
	if last, ok := w.Last(); ok {
		if o.Time.Equal(last.Time) {
			return ErrDuplicateObservation
		}
		if o.Time.Before(last.Time) {
			return fmt.Errorf("%w: %s before %s", ErrOutOfOrder, o.Time, last.Time)
		}
	}
	if len(w.samples) == w.capacity {
		// 复用底层数组
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:len(w.samples)-1]
	}
	w.samples = append(w.samples, o)
	return nil
}

func (w *Window) Last() (Observation, bool) {
	if len(w.samples) == 0 {
		return Observation{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// At 从尾部往前数, At(0) 为最新一条
func (w *Window) At(back int) (Observation, bool) {
	i := len(w.samples) - 1 - back
	if back < 0 || i < 0 {
		return Observation{}, false
	}
	return w.samples[i], true
}

// Prices 倒数第 back 条之前(含)的最近 n 个价格, 样本不足返回 false
func (w *Window) Prices(n, back int) ([]decimal.Decimal, bool) {
	return w.field(n, back, func(o Observation) decimal.Decimal { return o.Price })
}

func (w *Window) Volumes(n, back int) ([]decimal.Decimal, bool) {
	return w.field(n, back, func(o Observation) decimal.Decimal { return o.Volume })
}

func (w *Window) field(n, back int, f func(Observation) decimal.Decimal) ([]decimal.Decimal, bool) {
	end := len(w.samples) - back
	if n <= 0 || back < 0 || end-n < 0 {
		return nil, false
	}
	return lo.Map(w.samples[end-n:end], func(o Observation, _ int) decimal.Decimal {
		return f(o)
	}), true
}

// Snapshot 拷贝当前采样, 用于持久化或展示
func (w *Window) Snapshot() []Observation {
	return append([]Observation(nil), w.samples...)
}

// WindowSet 一个策略引用到的全部标的窗口
type WindowSet map[string]*Window

// NewWindowSet 按每个标的需要的回看长度创建窗口
func NewWindowSet(lookbacks map[string]int) WindowSet {
	ws := make(WindowSet, len(lookbacks))
	for symbol, n := range lookbacks {
		ws[symbol] = NewWindow(symbol, n)
	}
	return ws
}

func (ws WindowSet) Get(symbol string) (*Window, bool) {
	w, ok := ws[symbol]
	return w, ok
}

// LastPrices 每个标的的最新价格
func (ws WindowSet) LastPrices() map[string]decimal.Decimal {
	res := make(map[string]decimal.Decimal, len(ws))
	for symbol, w := range ws {
		if o, ok := w.Last(); ok {
			res[symbol] = o.Price
		}
	}
	return res
}
