package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBasePrices 模拟行情的初始价格, 未列出的标的从 100 开始
var DefaultBasePrices = map[string]decimal.Decimal{
	"AAPL":  decimal.NewFromInt(175),
	"GOOGL": decimal.NewFromInt(140),
	"MSFT":  decimal.NewFromInt(380),
	"AMZN":  decimal.NewFromInt(180),
	"TSLA":  decimal.NewFromInt(250),
	"SPY":   decimal.NewFromInt(500),
}

var defaultBasePrice = decimal.NewFromInt(100)

var _ Source = (*SimulatedSource)(nil)

// SimulatedSource 给定种子的随机游走行情, 同一种子同一拉取顺序结果完全一致
type SimulatedSource struct {
	mu sync.Mutex

	rng        *rand.Rand
	start      time.Time
	interval   time.Duration
	limit      int
	basePrices map[string]decimal.Decimal

	last  map[string]decimal.Decimal
	ticks map[string]int
}

type SimulatedOption func(s *SimulatedSource)

func WithStart(t time.Time) SimulatedOption {
	return func(s *SimulatedSource) {
		s.start = t
	}
}

func WithInterval(d time.Duration) SimulatedOption {
	return func(s *SimulatedSource) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLimit 每个标的最多产生 n 个采样, 之后返回 ErrEndOfData; 0 表示无限
func WithLimit(n int) SimulatedOption {
	return func(s *SimulatedSource) {
		s.limit = n
	}
}

func WithBasePrices(prices map[string]decimal.Decimal) SimulatedOption {
	return func(s *SimulatedSource) {
		for symbol, p := range prices {
			s.basePrices[symbol] = p
		}
	}
}

func NewSimulatedSource(seed int64, opts ...SimulatedOption) *SimulatedSource {
	s := &SimulatedSource{
		rng:        rand.New(rand.NewSource(seed)),
		start:      time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
		interval:   time.Minute,
		basePrices: make(map[string]decimal.Decimal, len(DefaultBasePrices)),
		last:       make(map[string]decimal.Decimal),
		ticks:      make(map[string]int),
	}
	for symbol, p := range DefaultBasePrices {
		s.basePrices[symbol] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimulatedSource) Next(ctx context.Context, symbol string) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.ticks[symbol]
	if s.limit > 0 && tick >= s.limit {
		return Observation{}, ErrEndOfData
	}
	s.ticks[symbol] = tick + 1

	price, ok := s.last[symbol]
	if !ok {
		price, ok = s.basePrices[symbol]
		if !ok {
			price = defaultBasePrice
		}
	} else {
		// ±0.25% 随机波动
		variation := (0.5 - s.rng.Float64()) * 0.5
		price = price.Mul(decimal.NewFromFloat(1 + variation/100)).Round(4)
	}
	s.last[symbol] = price

	return Observation{
		Symbol: symbol,
		Time:   s.start.Add(time.Duration(tick) * s.interval),
		Price:  price,
		Volume: decimal.NewFromInt(1_000_000 + s.rng.Int63n(9_000_000)),
	}, nil
}
