package binance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/samber/lo"
)

var _ market.Source = (*Source)(nil)

var errNoClosedKline = errors.New("binance: no closed kline returned")

// Source 实盘行情: 每次拉取最近一根已收盘的 k 线
type Source struct {
	cli      *binance.Client
	interval exchange.Interval
	quote    string
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

type SourceOption func(s *Source)

func WithInterval(interval exchange.Interval) SourceOption {
	return func(s *Source) {
		if interval != "" {
			s.interval = interval
		}
	}
}

// WithQuote 报价资产, 默认 USDT
func WithQuote(quote string) SourceOption {
	return func(s *Source) {
		s.quote = quote
	}
}

func NewSource(cli *binance.Client, opts ...SourceOption) *Source {
	s := &Source{
		cli:      cli,
		interval: exchange.Interval1m,
		quote:    "USDT",
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Next(ctx context.Context, symbol string) (market.Observation, error) {
	// 最后一根可能还没收盘, 多取一根
	res, err := s.cli.NewKlinesService().
		Symbol(Pair(symbol, s.quote)).
		Interval(s.interval.ToString()).
		Limit(2).
		Do(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return market.Observation{}, ctx.Err()
		}
		return market.Observation{}, sourceError(symbol, err)
	}
	return s.pick(symbol, res)
}

func (s *Source) pick(symbol string, klines []*binance.Kline) (market.Observation, error) {
	now := s.now()
	var closed *exchange.Kline
	for i := len(klines) - 1; i >= 0; i-- {
		k, err := convertKline(klines[i])
		if err != nil {
			return market.Observation{}, sourceError(symbol, err)
		}
		if !k.CloseTime.After(now) {
			closed = &k
			break
		}
	}
	if closed == nil {
		return market.Observation{}, sourceError(symbol, errNoClosedKline)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.last[symbol]; ok && !closed.CloseTime.After(last) {
		return market.Observation{}, market.ErrNoObservation
	}
	s.last[symbol] = closed.CloseTime

	return market.Observation{
		Symbol: symbol,
		Time:   closed.CloseTime,
		Price:  closed.Close,
		Volume: closed.Volume,
	}, nil
}

// Listed 查询标的是否在币安现货上架并可交易, 未知交易对 (-1121) 视为未上架
func (s *Source) Listed(ctx context.Context, symbols []string) (map[string]bool, error) {
	res := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		pair := Pair(symbol, s.quote)
		info, err := s.cli.NewExchangeInfoService().Symbol(pair).Do(ctx)
		if err != nil {
			var apiErr *common.APIError
			if errors.As(err, &apiErr) && apiErr.Code == -1121 {
				res[symbol] = false
				continue
			}
			return nil, fmt.Errorf("exchange info %s: %w", pair, err)
		}
		res[symbol] = lo.ContainsBy(info.Symbols, func(item binance.Symbol) bool {
			return item.Symbol == pair && item.Status == string(binance.SymbolStatusTypeTrading)
		})
	}
	return res, nil
}
