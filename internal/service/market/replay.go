package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var _ Source = (*ReplaySource)(nil)

// ReplaySource 回放固定的采样序列, 零时间的采样表示该 tick 缺失
type ReplaySource struct {
	mu     sync.Mutex
	series map[string][]Observation
	pos    map[string]int
	pulls  int
}

func NewReplaySource(series map[string][]Observation) *ReplaySource {
	return &ReplaySource{
		series: series,
		pos:    make(map[string]int),
	}
}

func (r *ReplaySource) Next(ctx context.Context, symbol string) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return Observation{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pulls++
	i := r.pos[symbol]
	samples := r.series[symbol]
	if i >= len(samples) {
		return Observation{}, ErrEndOfData
	}
	r.pos[symbol] = i + 1
	if samples[i].Time.IsZero() {
		return Observation{}, ErrNoObservation
	}
	return samples[i], nil
}

// Pulls Next 被调用的总次数
func (r *ReplaySource) Pulls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pulls
}

// Series 按固定间隔生成价格序列, 成交量为 0
func Series(symbol string, start time.Time, interval time.Duration, prices ...float64) []Observation {
	res := make([]Observation, len(prices))
	for i, p := range prices {
		res[i] = Observation{
			Symbol: symbol,
			Time:   start.Add(time.Duration(i) * interval),
			Price:  decimal.NewFromFloat(p),
			Volume: decimal.Zero,
		}
	}
	return res
}

// ReadCSV 读取 time,symbol,price,volume 格式的采样, 首行可以是表头
func ReadCSV(r io.Reader) (map[string][]Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	res := make(map[string][]Observation)
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("csv line %d: want time,symbol,price[,volume], got %d fields", line, len(row))
		}

		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		price, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: price: %w", line, err)
		}
		volume := decimal.Zero
		if len(row) > 3 && row[3] != "" {
			if volume, err = decimal.NewFromString(row[3]); err != nil {
				return nil, fmt.Errorf("csv line %d: volume: %w", line, err)
			}
		}
		symbol := strings.ToUpper(strings.TrimSpace(row[1]))
		res[symbol] = append(res[symbol], Observation{
			Symbol: symbol,
			Time:   ts,
			Price:  price,
			Volume: volume,
		})
	}
}
