package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEndOfData 数据源已经没有后续数据
	ErrEndOfData = errors.New("market: end of data")
	// ErrNoObservation 本 tick 没有新的采样, 不是失败
	ErrNoObservation = errors.New("market: no new observation")
)

// Source 行情采样来源, 模拟和实盘共用同一个契约
type Source interface {
	Next(ctx context.Context, symbol string) (Observation, error)
}

// SourceError 数据源故障, 由调用方按重试策略处理
type SourceError struct {
	Symbol string
	Err    error
	// Permanent 为 true 时不再重试
	Permanent bool
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("market source %s: %v", e.Symbol, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func NewSourceError(symbol string, err error) *SourceError {
	return &SourceError{Symbol: symbol, Err: err}
}

type Mode string

const (
	ModeSimulated Mode = "simulated"
	ModeLive      Mode = "live"
	// ModeAuto 美股常规交易时段用实盘, 其余时间用模拟
	ModeAuto Mode = "auto"
)

var newYork = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// 没有 tzdata 时退化为固定 EST
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// IsMarketOpen 工作日 09:30-16:00 (纽约时间)
func IsMarketOpen(now time.Time) bool {
	et := now.In(newYork)
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	minutes := et.Hour()*60 + et.Minute()
	return minutes >= 9*60+30 && minutes <= 16*60
}

// Resolve 在构造时决定一次使用哪种数据源, 运行期间不再切换
func (m Mode) Resolve(now time.Time) (Mode, error) {
	switch m {
	case ModeSimulated, ModeLive:
		return m, nil
	case ModeAuto, "":
		if IsMarketOpen(now) {
			return ModeLive, nil
		}
		return ModeSimulated, nil
	default:
		return "", fmt.Errorf("unknown market mode %q", m)
	}
}
