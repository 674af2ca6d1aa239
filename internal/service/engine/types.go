package engine

import (
	"context"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/portfolio"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
)

type Engine interface {
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
	AddStrategy(ctx context.Context, rule strategy.Rule) error
}

// State 单个 (策略, 交易标的) 的生命周期
type State string

const (
	AwaitingEntry State = "AWAITING_ENTRY"
	PositionOpen  State = "POSITION_OPEN"
	Complete      State = "COMPLETE"
)

// Outcome loop 结束的原因
type Outcome string

const (
	OutcomeRunning       Outcome = ""
	OutcomeCompleted     Outcome = "completed"
	OutcomeCancelled     Outcome = "cancelled"
	OutcomeSourceFailure Outcome = "source_failure"
)

type Result struct {
	RuleID    string
	Outcome   Outcome
	Err       error // 数据源失败的原因
	Ticks     int
	Decisions int
	Trades    []portfolio.ClosedTrade
}

func (r Result) Done() bool {
	return r.Outcome != OutcomeRunning
}

type Config struct {
	// PollInterval 两次拉取之间的间隔, 0 表示不等待(回放/模拟)
	PollInterval time.Duration
	// MaxRetries 数据源失败后的最大重试次数
	MaxRetries int
	RetryMin   time.Duration
	RetryMax   time.Duration
	// CallTimeout 单次拉取/下单的超时, 0 表示不限制
	CallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		MaxRetries:   3,
		RetryMin:     200 * time.Millisecond,
		RetryMax:     5 * time.Second,
		CallTimeout:  10 * time.Second,
	}
}
