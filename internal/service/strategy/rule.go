package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ConditionType 原子条件类型
type ConditionType string

const (
	PriceThreshold      ConditionType = "price_threshold"
	MovingAverageCross  ConditionType = "moving_average_cross"
	VolumeRelative      ConditionType = "volume_relative"
	PercentageChange    ConditionType = "percentage_change"
	RelativePerformance ConditionType = "relative_performance"
)

type Direction string

const (
	Above Direction = "above"
	Below Direction = "below"
)

// Operator 多条件组合方式
type Operator string

const (
	And Operator = "AND"
	Or  Operator = "OR"
)

var ErrInvalidRule = errors.New("invalid strategy rule")

// Condition 一个原子判断条件, 按 Type 使用不同字段
type Condition struct {
	Type      ConditionType `json:"type"`
	Symbol    string        `json:"symbol,omitempty"` // 为空时绑定到当前交易标的
	Direction Direction     `json:"direction"`

	// price_threshold
	Price decimal.Decimal `json:"price,omitempty"`

	// moving_average_cross: 短周期 N 穿越长周期 M
	ShortPeriod int `json:"short_period,omitempty"`
	LongPeriod  int `json:"long_period,omitempty"`

	// volume_relative / relative_performance 的回看周期
	Period int `json:"period,omitempty"`

	// volume_relative / percentage_change / relative_performance 的百分比阈值
	Percent decimal.Decimal `json:"percent,omitempty"`

	// relative_performance 的对比标的
	Benchmark string `json:"benchmark,omitempty"`

	Description string `json:"description,omitempty"`
}

// Lookback 该条件需要的最少样本数
func (c Condition) Lookback() int {
	switch c.Type {
	case MovingAverageCross:
		return max(c.ShortPeriod, c.LongPeriod) + 1
	case VolumeRelative:
		return c.Period + 1
	case RelativePerformance:
		// 需要上一 tick 的 spread 来判断穿越
		return c.Period + 2
	default:
		return 1
	}
}

func (c Condition) String() string {
	if c.Description != "" {
		return c.Description
	}
	switch c.Type {
	case PriceThreshold:
		return fmt.Sprintf("%s price %s %s", c.Symbol, c.Direction, c.Price)
	case MovingAverageCross:
		return fmt.Sprintf("%s MA(%d) crosses %s MA(%d)", c.Symbol, c.ShortPeriod, c.Direction, c.LongPeriod)
	case VolumeRelative:
		return fmt.Sprintf("%s volume %s%% over %d-period average", c.Symbol, c.Percent, c.Period)
	case PercentageChange:
		return fmt.Sprintf("%s change %s %s%%", c.Symbol, c.Direction, c.Percent)
	case RelativePerformance:
		return fmt.Sprintf("%s vs %s spread crosses %s %s%% over %d periods", c.Symbol, c.Benchmark, c.Direction, c.Percent, c.Period)
	default:
		return string(c.Type)
	}
}

// Bind 把未指定标的的条件绑定到 symbol
func (c Condition) Bind(symbol string) Condition {
	if c.Symbol == "" {
		c.Symbol = symbol
	}
	return c
}

func (c Condition) validate() error {
	switch c.Direction {
	case Above, Below:
	case "":
		// 量能条件只有一个方向
		if c.Type != VolumeRelative {
			return fmt.Errorf("%w: %s requires a direction", ErrInvalidRule, c.Type)
		}
	default:
		return fmt.Errorf("%w: %s has unknown direction %q", ErrInvalidRule, c.Type, c.Direction)
	}
	switch c.Type {
	case PriceThreshold:
		if !c.Price.IsPositive() {
			return fmt.Errorf("%w: price threshold must be positive", ErrInvalidRule)
		}
	case MovingAverageCross:
		if c.ShortPeriod <= 0 || c.LongPeriod <= 0 {
			return fmt.Errorf("%w: moving average periods must be positive", ErrInvalidRule)
		}
		if c.ShortPeriod >= c.LongPeriod {
			return fmt.Errorf("%w: short period %d must be less than long period %d", ErrInvalidRule, c.ShortPeriod, c.LongPeriod)
		}
	case VolumeRelative:
		if c.Period <= 0 {
			return fmt.Errorf("%w: volume period must be positive", ErrInvalidRule)
		}
		if c.Percent.IsNegative() {
			return fmt.Errorf("%w: volume percent must not be negative", ErrInvalidRule)
		}
	case PercentageChange:
		if c.Percent.IsNegative() {
			return fmt.Errorf("%w: percentage change must not be negative, use direction below", ErrInvalidRule)
		}
	case RelativePerformance:
		if c.Period <= 0 {
			return fmt.Errorf("%w: relative performance period must be positive", ErrInvalidRule)
		}
		if c.Benchmark == "" {
			return fmt.Errorf("%w: relative performance requires a benchmark", ErrInvalidRule)
		}
		if c.Percent.IsNegative() {
			return fmt.Errorf("%w: relative performance percent must not be negative", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown condition type %q", ErrInvalidRule, c.Type)
	}
	return nil
}

type ConditionSet struct {
	Operator   Operator    `json:"operator"`
	Conditions []Condition `json:"conditions"`
}

func (s ConditionSet) validate(side string) error {
	if s.Operator != And && s.Operator != Or {
		return fmt.Errorf("%w: %s operator %q", ErrInvalidRule, side, s.Operator)
	}
	if len(s.Conditions) == 0 {
		return fmt.Errorf("%w: %s has no conditions", ErrInvalidRule, side)
	}
	for i, c := range s.Conditions {
		if err := c.validate(); err != nil {
			return fmt.Errorf("%s condition %d: %w", side, i, err)
		}
	}
	return nil
}

func (s ConditionSet) clone() ConditionSet {
	return ConditionSet{
		Operator:   s.Operator,
		Conditions: append([]Condition(nil), s.Conditions...),
	}
}

// Rule 结构化策略, 解析后不可变; 重新解析会生成新的 Rule
type Rule struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source,omitempty"` // 用户原始输入
	Symbols     []string        `json:"symbols"`
	Entry       ConditionSet    `json:"entry"`
	Exit        ConditionSet    `json:"exit"`
	Quantity    decimal.Decimal `json:"quantity"`
	Repeat      bool            `json:"repeat,omitempty"`
}

func (r Rule) Validate() error {
	if len(r.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols", ErrInvalidRule)
	}
	if lo.Contains(r.Symbols, "") {
		return fmt.Errorf("%w: empty symbol", ErrInvalidRule)
	}
	if len(lo.Uniq(r.Symbols)) != len(r.Symbols) {
		return fmt.Errorf("%w: duplicate symbols %v", ErrInvalidRule, r.Symbols)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidRule, r.Quantity)
	}
	if err := r.Entry.validate("entry"); err != nil {
		return err
	}
	return r.Exit.validate("exit")
}

// Clone 深拷贝, 引擎只持有副本
func (r Rule) Clone() Rule {
	c := r
	c.Symbols = append([]string(nil), r.Symbols...)
	c.Entry = r.Entry.clone()
	c.Exit = r.Exit.clone()
	return c
}

// Lookbacks 每个被引用标的需要保留的样本数, 至少为 1
func (r Rule) Lookbacks() map[string]int {
	res := make(map[string]int)
	need := func(symbol string, n int) {
		res[symbol] = max(res[symbol], n, 1)
	}
	for _, symbol := range r.Symbols {
		need(symbol, 1)
		for _, c := range append(append([]Condition(nil), r.Entry.Conditions...), r.Exit.Conditions...) {
			c = c.Bind(symbol)
			need(c.Symbol, c.Lookback())
			if c.Type == RelativePerformance {
				need(c.Benchmark, c.Lookback())
			}
		}
	}
	return res
}

// Watched 需要拉取行情的全部标的(含对比标的), 有序
func (r Rule) Watched() []string {
	symbols := lo.Keys(r.Lookbacks())
	sort.Strings(symbols)
	return symbols
}

func (r Rule) String() string {
	return fmt.Sprintf("%s[%s] entry(%s) exit(%s) qty=%s",
		r.Name, strings.Join(r.Symbols, ","), r.Entry.describe(), r.Exit.describe(), r.Quantity)
}

func (s ConditionSet) describe() string {
	parts := lo.Map(s.Conditions, func(c Condition, _ int) string {
		return c.String()
	})
	return strings.Join(parts, " "+string(s.Operator)+" ")
}
