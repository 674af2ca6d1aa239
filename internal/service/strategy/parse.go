package strategy

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ParseRule 从模型回答中解析策略, 支持 ```json 代码块和裸 JSON,
// 同时兼容旧版 {"strategy": {...}} 单标的价格触发格式
func ParseRule(content string) (Rule, error) {
	raw := extractJSON(content)
	if raw == "" {
		return Rule{}, fmt.Errorf("%w: no json object in answer", ErrInterpretation)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInterpretation, err)
	}
	if _, ok := probe["strategy"]; ok {
		return parseLegacyRule([]byte(raw))
	}

	var rule Rule
	if err := json.Unmarshal([]byte(raw), &rule); err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInterpretation, err)
	}
	rule.normalize()
	return rule, nil
}

func extractJSON(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// normalize 统一大小写, 模型经常输出 "and" / "Above"
func (r *Rule) normalize() {
	for i, s := range r.Symbols {
		r.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	for _, set := range []*ConditionSet{&r.Entry, &r.Exit} {
		set.Operator = Operator(strings.ToUpper(string(set.Operator)))
		if set.Operator == "" {
			set.Operator = And
		}
		for i := range set.Conditions {
			c := &set.Conditions[i]
			c.Type = ConditionType(strings.ToLower(string(c.Type)))
			c.Direction = Direction(strings.ToLower(string(c.Direction)))
			if c.Direction == "" {
				c.Direction = Above
			}
			c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
			c.Benchmark = strings.ToUpper(strings.TrimSpace(c.Benchmark))
		}
	}
}

type legacyCondition struct {
	Type        string          `json:"type"`
	Condition   string          `json:"condition"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

type legacyRule struct {
	Strategy struct {
		Asset          string          `json:"asset"`
		Description    string          `json:"description"`
		EntryCondition legacyCondition `json:"entry_condition"`
		ExitCondition  legacyCondition `json:"exit_condition"`
	} `json:"strategy"`
}

func parseLegacyRule(raw []byte) (Rule, error) {
	var legacy legacyRule
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInterpretation, err)
	}
	s := legacy.Strategy
	entry, err := s.EntryCondition.toConditions()
	if err != nil {
		return Rule{}, fmt.Errorf("entry: %w", err)
	}
	exit, err := s.ExitCondition.toConditions()
	if err != nil {
		return Rule{}, fmt.Errorf("exit: %w", err)
	}
	rule := Rule{
		Description: s.Description,
		Symbols:     []string{s.Asset},
		Entry:       ConditionSet{Operator: And, Conditions: entry},
		Exit:        ConditionSet{Operator: And, Conditions: exit},
	}
	rule.normalize()
	return rule, nil
}

// equalTolerance 旧格式 equal 允许的价格误差
var equalTolerance = decimal.RequireFromString("0.01")

// toConditions equal 展开为 [T-0.01, T+0.01] 区间上的两个阈值条件, 与 AND 组合
func (c legacyCondition) toConditions() ([]Condition, error) {
	if c.Type != "price_trigger" {
		return nil, fmt.Errorf("%w: unsupported legacy condition type %q", ErrInterpretation, c.Type)
	}
	threshold := func(dir Direction, price decimal.Decimal) Condition {
		return Condition{
			Type:        PriceThreshold,
			Direction:   dir,
			Price:       price,
			Description: c.Description,
		}
	}
	switch dir := Direction(strings.ToLower(c.Condition)); dir {
	case Above, Below:
		return []Condition{threshold(dir, c.Price)}, nil
	case "equal":
		return []Condition{
			threshold(Above, c.Price.Sub(equalTolerance)),
			threshold(Below, c.Price.Add(equalTolerance)),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported legacy price condition %q", ErrInterpretation, c.Condition)
	}
}
