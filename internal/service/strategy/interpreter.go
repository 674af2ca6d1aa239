package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KNICEX/strategy-agent/internal/service/llm"
	"github.com/KNICEX/strategy-agent/pkg/idx"
	"github.com/shopspring/decimal"
)

var (
	ErrInterpretation = errors.New("strategy interpretation failed")
	ErrNotAStrategy   = fmt.Errorf("%w: input is not a trading strategy", ErrInterpretation)
)

// DefaultQuantity 用户没有说明数量时的下单数量
var DefaultQuantity = decimal.NewFromInt(10)

// Interpreter 把自然语言策略翻译成结构化 Rule
type Interpreter interface {
	Interpret(ctx context.Context, text string) (Rule, error)
}

// Retriever 策略知识库检索
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

type llmInterpreter struct {
	llmSvc    llm.Service
	retriever Retriever
	topK      int
	classify  bool
	quantity  decimal.Decimal
}

type Option func(i *llmInterpreter)

func WithRetriever(r Retriever) Option {
	return func(i *llmInterpreter) {
		i.retriever = r
	}
}

func WithDefaultQuantity(q decimal.Decimal) Option {
	return func(i *llmInterpreter) {
		if q.IsPositive() {
			i.quantity = q
		}
	}
}

// WithoutClassification 跳过 "是否为交易策略" 的预判
func WithoutClassification() Option {
	return func(i *llmInterpreter) {
		i.classify = false
	}
}

func NewLLMInterpreter(llmSvc llm.Service, opts ...Option) Interpreter {
	i := &llmInterpreter{
		llmSvc:   llmSvc,
		topK:     3,
		classify: true,
		quantity: DefaultQuantity,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *llmInterpreter) Interpret(ctx context.Context, text string) (Rule, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Rule{}, fmt.Errorf("%w: empty input", ErrInterpretation)
	}

	if i.classify {
		ok, err := i.isStrategy(ctx, text)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: classify: %w", ErrInterpretation, err)
		}
		if !ok {
			return Rule{}, ErrNotAStrategy
		}
	}

	answer, err := i.llmSvc.AskOnce(ctx, llm.Question{
		System:  interpretSystemPrompt,
		Content: i.prompt(ctx, text),
		JSON:    true,
	})
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInterpretation, err)
	}
	slog.Debug("strategy interpreted", "input_token", answer.InputToken, "output_token", answer.OutputToken)

	rule, err := ParseRule(answer.Content)
	if err != nil {
		return Rule{}, err
	}
	rule.ID = idx.New()
	rule.Source = text
	if rule.Name == "" {
		rule.Name = strings.Join(rule.Symbols, "/") + " strategy"
	}
	if rule.Quantity.IsZero() {
		rule.Quantity = i.quantity
	}
	if err = rule.Validate(); err != nil {
		return Rule{}, fmt.Errorf("%w: %w", ErrInterpretation, err)
	}
	return rule, nil
}

func (i *llmInterpreter) isStrategy(ctx context.Context, text string) (bool, error) {
	answer, err := i.llmSvc.AskOnce(ctx, llm.Question{
		Content: fmt.Sprintf(classifyPrompt, text),
	})
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(answer.Content), "yes"), nil
}

func (i *llmInterpreter) prompt(ctx context.Context, text string) string {
	var knowledge string
	if i.retriever != nil {
		docs, err := i.retriever.Retrieve(ctx, text, i.topK)
		if err != nil {
			// 知识库不可用时仍然可以解析
			slog.Warn("retrieve strategy knowledge failed", "error", err)
		}
		knowledge = strings.Join(docs, "\n")
	}
	return fmt.Sprintf(interpretPrompt, text, knowledge)
}

const classifyPrompt = `You are a helpful assistant with knowledge about trading strategies and their basic vocabulary. The user has provided the following input:
"%s"

Is this input likely to be a trading strategy for stocks? Please answer with 'yes' or 'no' only.`

const interpretSystemPrompt = `You are a trading strategy interpreter. You translate a user's trading instruction into a structured rule consumed by an automated trading agent. Output valid JSON only.`

const interpretPrompt = `User strategy:
"%s"

Relevant knowledge:
"%s"

Translate the strategy into JSON with exactly this schema:
{
  "name": "short name",
  "description": "one sentence summary",
  "symbols": ["TICKER"],
  "quantity": 10,
  "repeat": false,
  "entry": {"operator": "AND" | "OR", "conditions": [CONDITION, ...]},
  "exit":  {"operator": "AND" | "OR", "conditions": [CONDITION, ...]}
}

CONDITION is one of:
{"type": "price_threshold", "direction": "above" | "below", "price": 180.5}
{"type": "moving_average_cross", "direction": "above" | "below", "short_period": 5, "long_period": 20}
{"type": "volume_relative", "period": 20, "percent": 50}
{"type": "percentage_change", "direction": "above" | "below", "percent": 5}
{"type": "relative_performance", "symbol": "XLK", "benchmark": "XLE", "direction": "above" | "below", "period": 20, "percent": 3}

Rules:
- "symbol" may be omitted when the condition is about the traded symbol.
- percentage_change on entry is measured from the price when watching starts, on exit from the entry fill price.
- All percents are positive numbers; use direction "below" for drops.
- Numbers have no currency signs.
- Omit "quantity" when the user does not state one.`
