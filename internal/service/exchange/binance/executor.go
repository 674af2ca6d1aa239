package binance

import (
	"context"
	"errors"
	"log/slog"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/adshao/go-binance/v2"
)

var errZeroQuantity = errors.New("binance: quantity rounds to zero")

var _ exchange.Executor = (*Executor)(nil)

// Executor 现货市价单
type Executor struct {
	cli       *binance.Client
	quote     string
	precision *PrecisionProvider
}

func NewExecutor(cli *binance.Client, quote string) *Executor {
	if quote == "" {
		quote = "USDT"
	}
	return &Executor{
		cli:       cli,
		quote:     quote,
		precision: NewPrecisionProvider(),
	}
}

func (e *Executor) Execute(ctx context.Context, decision strategy.TradeDecision) (exchange.Fill, error) {
	pair := Pair(decision.Symbol, e.quote)
	qty := e.precision.Truncate(pair, e.quote, decision.Quantity)
	if !qty.IsPositive() {
		return exchange.Fill{}, exchange.NewExecutionError(decision, errZeroQuantity)
	}

	resp, err := e.cli.NewCreateOrderService().
		Symbol(pair).
		Side(binanceSide(decision.Action)).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String()).
		NewClientOrderID(decision.ID).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return exchange.Fill{}, exchange.NewExecutionError(decision, err)
	}

	fill, err := convertOrder(decision, resp)
	if err != nil {
		return exchange.Fill{}, exchange.NewExecutionError(decision, err)
	}
	slog.Info("binance order filled", "pair", pair, "orderId", resp.OrderID,
		"side", decision.Action, "qty", fill.Quantity, "price", fill.Price, "fee", fill.Fee)
	return fill, nil
}
