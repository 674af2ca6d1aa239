package binance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KNICEX/strategy-agent/internal/service/exchange"
	"github.com/KNICEX/strategy-agent/internal/service/market"
	"github.com/KNICEX/strategy-agent/internal/service/strategy"
	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

// 这些错误码重试也不会成功
var permanentCodes = map[int64]bool{
	-1121: true, // Invalid symbol
	-2014: true, // API-key format invalid
	-2015: true, // Invalid API-key, IP, or permissions
}

// Pair 把策略里的标的转换成币安交易对, BTC -> BTCUSDT
func Pair(symbol, quote string) string {
	symbol = strings.ToUpper(symbol)
	if quote == "" || strings.HasSuffix(symbol, quote) {
		return symbol
	}
	return symbol + quote
}

func binanceSide(action strategy.Action) binance.SideType {
	switch action {
	case strategy.ActionBuy:
		return binance.SideTypeBuy
	case strategy.ActionSell:
		return binance.SideTypeSell
	default:
		return ""
	}
}

func isPermanent(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return permanentCodes[apiErr.Code]
	}
	return false
}

func sourceError(symbol string, err error) *market.SourceError {
	e := market.NewSourceError(symbol, err)
	e.Permanent = isPermanent(err)
	return e
}

func convertKline(k *binance.Kline) (exchange.Kline, error) {
	fields := []string{k.Open, k.Close, k.High, k.Low, k.Volume, k.QuoteAssetVolume}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return exchange.Kline{}, fmt.Errorf("parse kline field %q: %w", f, err)
		}
		values[i] = d
	}
	return exchange.Kline{
		OpenTime:         time.UnixMilli(k.OpenTime),
		CloseTime:        time.UnixMilli(k.CloseTime),
		Open:             values[0],
		Close:            values[1],
		High:             values[2],
		Low:              values[3],
		Volume:           values[4],
		QuoteAssetVolume: values[5],
		TradeNum:         k.TradeNum,
	}, nil
}

// convertOrder 市价单回报转成成交: 均价 = 累计成交额 / 成交数量, 手续费为各笔之和
func convertOrder(decision strategy.TradeDecision, resp *binance.CreateOrderResponse) (exchange.Fill, error) {
	executed, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return exchange.Fill{}, fmt.Errorf("parse executed quantity: %w", err)
	}
	if !executed.IsPositive() {
		return exchange.Fill{}, fmt.Errorf("order %d not filled, status %s", resp.OrderID, resp.Status)
	}
	quote, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		return exchange.Fill{}, fmt.Errorf("parse quote quantity: %w", err)
	}

	fee := decimal.Zero
	for _, f := range resp.Fills {
		c, err := decimal.NewFromString(f.Commission)
		if err != nil {
			return exchange.Fill{}, fmt.Errorf("parse commission: %w", err)
		}
		// 以基础资产扣的手续费按成交价折算
		if f.CommissionAsset != "" && strings.HasPrefix(resp.Symbol, f.CommissionAsset) {
			p, err := decimal.NewFromString(f.Price)
			if err != nil {
				return exchange.Fill{}, fmt.Errorf("parse fill price: %w", err)
			}
			c = c.Mul(p)
		}
		fee = fee.Add(c)
	}

	price := quote.Div(executed)
	return exchange.Fill{
		DecisionID: decision.ID,
		OrderID:    fmt.Sprintf("%d", resp.OrderID),
		Symbol:     decision.Symbol,
		Action:     decision.Action,
		Price:      price,
		Quantity:   executed,
		Fee:        fee,
		Slippage:   price.Sub(decision.Price),
		Time:       time.UnixMilli(resp.TransactTime),
	}, nil
}
