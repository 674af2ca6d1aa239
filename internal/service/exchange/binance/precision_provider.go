package binance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PrecisionProvider 现货交易对的数量精度
type PrecisionProvider struct {
	precisions map[string]int32
	fallback   int32
}

// NewPrecisionProvider 参考: https://www.binance.com/en/trade-rule
func NewPrecisionProvider() *PrecisionProvider {
	return &PrecisionProvider{
		precisions: map[string]int32{
			"BTC":  5, // 0.00001
			"ETH":  4, // 0.0001
			"BNB":  3, // 0.001
			"SOL":  3, // 0.001
			"XRP":  0, // 1
			"DOGE": 0, // 1
			"ADA":  1, // 0.1
		},
		fallback: 2,
	}
}

// GetQuantityPrecision 按基础资产查找, 未知资产用默认精度
func (p *PrecisionProvider) GetQuantityPrecision(pair, quote string) int32 {
	base := strings.TrimSuffix(strings.ToUpper(pair), quote)
	if precision, ok := p.precisions[base]; ok {
		return precision
	}
	return p.fallback
}

// Truncate 数量向下截断到交易所允许的精度
func (p *PrecisionProvider) Truncate(pair, quote string, qty decimal.Decimal) decimal.Decimal {
	return qty.Truncate(p.GetQuantityPrecision(pair, quote))
}
