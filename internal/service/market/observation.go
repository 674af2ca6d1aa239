package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation 某个标的的一次价格/成交量采样
type Observation struct {
	Symbol string          `json:"symbol"`
	Time   time.Time       `json:"time"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}
