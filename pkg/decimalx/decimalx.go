package decimalx

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

func MustFromString(s string) decimal.Decimal {
	f, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Mean 算术平均, 空切片返回 0
func Mean(ds []decimal.Decimal) decimal.Decimal {
	if len(ds) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, ds...).Div(decimal.NewFromInt(int64(len(ds))))
}

// Ratio 把百分数转成比例, 5 -> 0.05
func Ratio(pct decimal.Decimal) decimal.Decimal {
	return pct.Div(hundred)
}

// Return 从 from 到 to 的收益率, from 为 0 时返回 false
func Return(from, to decimal.Decimal) (decimal.Decimal, bool) {
	if from.IsZero() {
		return decimal.Zero, false
	}
	return to.Sub(from).Div(from), true
}
