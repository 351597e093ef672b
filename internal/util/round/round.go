// Package round 提供金额与比率的定点舍入。
// 仓位数量保留 4 位小数，百分比保留 2 位小数；使用 decimal 避免二进制浮点的半位误差。
package round

import "github.com/shopspring/decimal"

const (
	// AmountPlaces 仓位数量小数位
	AmountPlaces = 4
	// RatePlaces 百分比小数位
	RatePlaces = 2
)

// To 将 v 四舍五入到 places 位小数
func To(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Amount 仓位数量舍入（4 位）
func Amount(v float64) float64 {
	return To(v, AmountPlaces)
}

// Rate 百分比舍入（2 位）
func Rate(v float64) float64 {
	return To(v, RatePlaces)
}

// Percent 计算 num/den×100 并保留 places 位，den 为 0 时返回 0
func Percent(num, den float64, places int32) float64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromFloat(num).
		Div(decimal.NewFromFloat(den)).
		Mul(decimal.NewFromInt(100)).
		Round(places).
		InexactFloat64()
}
