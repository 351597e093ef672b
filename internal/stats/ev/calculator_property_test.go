// Package ev EV 计算器属性测试
package ev

import (
	"math"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trade-simulator/internal/core/model"
)

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// **Feature: trade-simulator, Property 16: Rolling Statistics Correctness**
// **Validates: rolling EV equals a hand aggregation of the window**

func TestCalculator_RollingStats_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("Stats 与手工聚合一致（window>=n）", prop.ForAll(
		func(rates []float64) bool {
			n := len(rates)
			c := NewCalculator(n + 10)

			var winCount, lossCount int64
			var sumWinR, sumLossL float64
			for _, r := range rates {
				c.Add(closed(model.Buy1, r, time.Minute))
				if r > 0 {
					winCount++
					sumWinR += r
				} else {
					lossCount++
					sumLossL += math.Abs(r)
				}
			}

			stats := c.Stats()
			if stats.Count != int64(n) || stats.WinCount != winCount || stats.LossCount != lossCount {
				return false
			}
			if n == 0 {
				return stats.EV == 0
			}

			wantP := float64(winCount) / float64(n)
			var wantR, wantL float64
			if winCount > 0 {
				wantR = sumWinR / float64(winCount)
			}
			if lossCount > 0 {
				wantL = sumLossL / float64(lossCount)
			}
			wantEV := wantP*wantR - (1-wantP)*wantL
			return approx(stats.WinRate, wantP, 1e-9) && approx(stats.EV, wantEV, 1e-9)
		},
		gen.SliceOf(gen.Float64Range(-50, 50)),
	))

	properties.TestingRun(t)
}

// **Feature: trade-simulator, Property 17: Rolling Quantile Correctness**
// **Validates: quantiles use floor((n-1)×q) over the sorted window**

func TestCalculator_Quantiles_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("分位数与排序后取下标一致", prop.ForAll(
		func(rates []float64) bool {
			c := NewCalculator(len(rates))
			for _, r := range rates {
				c.Add(closed(model.Buy1, r, time.Minute))
			}
			sorted := append([]float64(nil), rates...)
			sort.Float64s(sorted)
			at := func(q float64) float64 { return sorted[int(float64(len(sorted)-1)*q)] }

			stats := c.Stats()
			return stats.RateP10 == at(0.10) && stats.RateP50 == at(0.50) && stats.RateP90 == at(0.90)
		},
		gen.SliceOfN(20, gen.Float64Range(-50, 50)),
	))

	properties.TestingRun(t)
}
