// Package paper 模拟成交引擎属性测试
package paper

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/util/round"
)

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

type step struct {
	Cat   int
	Close bool
	Price float64
	Hours int
}

func genStep() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(model.AllCategories())-1),
		gen.Bool(),
		gen.Float64Range(0.01, 5000),
		gen.IntRange(0, 48),
	).Map(func(v []interface{}) step {
		return step{Cat: v[0].(int), Close: v[1].(bool), Price: v[2].(float64), Hours: v[3].(int)}
	})
}

// **Feature: trade-simulator, Property 2: Position Invariant**
// **Validates: balance > 0 iff direction != none; balance and amount never negative**

func TestEngine_PositionInvariant_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("任意指令序列后持仓不变量成立", prop.ForAll(
		func(steps []step, stock bool) bool {
			f := newFixture(Config{SameDayRestriction: stock, ShortSelling: true}, nil)
			now := day1
			cats := model.AllCategories()
			for _, s := range steps {
				now = now.Add(time.Duration(s.Hours) * time.Hour)
				ins := openIns(cats[s.Cat])
				if s.Close {
					ins = closeIns(cats[s.Cat])
				}
				f.eng.Execute("X", ins, mkt(s.Price, now))
				f.book.MarkToMarket("X", s.Price*1.01, s.Price*0.99)

				for _, pos := range f.book.Positions("X") {
					if pos.Balance < 0 || pos.Amount < 0 {
						return false
					}
					if (pos.Balance > 0) != (pos.Direction != model.DirectionNone) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(genStep()),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// **Feature: trade-simulator, Property 3: Profit Sign Convention**
// **Validates: long profit = sell - held; short profit = held - sell; win iff profit > 0**

func TestEngine_ProfitSign_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("多头收益=卖出-持有，空头收益=持有-卖出", prop.ForAll(
		func(entry, exit float64, long bool) bool {
			cat := model.Buy1
			if !long {
				cat = model.Sell1
			}
			f := newFixture(Config{ShortSelling: true}, nil)
			if !f.eng.Execute("X", openIns(cat), mkt(entry, day1)) {
				return false
			}
			held := f.book.Get("X", cat).Balance
			amount := f.book.Get("X", cat).Amount
			if !f.eng.Execute("X", closeIns(cat), mkt(exit, day1.Add(time.Hour))) {
				return false
			}

			sell := exit * amount
			want := sell - held
			if !long {
				want = held - sell
			}
			s := f.stats.Get(cat)
			if want > 0 {
				if s.WinCount != 1 || !approx(s.WinBalance, want, 1e-6) {
					return false
				}
			} else if s.LossCount != 1 || !approx(s.LossBalance, -want, 1e-6) {
				return false
			}
			return f.book.History("X")[0].ProfitRate == round.Percent(want, held, round.RatePlaces)
		},
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// **Feature: trade-simulator, Property 4: Rejected Instructions Leave No Trace**
// **Validates: duplicate open and flat close are rejected without side effects**

func TestEngine_RejectionNoSideEffects_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("重复开仓与空仓平仓不改变状态与流水", prop.ForAll(
		func(catIdx int, price float64) bool {
			cat := model.AllCategories()[catIdx]
			f := newFixture(Config{ShortSelling: true}, nil)

			if f.eng.Execute("X", closeIns(cat), mkt(price, day1)) {
				return false
			}
			if f.orders.Len() != 0 || len(f.lines) != 0 {
				return false
			}

			if !f.eng.Execute("X", openIns(cat), mkt(price, day1)) {
				return false
			}
			before := *f.book.Get("X", cat)
			if f.eng.Execute("X", openIns(cat), mkt(price*2, day1.Add(time.Hour))) {
				return false
			}
			after := *f.book.Get("X", cat)
			return after.Balance == before.Balance && after.Price == before.Price &&
				after.Amount == before.Amount && f.orders.Len() == 1 && len(f.lines) == 1
		},
		gen.IntRange(0, len(model.AllCategories())-1),
		gen.Float64Range(0.01, 5000),
	))

	properties.TestingRun(t)
}

// **Feature: trade-simulator, Property 8: Fixed Notional Sizing**
// **Validates: amount = round(capital / price × factor, 4)**

func TestFixedNotional_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("开仓数量四位小数且名义金额不超过资金", prop.ForAll(
		func(price float64) bool {
			q, ok := NewFixedNotional(100000, 0.99).OpenLong(SizingRequest{Price: price})
			if !ok {
				return false
			}
			if q.Amount != round.Amount(100000/price*0.99) {
				return false
			}
			return q.Value() <= 100000*0.99+price*0.0001
		},
		gen.Float64Range(0.01, 100000),
	))

	properties.TestingRun(t)
}
