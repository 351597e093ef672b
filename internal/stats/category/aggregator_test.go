// Package category 买卖点类别统计测试
package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-simulator/internal/core/model"
)

func TestAggregator_Empty(t *testing.T) {
	rows := New().Report([]model.Category{model.Buy1})
	require.Len(t, rows, 1)
	assert.Equal(t, Row{Category: model.Buy1}, rows[0])
}

func TestAggregator_ReportScenario(t *testing.T) {
	a := New()
	a.Record(model.Buy2, 100)
	a.Record(model.Buy2, 150)
	a.Record(model.Buy2, 50)
	a.Record(model.Buy2, -100)

	s := a.Get(model.Buy2)
	assert.Equal(t, Stats{WinCount: 3, LossCount: 1, WinBalance: 300, LossBalance: 100}, s)

	row := a.Report([]model.Category{model.Buy2})[0]
	assert.Equal(t, model.Buy2, row.Category)
	assert.Equal(t, int64(3), row.Wins)
	assert.Equal(t, int64(1), row.Losses)
	assert.Equal(t, 75.0, row.WinRate)
	assert.Equal(t, 300.0, row.WinBalance)
	assert.Equal(t, 100.0, row.LossBalance)
	assert.Equal(t, 200.0, row.Net)
	assert.Equal(t, 33.33, row.DrawbackRatio)
	assert.Equal(t, 100.0, row.MeanWin)
	assert.Equal(t, 100.0, row.MeanLoss)
	assert.Equal(t, 1.0, row.WinLossRatio)
}

// 收益恰好为 0 计入亏损分支，保持与历史统计口径一致
func TestAggregator_ZeroProfitIsLoss(t *testing.T) {
	a := New()
	a.Record(model.Sell1, 0)

	s := a.Get(model.Sell1)
	assert.Equal(t, int64(0), s.WinCount)
	assert.Equal(t, int64(1), s.LossCount)
	assert.Equal(t, 0.0, s.LossBalance)

	row := a.Report([]model.Category{model.Sell1})[0]
	assert.Equal(t, 0.0, row.WinRate)
	assert.Equal(t, 0.0, row.DrawbackRatio)
	assert.Equal(t, 0.0, row.WinLossRatio)
}

func TestAggregator_OnlyLosses(t *testing.T) {
	a := New()
	a.Record(model.Buy1, -30)
	a.Record(model.Buy1, -10)

	row := a.Report([]model.Category{model.Buy1})[0]
	assert.Equal(t, 0.0, row.WinRate)
	assert.Equal(t, -40.0, row.Net)
	assert.Equal(t, 0.0, row.DrawbackRatio)
	assert.Equal(t, 0.0, row.MeanWin)
	assert.Equal(t, 20.0, row.MeanLoss)
	assert.Equal(t, 0.0, row.WinLossRatio)
}

func TestAggregator_ReportDefaultsToAllCategories(t *testing.T) {
	rows := New().Report(nil)
	require.Len(t, rows, len(model.AllCategories()))
	assert.Equal(t, model.Buy1, rows[0].Category)
	assert.Equal(t, model.LooseSell3, rows[len(rows)-1].Category)
}

func TestAggregator_MergeDoesNotMutateInputs(t *testing.T) {
	a := New()
	a.Record(model.Buy1, 10)
	b := New()
	b.Record(model.Buy1, -5)

	m := a.Merge(b, nil)
	assert.Equal(t, Stats{WinCount: 1, LossCount: 1, WinBalance: 10, LossBalance: 5}, m.Get(model.Buy1))
	assert.Equal(t, Stats{WinCount: 1, WinBalance: 10}, a.Get(model.Buy1))
	assert.Equal(t, Stats{LossCount: 1, LossBalance: 5}, b.Get(model.Buy1))
}

func TestBuildRow_WinLossRatioPrecision(t *testing.T) {
	row := BuildRow(model.Buy3, Stats{WinCount: 3, LossCount: 7, WinBalance: 100, LossBalance: 70})
	// meanWin=33.333.., meanLoss=10 => 3.3333
	assert.Equal(t, 3.3333, row.WinLossRatio)
	assert.Equal(t, 33.33, row.MeanWin)
	assert.Equal(t, 70.0, row.DrawbackRatio)
	assert.Equal(t, 30.0, row.WinRate)
}
