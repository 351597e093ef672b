// Package ev EV 计算器测试
package ev

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-simulator/internal/core/model"
)

var t0 = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

func closed(cat model.Category, rate float64, hold time.Duration) *model.Position {
	return &model.Position{Category: cat, ProfitRate: rate, OpenTime: t0, CloseTime: t0.Add(hold)}
}

func TestCalculator_Empty(t *testing.T) {
	c := NewCalculator(10)
	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Count)
	assert.Equal(t, 0.0, stats.EV)
}

func TestCalculator_IgnoresOpenPositions(t *testing.T) {
	c := NewCalculator(10)
	c.Add(nil)
	c.Add(&model.Position{ProfitRate: 5})
	assert.Equal(t, int64(0), c.Stats().Count)
}

func TestCalculator_EVFormula(t *testing.T) {
	c := NewCalculator(100)

	// 2 赢 1 输（收益率为 0 视为亏损）
	c.Add(closed(model.Buy1, 10, time.Hour))
	c.Add(closed(model.Buy1, 20, 2*time.Hour))
	c.Add(closed(model.Buy1, -15, 3*time.Hour))
	c.Add(closed(model.Buy1, 0, 4*time.Hour))

	stats := c.Stats()
	require.Equal(t, int64(4), stats.Count)
	assert.Equal(t, int64(2), stats.WinCount)
	assert.Equal(t, int64(2), stats.LossCount)

	// p=0.5, R=15, L=7.5 => EV=3.75
	assert.InDelta(t, 3.75, stats.EV, 1e-9)
	assert.InDelta(t, 7.5/22.5, stats.PRequired, 1e-9)

	assert.Equal(t, -15.0, stats.RateP10)
	assert.Equal(t, 0.0, stats.RateP50)
	assert.Equal(t, 10.0, stats.RateP90)
	assert.Equal(t, 2*time.Hour, stats.HoldP50)
	assert.Equal(t, 3*time.Hour, stats.HoldP90)
}

func TestCalculator_NoWinsNoLosses(t *testing.T) {
	c := NewCalculator(10)
	c.Add(closed(model.Buy1, 0, time.Hour))
	stats := c.Stats()
	// R+L=0 时盈亏平衡胜率为 1
	assert.Equal(t, 1.0, stats.PRequired)
	assert.Equal(t, 0.0, stats.EV)
}

func TestCalculator_RollingWindow(t *testing.T) {
	c := NewCalculator(2)

	c.Add(closed(model.Buy1, 10, time.Hour))
	c.Add(closed(model.Buy1, -10, time.Hour))
	c.Add(closed(model.Buy1, 20, time.Hour))

	stats := c.Stats()
	require.Equal(t, int64(2), stats.Count)
	// 窗口内应包含：loss(-10) 与 win(20)
	assert.Equal(t, int64(1), stats.WinCount)
	assert.Equal(t, int64(1), stats.LossCount)
	assert.True(t, math.Abs(stats.AvgProfit-20.0) < 1e-9)
	assert.True(t, math.Abs(stats.AvgLoss-10.0) < 1e-9)
	assert.Equal(t, -10.0, stats.RateP10)
}

func TestTracker_PerCategory(t *testing.T) {
	tr := NewTracker(100)
	tr.OnClose(closed(model.Buy1, 10, time.Hour), 100)
	tr.OnFill(model.OrderRecord{})
	tr.AddAll([]*model.Position{closed(model.Sell2, -5, time.Hour), closed(model.Sell2, 15, time.Hour)})

	assert.Equal(t, int64(1), tr.Stats(model.Buy1).Count)
	assert.Equal(t, int64(2), tr.Stats(model.Sell2).Count)
	assert.Equal(t, int64(0), tr.Stats(model.Buy3).Count)

	rows := tr.Report(nil)
	require.Len(t, rows, 2)
	assert.Equal(t, model.Buy1, rows[0].Category)
	assert.Equal(t, model.Sell2, rows[1].Category)
	assert.Equal(t, 50.0, rows[1].WinRate)
	assert.Equal(t, 5.0, rows[1].EV)
	assert.Equal(t, 25.0, rows[1].PRequired)

	assert.Empty(t, tr.Report([]model.Category{model.Buy3}))
}
