// Package runner 驱动器测试
package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/core/signal"
	"trade-simulator/internal/feed"
	"trade-simulator/internal/trader"
)

var (
	d1 = time.Date(2024, 3, 4, 9, 35, 0, 0, time.UTC)
	d2 = d1.Add(24 * time.Hour)
)

func bar(inst, tf string, at time.Time, px float64) feed.BarEvent {
	return feed.BarEvent{Instrument: inst, Timeframe: tf, Bar: model.Bar{Time: at, Open: px, High: px, Low: px, Close: px}}
}

func events() []feed.BarEvent {
	return []feed.BarEvent{
		bar("A", "d", d1, 10),
		bar("A", "5m", d1, 10),
		bar("B", "5m", d1, 50),
		bar("A", "5m", d2, 11),
		bar("A", "5m", d2.Add(5*time.Minute), 12),
	}
}

func records() []signal.Record {
	return []signal.Record{
		{Instrument: "A", Time: d1, Category: model.Buy1, Action: model.ActionOpen, Msg: "一买"},
		{Instrument: "A", Time: d2, Category: model.Buy1, Action: model.ActionClose, Msg: "一买卖出"},
		{Instrument: "A", Time: d2.Add(5 * time.Minute), Category: model.Buy2, Action: model.ActionOpen, Msg: "二买"},
		{Instrument: "A", Time: d2.Add(5 * time.Minute), Category: model.Sell1, Action: model.ActionOpen, Msg: "一卖"},
	}
}

func newRunner(t *testing.T, opts trader.Options, instruments []string) *Runner {
	t.Helper()
	strat, err := signal.NewReplay(records(), false)
	require.NoError(t, err)
	tr, err := trader.New(opts, strat)
	require.NoError(t, err)
	b, err := feed.NewBuilder([]string{"d", "5m"}, 100)
	require.NoError(t, err)
	return New(tr, b, instruments, zap.NewNop())
}

func TestRunner_Run(t *testing.T) {
	r := newRunner(t, trader.Options{Name: "stock", SameDayRestriction: true}, []string{"A"})
	var hooked []string
	r.SetHook(func(name, inst string, _ time.Duration) { hooked = append(hooked, name+"/"+inst) })

	res, err := r.Run(context.Background(), feed.NewMemorySource(events(), []string{"d", "5m"}))
	require.NoError(t, err)

	assert.Equal(t, "stock", res.Name)
	assert.Equal(t, int64(4), res.Bars)
	assert.Equal(t, int64(3), res.Steps)
	assert.Equal(t, 1, res.Liquidated)
	assert.Equal(t, []string{"stock/A", "stock/A", "stock/A"}, hooked)

	tr := r.Trader()
	assert.Equal(t, 0, tr.OpenCount())
	s := tr.Stats().Get(model.Buy1)
	assert.Equal(t, int64(1), s.WinCount)
	assert.InDelta(t, 9900.0, s.WinBalance, 1e-6)

	closed := tr.ClosedPositions(model.Buy2)
	require.Len(t, closed, 1)
	assert.Equal(t, trader.ExitMessage, closed[0].CloseMsg)
	// 未开启做空，卖点被忽略
	assert.Empty(t, tr.ClosedPositions(model.Sell1))
}

type failingSource struct{}

func (failingSource) Next(context.Context) (feed.BarEvent, error) {
	return feed.BarEvent{}, errors.New("断线")
}
func (failingSource) Close() error { return nil }

func TestRunner_SourceError(t *testing.T) {
	r := newRunner(t, trader.Options{Name: "x"}, nil)
	_, err := r.Run(context.Background(), failingSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "断线")
}

func TestRunAll_MergesStats(t *testing.T) {
	stock := newRunner(t, trader.Options{Name: "stock", SameDayRestriction: true}, []string{"A"})
	futures := newRunner(t, trader.Options{Name: "futures", ShortSelling: true}, nil)

	sum, err := RunAll(context.Background(), []Job{
		{Runner: stock, Source: feed.NewMemorySource(events(), []string{"d", "5m"})},
		{Runner: futures, Source: feed.NewMemorySource(events(), []string{"d", "5m"})},
	})
	require.NoError(t, err)

	require.Len(t, sum.Results, 2)
	assert.Equal(t, "stock", sum.Results[0].Name)
	assert.Equal(t, 1, sum.Results[0].Liquidated)
	assert.Equal(t, 2, sum.Results[1].Liquidated)
	assert.Equal(t, int64(5), sum.Results[1].Bars)

	merged := sum.Stats.Get(model.Buy1)
	assert.Equal(t, int64(2), merged.WinCount)
	assert.Equal(t, trader.MergeStats(sum.Traders).Map(), sum.Stats.Map())

	// 清仓价格等于开仓价格，收益为 0 记为亏损
	assert.Equal(t, int64(1), sum.Stats.Get(model.Sell1).LossCount)
}

func TestRunAll_FirstErrorWins(t *testing.T) {
	ok := newRunner(t, trader.Options{Name: "ok"}, nil)
	bad := newRunner(t, trader.Options{Name: "bad"}, nil)

	_, err := RunAll(context.Background(), []Job{
		{Runner: ok, Source: feed.NewMemorySource(events(), []string{"d", "5m"})},
		{Runner: bad, Source: failingSource{}},
	})
	assert.Error(t, err)
}
