// Package storetest 提供 store.TraderStore 各实现共用的行为测试。
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/stats/category"
	"trade-simulator/internal/store"
	"trade-simulator/internal/trader"
)

// State 构造一个带有平仓记录与统计的交易者状态
func State(name string, win float64) trader.State {
	at := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	pos := &model.Position{
		Instrument: "A",
		Category:   model.Buy1,
		OpenTime:   at,
		CloseTime:  at.Add(24 * time.Hour),
		ProfitRate: 10,
		OpenMsg:    "一买",
		CloseMsg:   "退出",
	}
	return trader.State{
		Name:               name,
		SameDayRestriction: true,
		Prices:             map[string]float64{"A": 11},
		Times:              map[string]time.Time{"A": at.Add(24 * time.Hour)},
		Positions:          []*model.Position{model.NewPosition("A", model.Buy1)},
		History:            map[string][]*model.Position{"A": {pos}},
		Orders: map[string][]model.OrderRecord{"A": {
			{Time: at, Instrument: "A", Category: model.Buy1, Action: model.ActionOpen, Price: 10, Amount: 9900},
		}},
		Stats: map[model.Category]category.Stats{model.Buy1: {WinCount: 1, WinBalance: win}},
		Logs:  []string{"[A] 一买"},
	}
}

// Run 对一个空的存储实现执行通用行为测试
func Run(t *testing.T, s store.TraderStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.Load(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), store.ErrNotFound)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		assert.ErrorIs(t, s.Save(ctx, "", []trader.State{State("a", 1)}), store.ErrInvalidInput)
		assert.ErrorIs(t, s.Save(ctx, "k", nil), store.ErrInvalidInput)
		assert.ErrorIs(t, s.Save(ctx, "k", []trader.State{State("", 1)}), store.ErrInvalidInput)
		assert.ErrorIs(t, s.Save(ctx, "k", []trader.State{State("a", 1), State("a", 2)}), store.ErrDuplicateKey)
	})

	t.Run("SaveLoadReplace", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "run-1", []trader.State{State("stock", 9900), State("futures", 100)}))

		got, err := s.Load(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "futures", got[0].Name)
		assert.Equal(t, "stock", got[1].Name)
		assert.Equal(t, 9900.0, got[1].Stats[model.Buy1].WinBalance)
		assert.True(t, got[1].SameDayRestriction)
		require.Len(t, got[1].History["A"], 1)
		assert.Equal(t, 10.0, got[1].History["A"][0].ProfitRate)
		assert.True(t, got[1].Times["A"].Equal(time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)))

		require.NoError(t, s.Save(ctx, "run-1", []trader.State{State("only", 1)}))
		got, err = s.Load(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "only", got[0].Name)
	})

	t.Run("KeysAndDelete", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "run-0", []trader.State{State("a", 1)}))
		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-0", "run-1"}, keys)

		require.NoError(t, s.Delete(ctx, "run-0"))
		keys, err = s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-1"}, keys)
	})
}
