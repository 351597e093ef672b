package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/store/storetest"
	"trade-simulator/internal/trader"
)

func TestTraderStore(t *testing.T) {
	storetest.Run(t, NewTraderStore())
}

func TestTraderStore_NoSharedState(t *testing.T) {
	s := NewTraderStore()
	ctx := context.Background()
	st := storetest.State("a", 1)
	require.NoError(t, s.Save(ctx, "k", []trader.State{st}))

	st.Stats[model.Buy1] = st.Stats[model.Buy1].Add(st.Stats[model.Buy1])
	st.Logs[0] = "changed"

	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got[0].Stats[model.Buy1].WinCount)
	assert.Equal(t, "[A] 一买", got[0].Logs[0])
}
