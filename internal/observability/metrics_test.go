package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-simulator/internal/core/model"
)

func TestMetrics_Observer(t *testing.T) {
	m := NewMetrics("")
	obs := m.Observer("stock")

	obs.OnFill(model.OrderRecord{Category: model.Buy1, Action: model.ActionOpen})
	obs.OnFill(model.OrderRecord{Category: model.Buy2, Action: model.ActionOpen})
	obs.OnFill(model.OrderRecord{Category: model.Buy1, Action: model.ActionClose})
	obs.OnClose(&model.Position{Category: model.Buy1}, 120)
	obs.OnClose(&model.Position{Category: model.Buy1}, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FillsTotal.WithLabelValues("stock", "1buy", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenPositions.WithLabelValues("stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosesTotal.WithLabelValues("stock", "1buy", "win")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClosesTotal.WithLabelValues("stock", "1buy", "loss")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.ProfitTotal.WithLabelValues("stock", "1buy")))
}

func TestMetrics_StepsAndHandler(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveStep("futures", "BTCUSDT", 3*time.Millisecond)
	m.ObserveStep("futures", "BTCUSDT", time.Millisecond)
	m.MarkRunFinished(time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("futures")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastRunTimestamp))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_runner_steps_total{trader="futures"} 2`)
}
