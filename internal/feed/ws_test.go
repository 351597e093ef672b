package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func klineMsg(symbol, interval string, closeMs int64, closePx string, closed bool) KlineMessage {
	return KlineMessage{
		EventType:   "kline",
		EventTimeMs: closeMs,
		Symbol:      symbol,
		Kline: KlinePayload{
			OpenTimeMs:  closeMs - 299999,
			CloseTimeMs: closeMs,
			Interval:    interval,
			Open:        "1",
			High:        "2",
			Low:         "0.5",
			Close:       closePx,
			Volume:      "10",
			Closed:      closed,
		},
	}
}

func TestKlineParser_Filters(t *testing.T) {
	p := newKlineParser([]string{"BTC-USDT"}, []string{"d", "5m"})

	data, _ := json.Marshal(klineMsg("BTCUSDT", "5m", 1999, "1.5", true))
	got, ok, err := p.Parse(data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BTC-USDT", got.Instrument)
	assert.Equal(t, "5m", got.Timeframe)
	assert.Equal(t, int64(2000), got.Time.UnixMilli())
	assert.Equal(t, 1.5, got.Close)

	data, _ = json.Marshal(klineMsg("BTCUSDT", "1d", 1999, "1.5", true))
	got, ok, _ = p.Parse(data)
	require.True(t, ok)
	assert.Equal(t, "d", got.Timeframe)

	for _, m := range []KlineMessage{
		klineMsg("BTCUSDT", "5m", 1999, "1.5", false),
		klineMsg("ETHUSDT", "5m", 1999, "1.5", true),
		klineMsg("BTCUSDT", "1h", 1999, "1.5", true),
	} {
		data, _ = json.Marshal(m)
		_, ok, err = p.Parse(data)
		assert.NoError(t, err)
		assert.False(t, ok)
	}

	_, ok, err = p.Parse([]byte(`{"result":null,"id":1}`))
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = p.Parse([]byte(`not json`))
	assert.Error(t, err)

	data, _ = json.Marshal(klineMsg("BTCUSDT", "5m", 1999, "abc", true))
	_, _, err = p.Parse(data)
	assert.Error(t, err)
}

// **Feature: trade-simulator, Property 15: Kline Parser Round-Trip**
// **Validates: closed klines keep their prices and close time**

func TestKlineParser_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	p := newKlineParser([]string{"ETHUSDT"}, []string{"5m"})

	properties.Property("解析保留收盘价与收盘时间", prop.ForAll(
		func(px float64, closeMs int64) bool {
			data, err := json.Marshal(klineMsg("ETHUSDT", "5m", closeMs, fmt.Sprintf("%.4f", px), true))
			if err != nil {
				return false
			}
			got, ok, err := p.Parse(data)
			if err != nil || !ok {
				return false
			}
			diff := got.Close - px
			return got.Time.UnixMilli() == closeMs+1 && diff < 0.0001 && diff > -0.0001
		},
		gen.Float64Range(0.01, 100000),
		gen.Int64Range(1700000000000, 1800000000000),
	))

	properties.TestingRun(t)
}

func TestWSSource_SubscribeAndReceive(t *testing.T) {
	subCh := make(chan SubscribeRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		var req SubscribeRequest
		if err := c.ReadJSON(&req); err != nil {
			return
		}
		subCh <- req

		_ = c.WriteJSON(map[string]any{"result": nil, "id": req.ID})
		_ = c.WriteJSON(klineMsg("BTCUSDT", "5m", 1999, "1.1", false))
		_ = c.WriteJSON(klineMsg("BTCUSDT", "5m", 1999, "1.2", true))

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	src := NewWSSource(WSConfig{
		URL:         "ws" + strings.TrimPrefix(server.URL, "http"),
		Instruments: []string{"BTCUSDT"},
		Timeframes:  []string{"d", "5m"},
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, src.Start(ctx))

	select {
	case req := <-subCh:
		assert.Equal(t, "SUBSCRIBE", req.Method)
		assert.ElementsMatch(t, []string{"btcusdt@kline_1d", "btcusdt@kline_5m"}, req.Params)
	case <-ctx.Done():
		t.Fatal("未收到订阅请求")
	}

	got, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5m", got.Timeframe)
	assert.Equal(t, 1.2, got.Close)

	require.NoError(t, src.Close())
	_, err = src.Next(ctx)
	assert.Error(t, err)
	assert.Equal(t, int64(0), src.Metrics().DroppedCount)
}

func TestWSSource_ConnectFailure(t *testing.T) {
	src := NewWSSource(WSConfig{URL: "ws://127.0.0.1:1/ws"}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, src.Start(ctx))
}
