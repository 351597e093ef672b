// Package feed 行情来源测试
package feed

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-simulator/internal/core/model"
)

var t0 = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

func ev(inst, tf string, at time.Time, close float64) BarEvent {
	return BarEvent{Instrument: inst, Timeframe: tf, Bar: model.Bar{Time: at, Open: close, High: close, Low: close, Close: close}}
}

func drain(t *testing.T, src Source) []BarEvent {
	t.Helper()
	var out []BarEvent
	for {
		e, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, e)
	}
}

func TestMemorySource_Ordering(t *testing.T) {
	src := NewMemorySource([]BarEvent{
		ev("B", "5m", t0.Add(5*time.Minute), 2),
		ev("A", "5m", t0, 1),
		ev("A", "30m", t0, 10),
		ev("A", "5m", t0.Add(5*time.Minute), 3),
	}, []string{"30m", "5m"})

	got := drain(t, src)
	require.Len(t, got, 4)
	// 同一时刻粗周期在前，再按标的排序
	assert.Equal(t, "30m", got[0].Timeframe)
	assert.Equal(t, "5m", got[1].Timeframe)
	assert.Equal(t, "A", got[2].Instrument)
	assert.Equal(t, "B", got[3].Instrument)

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMemorySource_ContextCanceled(t *testing.T) {
	src := NewMemorySource([]BarEvent{ev("A", "5m", t0, 1)}, []string{"5m"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.jsonl")
	lines := []string{
		`{"instrument":"sh.600000","timeframe":"5m","time":"2024-05-06T09:35:00Z","open":10,"high":10.2,"low":9.9,"close":10.1,"volume":100}`,
		``,
		`{"instrument":"sh.600000","timeframe":"d","time":"2024-05-06T09:35:00Z","open":10,"high":10.5,"low":9.5,"close":10.1,"volume":1000}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	src, err := NewFileSource(path, []string{"d", "5m"})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 2, src.Len())

	got := drain(t, src)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].Timeframe)
	assert.Equal(t, 10.5, got[0].High)
	assert.Equal(t, 10.1, got[1].Close)
}

func TestFileSource_MissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeframe":"5m","time":"2024-05-06T09:35:00Z"}`), 0o644))

	_, err := NewFileSource(path, []string{"5m"})
	assert.Error(t, err)

	_, err = NewFileSource(filepath.Join(dir, "missing.jsonl"), []string{"5m"})
	assert.Error(t, err)
}

func TestInterval(t *testing.T) {
	assert.Equal(t, "1d", Interval("d"))
	assert.Equal(t, "1w", Interval("w"))
	assert.Equal(t, "1M", Interval("mon"))
	assert.Equal(t, "30m", Interval("30m"))
}

// **Feature: trade-simulator, Property 13: Symbol Normalization Consistency**
// **Validates: instrument codes map to one exchange symbol regardless of format**

func TestNormalizeSymbol_Consistency(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	coins := []string{"BTC", "ETH", "SOL", "DOGE", "XRP", "ADA", "DOT", "LINK", "UNI", "AVAX"}

	properties.Property("分隔符与大小写不影响标准化结果", prop.ForAll(
		func(baseIdx, quoteIdx int) bool {
			base := coins[baseIdx%len(coins)]
			quote := coins[quoteIdx%len(coins)]
			want := base + quote

			return NormalizeSymbol(base+"-"+quote) == want &&
				NormalizeSymbol(base+"_"+quote) == want &&
				NormalizeSymbol(strings.ToLower(base)+"/"+quote) == want &&
				NormalizeSymbol(" "+strings.ToLower(want)) == want
		},
		gen.IntRange(0, 9),
		gen.IntRange(0, 9),
	))

	properties.TestingRun(t)
}
