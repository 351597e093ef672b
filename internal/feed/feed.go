// Package feed 负责行情输入：从 JSONL 文件回放、从 REST 接口回补或从 WebSocket 实时接收 K 线，
// 并把多周期 K 线组装为交易者使用的分析快照。
package feed

import (
	"context"
	"io"
	"sort"
	"strings"

	"trade-simulator/internal/core/model"
)

// BarEvent 单根已完成 K 线事件
type BarEvent struct {
	// Instrument 标的代码
	Instrument string `json:"instrument"`
	// Timeframe 周期标识
	Timeframe string `json:"timeframe"`
	model.Bar
}

// Source 行情来源
// Next 阻塞直到下一根 K 线到达；来源耗尽时返回 io.EOF。
type Source interface {
	Next(ctx context.Context) (BarEvent, error)
	Close() error
}

// sliceSource 基于内存切片的有序来源，供文件回放与 REST 回补共用
type sliceSource struct {
	events []BarEvent
	pos    int
}

// newSliceSource 按时间排序事件；时间相同时粗周期在前，再按标的排序
// 参数 timeframes: 周期列表（从粗到细），未列出的周期排在最后
func newSliceSource(events []BarEvent, timeframes []string) *sliceSource {
	rank := make(map[string]int, len(timeframes))
	for i, tf := range timeframes {
		rank[tf] = i
	}
	order := func(tf string) int {
		if r, ok := rank[tf]; ok {
			return r
		}
		return len(timeframes)
	}
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if oa, ob := order(a.Timeframe), order(b.Timeframe); oa != ob {
			return oa < ob
		}
		return a.Instrument < b.Instrument
	})
	return &sliceSource{events: events}
}

func (s *sliceSource) Next(ctx context.Context) (BarEvent, error) {
	if err := ctx.Err(); err != nil {
		return BarEvent{}, err
	}
	if s.pos >= len(s.events) {
		return BarEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *sliceSource) Close() error {
	s.pos = len(s.events)
	return nil
}

// Len 事件总数
func (s *sliceSource) Len() int {
	return len(s.events)
}

// NormalizeSymbol 将标的代码转换为交易所 symbol 格式
// 移除分隔符并转为大写，例如: btc-usdt -> BTCUSDT, ETH/USDT -> ETHUSDT
func NormalizeSymbol(s string) string {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "/", "")
	return strings.ToUpper(strings.TrimSpace(s))
}

// Interval 将周期标识转换为交易所 K 线间隔
// "d"、"w" 分别对应日线、周线，"mon" 对应月线，其余原样返回（如 30m、5m、1h）
func Interval(timeframe string) string {
	switch timeframe {
	case "d":
		return "1d"
	case "w":
		return "1w"
	case "mon":
		return "1M"
	default:
		return timeframe
	}
}

// symbolIndex 交易所 symbol 到配置标的代码的映射
func symbolIndex(instruments []string) map[string]string {
	idx := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		idx[NormalizeSymbol(inst)] = inst
	}
	return idx
}

// timeframeIndex 交易所 K 线间隔到周期标识的映射
func timeframeIndex(timeframes []string) map[string]string {
	idx := make(map[string]string, len(timeframes))
	for _, tf := range timeframes {
		idx[Interval(tf)] = tf
	}
	return idx
}
