package feed

import (
	"fmt"

	"trade-simulator/internal/core/model"
)

// Builder 多周期快照组装器（单写者）
// 每个 (标的, 周期) 维护一条只追加的 K 线序列，最细周期每到一根 K 线输出一份快照。
// 快照中的序列是截断容量后的切片头，之后的追加不会影响已输出的快照。
type Builder struct {
	// timeframes 周期列表（从粗到细），最后一个为驱动周期
	timeframes []string
	// rank 周期 -> 下标
	rank map[string]int
	// maxBars 每个周期保留的最大 K 线数
	maxBars int
	// series 标的 -> 各周期 K 线
	series map[string][][]model.Bar
}

// NewBuilder 创建快照组装器
// 参数 timeframes: 周期列表（从粗到细）
// 参数 maxBars: 每个周期保留的最大 K 线数
func NewBuilder(timeframes []string, maxBars int) (*Builder, error) {
	if len(timeframes) == 0 {
		return nil, fmt.Errorf("至少需要一个周期")
	}
	if maxBars <= 0 {
		return nil, fmt.Errorf("最大 K 线数必须为正数: %d", maxBars)
	}
	rank := make(map[string]int, len(timeframes))
	for i, tf := range timeframes {
		if _, dup := rank[tf]; dup {
			return nil, fmt.Errorf("周期重复: %s", tf)
		}
		rank[tf] = i
	}
	return &Builder{
		timeframes: append([]string(nil), timeframes...),
		rank:       rank,
		maxBars:    maxBars,
		series:     make(map[string][][]model.Bar),
	}, nil
}

// Finest 驱动周期
func (b *Builder) Finest() string {
	return b.timeframes[len(b.timeframes)-1]
}

// Add 加入一根 K 线
// 未配置的周期与早于最后一根的 K 线被忽略；时间相同的 K 线替换最后一根。
// 返回: 事件属于驱动周期时返回该标的的最新快照
func (b *Builder) Add(ev BarEvent) (*model.Snapshot, bool) {
	idx, ok := b.rank[ev.Timeframe]
	if !ok {
		return nil, false
	}
	frames, ok := b.series[ev.Instrument]
	if !ok {
		frames = make([][]model.Bar, len(b.timeframes))
		b.series[ev.Instrument] = frames
	}

	bars := frames[idx]
	n := len(bars)
	switch {
	case n > 0 && ev.Time.Before(bars[n-1].Time):
		return nil, false
	case n > 0 && ev.Time.Equal(bars[n-1].Time):
		// 已输出的快照可能引用最后一根，必须复制到新数组
		replaced := make([]model.Bar, n, n+1)
		copy(replaced, bars)
		replaced[n-1] = ev.Bar
		bars = replaced
	default:
		bars = append(bars, ev.Bar)
	}
	if len(bars) > b.maxBars {
		bars = bars[len(bars)-b.maxBars:]
	}
	frames[idx] = bars

	if idx != len(b.timeframes)-1 {
		return nil, false
	}
	return b.snapshot(ev.Instrument), true
}

// Snapshot 标的的当前快照，未收到任何 K 线时返回 nil
func (b *Builder) Snapshot(instrument string) *model.Snapshot {
	if _, ok := b.series[instrument]; !ok {
		return nil
	}
	return b.snapshot(instrument)
}

func (b *Builder) snapshot(instrument string) *model.Snapshot {
	frames := b.series[instrument]
	snap := &model.Snapshot{Instrument: instrument, Frames: make([]*model.Series, len(b.timeframes))}
	for i, tf := range b.timeframes {
		bars := frames[i]
		snap.Frames[i] = &model.Series{Timeframe: tf, Bars: bars[:len(bars):len(bars)]}
	}
	return snap
}
