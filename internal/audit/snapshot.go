// Package audit 提供开平仓时分析快照的留存策略。
// 快照只在审计模式下保存，默认关闭。
package audit

import (
	"fmt"

	"trade-simulator/internal/core/model"
)

// Mode 审计模式
type Mode string

const (
	// ModeOff 不保存快照
	ModeOff Mode = "off"
	// ModeShared 结构共享：复用只追加的 K 线数组，仅截断切片头
	ModeShared Mode = "shared"
	// ModeDeep 完整复制 K 线数据
	ModeDeep Mode = "deep"
)

// Snapshotter 快照留存策略
type Snapshotter interface {
	// Capture 返回可长期保存的快照，调用方后续修改原快照不影响返回值
	Capture(snap *model.Snapshot) *model.Snapshot
}

// New 根据模式创建快照策略
// 返回: ModeOff 或空字符串返回 nil（不保存）
func New(mode Mode) (Snapshotter, error) {
	switch mode {
	case "", ModeOff:
		return nil, nil
	case ModeShared:
		return Shared{}, nil
	case ModeDeep:
		return Deep{}, nil
	default:
		return nil, fmt.Errorf("未知审计模式: %q", mode)
	}
}

// Shared 结构共享快照
// K 线数组只追加不修改，截断后的切片头 bars[:n:n] 保证后续追加不会写入共享区域。
type Shared struct{}

// Capture 实现 Snapshotter
func (Shared) Capture(snap *model.Snapshot) *model.Snapshot {
	if snap == nil {
		return nil
	}
	out := &model.Snapshot{Instrument: snap.Instrument, Frames: make([]*model.Series, len(snap.Frames))}
	for i, f := range snap.Frames {
		n := len(f.Bars)
		out.Frames[i] = &model.Series{Timeframe: f.Timeframe, Bars: f.Bars[:n:n]}
	}
	return out
}

// Deep 完整复制快照
type Deep struct{}

// Capture 实现 Snapshotter
func (Deep) Capture(snap *model.Snapshot) *model.Snapshot {
	if snap == nil {
		return nil
	}
	out := &model.Snapshot{Instrument: snap.Instrument, Frames: make([]*model.Series, len(snap.Frames))}
	for i, f := range snap.Frames {
		bars := make([]model.Bar, len(f.Bars))
		copy(bars, f.Bars)
		out.Frames[i] = &model.Series{Timeframe: f.Timeframe, Bars: bars}
	}
	return out
}
