package model

import (
	"time"
)

// Position 持仓对象
// 以 (标的, 买卖点类别) 为键的一个交易槽位；平仓后归档到历史，槽位替换为新的空仓对象。
// 不变量：Balance > 0 当且仅当 Direction != DirectionNone；Balance 与 Amount 不为负。
type Position struct {
	// Instrument 标的代码
	Instrument string `json:"instrument"`
	// Category 买卖点类别
	Category Category `json:"category"`
	// Direction 持仓方向
	Direction Direction `json:"direction"`
	// Balance 持仓名义金额（price × amount），空仓为 0
	Balance float64 `json:"balance"`
	// Price 开仓价格
	Price float64 `json:"price"`
	// Amount 持仓数量
	Amount float64 `json:"amount"`
	// StopLossPrice 止损价格，0 表示未设置
	StopLossPrice float64 `json:"stop_loss_price"`
	// OpenDate 开仓日期（2006-01-02），用于当日不可卖出规则
	OpenDate string `json:"open_date"`
	// OpenTime 开仓时间
	OpenTime time.Time `json:"open_time"`
	// CloseTime 平仓时间
	CloseTime time.Time `json:"close_time"`
	// ProfitRate 平仓收益率（%，两位小数）
	ProfitRate float64 `json:"profit_rate"`
	// MaxProfitRate 持仓期间最大浮盈率（%）
	MaxProfitRate float64 `json:"max_profit_rate"`
	// MaxLossRate 持仓期间最大浮亏率（%）
	MaxLossRate float64 `json:"max_loss_rate"`
	// OpenMsg 开仓原因
	OpenMsg string `json:"open_msg"`
	// CloseMsg 平仓原因
	CloseMsg string `json:"close_msg"`
	// Info 调用方附带的元数据
	Info map[string]any `json:"info,omitempty"`

	// 以下信息只在审计模式下记录
	// OpenSnapshot 开仓时的分析快照
	OpenSnapshot *Snapshot `json:"open_snapshot,omitempty"`
	// CloseSnapshot 平仓时的分析快照
	CloseSnapshot *Snapshot `json:"close_snapshot,omitempty"`
}

// NewPosition 创建空仓对象
func NewPosition(instrument string, category Category) *Position {
	return &Position{Instrument: instrument, Category: category}
}

// IsOpen 是否持仓中
func (p *Position) IsOpen() bool {
	return p.Balance > 0
}

// IsLong 是否为多头持仓
func (p *Position) IsLong() bool {
	return p.Direction == DirectionLong
}

// IsShort 是否为空头持仓
func (p *Position) IsShort() bool {
	return p.Direction == DirectionShort
}

// HoldDuration 持仓时长，未平仓返回 0
func (p *Position) HoldDuration() time.Duration {
	if p.CloseTime.IsZero() || p.OpenTime.IsZero() {
		return 0
	}
	return p.CloseTime.Sub(p.OpenTime)
}

// IsWin 平仓是否盈利（收益率为 0 视为亏损）
func (p *Position) IsWin() bool {
	return p.ProfitRate > 0
}

// Clone 复制持仓对象
// 元数据做浅层复制；快照为只读对象，直接共享。
func (p *Position) Clone() *Position {
	clone := *p
	if p.Info != nil {
		clone.Info = make(map[string]any, len(p.Info))
		for k, v := range p.Info {
			clone.Info[k] = v
		}
	}
	return &clone
}

// SnapshotFrame 查找开仓或平仓快照中指定周期的序列
// 参数 atClose: true 取平仓快照，false 取开仓快照
// 返回: 未开启审计或周期不存在时返回 nil
func (p *Position) SnapshotFrame(atClose bool, timeframe string) *Series {
	snap := p.OpenSnapshot
	if atClose {
		snap = p.CloseSnapshot
	}
	return snap.Frame(timeframe)
}
