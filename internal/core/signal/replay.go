// Package signal 实现外部买卖点信号的回放策略。
// 信号由上游形态识别引擎离线产生并以 JSONL 保存，回放时按 K 线时间逐步释放。
package signal

import (
	"fmt"
	"sort"
	"time"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/output/jsonl"
)

// StopLossMessage 止损平仓的原因说明
const StopLossMessage = "止损"

// Record 一条外部信号
type Record struct {
	// Instrument 标的代码
	Instrument string `json:"instrument"`
	// Time 信号时间，K 线时间到达后释放
	Time time.Time `json:"time"`
	// Category 买卖点类别
	Category model.Category `json:"category"`
	// Action 动作: open 或 close
	Action model.Action `json:"action"`
	// StopLoss 止损价格，0 表示不设置
	StopLoss float64 `json:"stop_loss"`
	// Msg 原因说明
	Msg string `json:"msg"`
	// Info 附加元数据
	Info map[string]any `json:"info,omitempty"`
}

// Validate 校验信号字段
func (r Record) Validate() error {
	if r.Instrument == "" {
		return fmt.Errorf("instrument 不能为空")
	}
	if r.Time.IsZero() {
		return fmt.Errorf("time 不能为空")
	}
	if !r.Category.IsValid() {
		return fmt.Errorf("未知买卖点类别: %q", r.Category)
	}
	if r.Action != model.ActionOpen && r.Action != model.ActionClose {
		return fmt.Errorf("未知动作: %q", r.Action)
	}
	if r.StopLoss < 0 {
		return fmt.Errorf("stop_loss 不能为负")
	}
	return nil
}

func (r Record) instruction() model.Instruction {
	return model.Instruction{
		Category:      r.Category,
		Action:        r.Action,
		StopLossPrice: r.StopLoss,
		Message:       r.Msg,
		Info:          r.Info,
	}
}

// Replay 信号回放策略（单写者）
// Stare 对持仓中的仓位发出已到达的平仓信号，并在启用止损时检查最细周期收盘价；Look 只发出开仓信号。
// 平仓信号在对应持仓真正平仓之前一直保留（例如当日不可卖出被拒绝后，下一步重试）。
type Replay struct {
	// records 按标的分组、按时间升序的信号
	records map[string][]Record
	// cursor 每个标的已释放到的位置
	cursor map[string]int
	// pending 已到达但尚未完成的信号
	pending map[string][]*pendingSignal
	// stopLoss 是否启用止损检查
	stopLoss bool
}

// pendingSignal 已到达的信号
type pendingSignal struct {
	Record
	// target 本步 Stare 发出平仓时对应的持仓，Look 据此判断是否需要重试
	target *model.Position
}

// NewReplay 创建回放策略
// 参数 records: 全部信号（任意顺序）
// 参数 stopLoss: 是否启用止损检查
func NewReplay(records []Record, stopLoss bool) (*Replay, error) {
	r := &Replay{
		records:  make(map[string][]Record),
		cursor:   make(map[string]int),
		pending:  make(map[string][]*pendingSignal),
		stopLoss: stopLoss,
	}
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("第 %d 条信号无效: %w", i+1, err)
		}
		r.records[rec.Instrument] = append(r.records[rec.Instrument], rec)
	}
	for _, list := range r.records {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Time.Before(list[j].Time) })
	}
	return r, nil
}

// Load 从 JSONL 文件加载回放策略
func Load(path string, stopLoss bool) (*Replay, error) {
	records, err := jsonl.ReadFile[Record](path)
	if err != nil {
		return nil, fmt.Errorf("加载信号失败: %w", err)
	}
	r, err := NewReplay(records, stopLoss)
	if err != nil {
		return nil, fmt.Errorf("加载信号失败 %s: %w", path, err)
	}
	return r, nil
}

// Instruments 有信号的标的（升序）
func (r *Replay) Instruments() []string {
	out := make([]string, 0, len(r.records))
	for k := range r.records {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Remaining 尚未释放的信号数
func (r *Replay) Remaining() int {
	n := 0
	for inst, list := range r.records {
		n += len(list) - r.cursor[inst]
	}
	return n
}

// Pending 已到达但尚未完成的信号数
func (r *Replay) Pending() int {
	n := 0
	for _, list := range r.pending {
		n += len(list)
	}
	return n
}

// advance 释放时间不晚于 now 的信号
func (r *Replay) advance(inst string, now time.Time) {
	list := r.records[inst]
	i := r.cursor[inst]
	for i < len(list) && !list[i].Time.After(now) {
		r.pending[inst] = append(r.pending[inst], &pendingSignal{Record: list[i]})
		i++
	}
	r.cursor[inst] = i
}

// Stare 实现 trader.Strategy
func (r *Replay) Stare(cat model.Category, pos *model.Position, snap *model.Snapshot) *model.Instruction {
	bar, ok := snap.LastBar()
	if !ok {
		return nil
	}
	inst := snap.Instrument
	r.advance(inst, bar.Time)

	for _, p := range r.pending[inst] {
		if p.Category == cat && p.Action == model.ActionClose {
			p.target = pos
			ins := p.instruction()
			return &ins
		}
	}

	if r.stopLoss && pos != nil && pos.StopLossPrice > 0 {
		hit := (pos.IsLong() && bar.Close < pos.StopLossPrice) ||
			(pos.IsShort() && bar.Close > pos.StopLossPrice)
		if hit {
			return &model.Instruction{Category: cat, Action: model.ActionClose, Message: StopLossMessage}
		}
	}
	return nil
}

// Look 实现 trader.Strategy
// 返回已到达的开仓信号（按信号顺序），开仓信号只发出一次。
// 平仓信号的去留：本步已发给持仓但持仓仍未平仓的保留重试；本步有同类别开仓的保留给下一步；其余丢弃。
func (r *Replay) Look(snap *model.Snapshot) []model.Instruction {
	bar, ok := snap.LastBar()
	if !ok {
		return nil
	}
	inst := snap.Instrument
	r.advance(inst, bar.Time)

	pending := r.pending[inst]
	if len(pending) == 0 {
		return nil
	}

	var out []model.Instruction
	opened := make(map[model.Category]bool)
	for _, p := range pending {
		if p.Action == model.ActionOpen {
			out = append(out, p.instruction())
			opened[p.Category] = true
		}
	}

	var keep []*pendingSignal
	for _, p := range pending {
		if p.Action != model.ActionClose {
			continue
		}
		switch {
		case p.target != nil && p.target.CloseTime.IsZero():
			// 引擎拒绝（如当日不可卖出），持仓仍在
			p.target = nil
			keep = append(keep, p)
		case p.target == nil && opened[p.Category]:
			keep = append(keep, p)
		}
	}
	if len(keep) == 0 {
		delete(r.pending, inst)
	} else {
		r.pending[inst] = keep
	}
	return out
}
