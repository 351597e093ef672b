package trader

import (
	"time"

	"trade-simulator/internal/audit"
	"trade-simulator/internal/core/ledger"
	"trade-simulator/internal/core/model"
	"trade-simulator/internal/core/orderlog"
	"trade-simulator/internal/stats/category"
)

// State 交易者的可序列化状态
// 只包含纯数据，不含策略、仓位计算策略或输出端等运行期对象。
type State struct {
	// Name 交易者名称
	Name string `json:"name"`
	// SameDayRestriction 当日不可卖出
	SameDayRestriction bool `json:"same_day_restriction"`
	// ShortSelling 允许做空
	ShortSelling bool `json:"short_selling"`
	// Categories 允许交易的买卖点类别
	Categories []model.Category `json:"categories,omitempty"`
	// Audit 审计快照模式
	Audit audit.Mode `json:"audit,omitempty"`

	// Prices 每个标的的最新价格
	Prices map[string]float64 `json:"prices"`
	// Times 每个标的的最新观测时间
	Times map[string]time.Time `json:"times"`
	// Snapshots 每个标的的最新分析快照
	Snapshots map[string]*model.Snapshot `json:"snapshots,omitempty"`

	// Positions 全部持仓槽位
	Positions []*model.Position `json:"positions"`
	// History 按标的分组的平仓记录
	History map[string][]*model.Position `json:"history"`
	// Orders 按标的分组的成交流水
	Orders map[string][]model.OrderRecord `json:"orders"`
	// Stats 按类别的累计统计
	Stats map[model.Category]category.Stats `json:"stats"`
	// Logs 交易日志
	Logs []string `json:"logs"`
}

// State 导出当前状态
// 返回的持仓为拷贝，快照为只读共享。
func (t *Trader) State() State {
	st := State{
		Name:               t.opts.Name,
		SameDayRestriction: t.opts.SameDayRestriction,
		ShortSelling:       t.opts.ShortSelling,
		Categories:         append([]model.Category(nil), t.opts.Categories...),
		Audit:              t.opts.Audit,
		Prices:             make(map[string]float64, len(t.prices)),
		Times:              make(map[string]time.Time, len(t.times)),
		Snapshots:          make(map[string]*model.Snapshot, len(t.snapshots)),
		History:            make(map[string][]*model.Position),
		Orders:             t.orders.Map(),
		Stats:              t.stats.Map(),
		Logs:               append([]string(nil), t.logs.Lines()...),
	}
	for k, v := range t.prices {
		st.Prices[k] = v
	}
	for k, v := range t.times {
		st.Times[k] = v
	}
	for k, v := range t.snapshots {
		st.Snapshots[k] = v
	}
	for _, inst := range t.book.Instruments() {
		for _, pos := range t.book.Positions(inst) {
			st.Positions = append(st.Positions, pos.Clone())
		}
		if hist := t.book.History(inst); len(hist) > 0 {
			list := make([]*model.Position, 0, len(hist))
			for _, pos := range hist {
				list = append(list, pos.Clone())
			}
			st.History[inst] = list
		}
	}
	return st
}

// Restore 由持久化状态重建交易者
// 参数 st: 交易者状态
// 参数 strategy: 交易策略，仅查看报表时可为 nil
// 参数 opts: 运行期对象（Sizing、Sink、Observer）；名称与市场规则以 st 为准
func Restore(st State, strategy Strategy, opts Options) (*Trader, error) {
	opts.Name = st.Name
	opts.SameDayRestriction = st.SameDayRestriction
	opts.ShortSelling = st.ShortSelling
	opts.Categories = st.Categories
	opts.Audit = st.Audit

	t, err := build(opts, strategy,
		ledger.Restore(st.Positions, st.History),
		orderlog.Restore(st.Orders),
		category.FromMap(st.Stats),
		st.Logs,
	)
	if err != nil {
		return nil, err
	}
	for k, v := range st.Prices {
		t.prices[k] = v
	}
	for k, v := range st.Times {
		t.times[k] = v
	}
	for k, v := range st.Snapshots {
		t.snapshots[k] = v
	}
	return t, nil
}
