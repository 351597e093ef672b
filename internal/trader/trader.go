// Package trader 实现单个模拟交易者：按步驱动盯市、持仓检查与机会扫描。
// Trader 为单写者对象，不做任何 I/O；多个 Trader 之间不共享可变状态，可并发运行后合并统计。
package trader

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"trade-simulator/internal/audit"
	"trade-simulator/internal/core/ledger"
	"trade-simulator/internal/core/model"
	"trade-simulator/internal/core/orderlog"
	"trade-simulator/internal/core/paper"
	"trade-simulator/internal/stats/category"
)

var (
	// ErrEmptySnapshot 快照中没有任何 K 线
	ErrEmptySnapshot = errors.New("快照为空")
	// ErrNoStrategy 未设置策略
	ErrNoStrategy = errors.New("未设置策略")
)

// ExitMessage 运行结束强制清仓的原因说明
const ExitMessage = "退出"

// Strategy 交易策略（外部协作者，负责何时买卖）
type Strategy interface {
	// Stare 持仓检查：对一个持仓中的仓位返回平仓/调整指令，无操作返回 nil
	Stare(cat model.Category, pos *model.Position, snap *model.Snapshot) *model.Instruction
	// Look 机会扫描：返回按顺序执行的指令列表
	Look(snap *model.Snapshot) []model.Instruction
}

// Options 交易者配置
type Options struct {
	// Name 交易者名称
	Name string
	// SameDayRestriction 当日不可卖出（股票）
	SameDayRestriction bool
	// ShortSelling 允许做空（期货）
	ShortSelling bool
	// Categories 允许交易的买卖点类别，为空表示不限
	Categories []model.Category
	// Audit 审计快照模式，默认关闭
	Audit audit.Mode
	// Sizing 仓位计算策略，nil 使用固定名义金额
	Sizing paper.SizingPolicy
	// Sink 日志输出端，可为 nil
	Sink func(string)
	// Observer 成交观察者，可为 nil
	Observer paper.Observer
}

// Trader 模拟交易者（聚合根）
type Trader struct {
	// opts 交易者配置
	opts Options
	// strategy 交易策略
	strategy Strategy

	// prices 每个标的的最新价格
	prices map[string]float64
	// times 每个标的的最新观测时间
	times map[string]time.Time
	// snapshots 每个标的的最新分析快照
	snapshots map[string]*model.Snapshot

	book   *ledger.Ledger
	orders *orderlog.Log
	stats  *category.Aggregator
	engine *paper.Engine
	logs   *LogBook
}

// New 创建交易者
// 参数 opts: 交易者配置
// 参数 strategy: 交易策略，可以稍后通过 SetStrategy 设置
func New(opts Options, strategy Strategy) (*Trader, error) {
	return build(opts, strategy, ledger.New(), orderlog.New(), category.New(), nil)
}

func build(opts Options, strategy Strategy, book *ledger.Ledger, orders *orderlog.Log, stats *category.Aggregator, lines []string) (*Trader, error) {
	for _, c := range opts.Categories {
		if !c.IsValid() {
			return nil, fmt.Errorf("交易者 %s 配置无效: 未知买卖点类别 %q", opts.Name, c)
		}
	}
	snapshotter, err := audit.New(opts.Audit)
	if err != nil {
		return nil, fmt.Errorf("交易者 %s 配置无效: %w", opts.Name, err)
	}

	logs := NewLogBook(opts.Sink)
	logs.lines = append(logs.lines, lines...)

	t := &Trader{
		opts:      opts,
		strategy:  strategy,
		prices:    make(map[string]float64),
		times:     make(map[string]time.Time),
		snapshots: make(map[string]*model.Snapshot),
		book:      book,
		orders:    orders,
		stats:     stats,
		logs:      logs,
	}
	t.engine = paper.NewEngine(paper.Config{
		SameDayRestriction: opts.SameDayRestriction,
		ShortSelling:       opts.ShortSelling,
		Categories:         opts.Categories,
	}, book, orders, stats, opts.Sizing)
	t.engine.SetSnapshotter(snapshotter)
	t.engine.SetLogf(logs.Printf)
	if opts.Observer != nil {
		t.engine.SetObserver(opts.Observer)
	}
	return t, nil
}

// SetStrategy 设置交易策略
func (t *Trader) SetStrategy(s Strategy) { t.strategy = s }

// Name 交易者名称
func (t *Trader) Name() string { return t.opts.Name }

// Run 运行一步（唯一入口）
// 顺序：记录快照与最新价格 → 盯市 → 对持仓中的仓位逐个 Stare 并立即执行 → Look 并按顺序执行。
// 参数 instrument: 标的代码
// 参数 snap: 多周期分析快照，最后一个周期为最细周期
func (t *Trader) Run(instrument string, snap *model.Snapshot) error {
	if t.strategy == nil {
		return ErrNoStrategy
	}
	bar, ok := snap.LastBar()
	if !ok {
		return fmt.Errorf("%s: %w", instrument, ErrEmptySnapshot)
	}

	t.snapshots[instrument] = snap
	t.prices[instrument] = bar.Close
	t.times[instrument] = bar.Time

	t.book.MarkToMarket(instrument, bar.High, bar.Low)

	mkt := t.market(instrument)
	for _, pos := range t.book.Open(instrument) {
		if ins := t.strategy.Stare(pos.Category, pos, snap); ins != nil {
			t.engine.Execute(instrument, *ins, mkt)
		}
	}
	for _, ins := range t.strategy.Look(snap) {
		t.engine.Execute(instrument, ins, mkt)
	}
	return nil
}

// Execute 以标的最新市场状态执行一条指令
func (t *Trader) Execute(instrument string, ins model.Instruction) bool {
	return t.engine.Execute(instrument, ins, t.market(instrument))
}

// End 运行结束，统一清仓
// 按标的升序、买卖点类别顺序逐个平仓，不受当日不可卖出限制。
// 返回: 实际平仓的数量
func (t *Trader) End() int {
	closed := 0
	for _, inst := range t.book.Instruments() {
		mkt := t.market(inst)
		for _, pos := range t.book.Open(inst) {
			ins := model.Instruction{
				Category:  pos.Category,
				Action:    model.ActionClose,
				Message:   ExitMessage,
				Liquidate: true,
			}
			if t.engine.Execute(inst, ins, mkt) {
				closed++
			}
		}
	}
	return closed
}

func (t *Trader) market(instrument string) paper.MarketState {
	return paper.MarketState{
		Price:    t.prices[instrument],
		Time:     t.times[instrument],
		Snapshot: t.snapshots[instrument],
	}
}

// Price 标的最新价格
func (t *Trader) Price(instrument string) float64 { return t.prices[instrument] }

// Time 标的最新观测时间
func (t *Trader) Time(instrument string) time.Time { return t.times[instrument] }

// Snapshot 标的最新分析快照
func (t *Trader) Snapshot(instrument string) *model.Snapshot { return t.snapshots[instrument] }

// Ledger 持仓账本
func (t *Trader) Ledger() *ledger.Ledger { return t.book }

// Orders 成交流水
func (t *Trader) Orders() *orderlog.Log { return t.orders }

// Stats 类别统计
func (t *Trader) Stats() *category.Aggregator { return t.stats }

// Logs 交易日志
func (t *Trader) Logs() []string { return t.logs.Lines() }

// Report 本交易者的统计报表
func (t *Trader) Report(cats []model.Category) []category.Row {
	return t.stats.Report(cats)
}

// ClosedPositions 指定类别的全部平仓记录（按标的升序、平仓顺序）
// 参数 cat: 买卖点类别，空字符串表示全部类别
func (t *Trader) ClosedPositions(cat model.Category) []*model.Position {
	var out []*model.Position
	for _, inst := range t.book.Instruments() {
		for _, pos := range t.book.History(inst) {
			if cat == "" || pos.Category == cat {
				out = append(out, pos)
			}
		}
	}
	return out
}

// OpenCount 当前持仓中的仓位数量
func (t *Trader) OpenCount() int {
	n := 0
	for _, inst := range t.book.Instruments() {
		n += len(t.book.Open(inst))
	}
	return n
}

// ClosedPositions 多个交易者中指定类别的平仓记录，按开仓时间升序
func ClosedPositions(traders []*Trader, cat model.Category) []*model.Position {
	var out []*model.Position
	for _, t := range traders {
		out = append(out, t.ClosedPositions(cat)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out
}

// ClosedInCloseOrder 多个交易者的全部平仓记录，按平仓时间、交易者名称、标的、类别顺序排列
// 结果与交易者的传入顺序及并发完成顺序无关。
func ClosedInCloseOrder(traders []*Trader) []*model.Position {
	type entry struct {
		name string
		pos  *model.Position
	}
	var entries []entry
	for _, t := range traders {
		for _, pos := range t.ClosedPositions("") {
			entries = append(entries, entry{name: t.Name(), pos: pos})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.pos.CloseTime.Equal(b.pos.CloseTime) {
			return a.pos.CloseTime.Before(b.pos.CloseTime)
		}
		if a.name != b.name {
			return a.name < b.name
		}
		if a.pos.Instrument != b.pos.Instrument {
			return a.pos.Instrument < b.pos.Instrument
		}
		return a.pos.Category.Order() < b.pos.Category.Order()
	})

	out := make([]*model.Position, len(entries))
	for i, e := range entries {
		out[i] = e.pos
	}
	return out
}

// MergeStats 合并多个交易者的统计
func MergeStats(traders []*Trader) *category.Aggregator {
	aggs := make([]*category.Aggregator, 0, len(traders))
	for _, t := range traders {
		aggs = append(aggs, t.stats)
	}
	return category.Merge(aggs...)
}
