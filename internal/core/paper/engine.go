// Package paper 实现模拟成交的开平仓状态机。
// 重要：仅用于研究与回测，严禁真实下单。
package paper

import (
	"fmt"
	"time"

	"trade-simulator/internal/audit"
	"trade-simulator/internal/core/ledger"
	"trade-simulator/internal/core/model"
	"trade-simulator/internal/core/orderlog"
	"trade-simulator/internal/stats/category"
	"trade-simulator/internal/util/round"
	"trade-simulator/internal/util/timeutil"
)

// Config 市场规则配置
type Config struct {
	// SameDayRestriction 当日开仓当日不可平仓（股票市场规则，空头平仓同样适用）
	SameDayRestriction bool
	// ShortSelling 是否允许卖点做空（期货市场）
	ShortSelling bool
	// Categories 允许交易的买卖点类别，为空表示不限
	Categories []model.Category
}

// MarketState 当前观测的市场状态
type MarketState struct {
	// Price 最新价格（最细周期最后一根 K 线收盘价）
	Price float64
	// Time 最新观测时间
	Time time.Time
	// Snapshot 当前分析快照（审计模式下留存）
	Snapshot *model.Snapshot
}

// Observer 成交观察者（指标统计等）
type Observer interface {
	// OnFill 每笔成交后回调
	OnFill(rec model.OrderRecord)
	// OnClose 平仓后回调
	OnClose(pos *model.Position, profit float64)
}

// Observers 将回调依次分发给多个观察者
type Observers []Observer

// OnFill 分发成交回调
func (os Observers) OnFill(rec model.OrderRecord) {
	for _, o := range os {
		if o != nil {
			o.OnFill(rec)
		}
	}
}

// OnClose 分发平仓回调
func (os Observers) OnClose(pos *model.Position, profit float64) {
	for _, o := range os {
		if o != nil {
			o.OnClose(pos, profit)
		}
	}
}

// Engine 模拟成交引擎（单写者）
// 重要：仅用于研究/验证，严禁真实下单。
type Engine struct {
	// cfg 市场规则
	cfg Config
	// whitelist 允许的买卖点类别，nil 表示不限
	whitelist map[model.Category]struct{}

	// book 持仓账本
	book *ledger.Ledger
	// orders 成交流水
	orders *orderlog.Log
	// stats 类别统计
	stats *category.Aggregator
	// sizing 仓位计算策略
	sizing SizingPolicy

	// snapshotter 审计快照策略，nil 表示不留存
	snapshotter audit.Snapshotter
	// logf 成交日志输出
	logf func(format string, args ...any)
	// observer 成交观察者
	observer Observer
}

// NewEngine 创建模拟成交引擎
// 参数 cfg: 市场规则
// 参数 book: 持仓账本
// 参数 orders: 成交流水
// 参数 stats: 类别统计
// 参数 sizing: 仓位计算策略，nil 使用 FixedNotional 默认值
func NewEngine(cfg Config, book *ledger.Ledger, orders *orderlog.Log, stats *category.Aggregator, sizing SizingPolicy) *Engine {
	if sizing == nil {
		sizing = NewFixedNotional(0, 0)
	}
	e := &Engine{
		cfg:    cfg,
		book:   book,
		orders: orders,
		stats:  stats,
		sizing: sizing,
		logf:   func(string, ...any) {},
	}
	if len(cfg.Categories) > 0 {
		e.whitelist = make(map[model.Category]struct{}, len(cfg.Categories))
		for _, c := range cfg.Categories {
			e.whitelist[c] = struct{}{}
		}
	}
	return e
}

// SetSnapshotter 设置审计快照策略
func (e *Engine) SetSnapshotter(s audit.Snapshotter) { e.snapshotter = s }

// SetLogf 设置成交日志输出
func (e *Engine) SetLogf(logf func(format string, args ...any)) {
	if logf != nil {
		e.logf = logf
	}
}

// SetObserver 设置成交观察者
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// Sizing 当前仓位计算策略
func (e *Engine) Sizing() SizingPolicy { return e.sizing }

// Allowed 买卖点类别是否允许交易
func (e *Engine) Allowed(cat model.Category) bool {
	if !cat.IsValid() {
		return false
	}
	if cat.IsShort() && !e.cfg.ShortSelling {
		return false
	}
	if e.whitelist == nil {
		return true
	}
	_, ok := e.whitelist[cat]
	return ok
}

// Execute 执行一条交易指令
// 参数 instrument: 标的代码
// 参数 ins: 交易指令
// 参数 mkt: 当前市场状态
// 返回: 产生成交返回 true；被拒绝（类别不允许、重复开仓、空仓平仓、当日不可卖、仓位计算失败）返回 false，且不修改任何状态
func (e *Engine) Execute(instrument string, ins model.Instruction, mkt MarketState) bool {
	if !e.Allowed(ins.Category) {
		return false
	}
	switch ins.Action {
	case model.ActionOpen:
		return e.open(instrument, ins, mkt)
	case model.ActionClose:
		return e.close(instrument, ins, mkt)
	default:
		return false
	}
}

func (e *Engine) open(instrument string, ins model.Instruction, mkt MarketState) bool {
	pos := e.book.GetOrCreate(instrument, ins.Category)
	if pos.IsOpen() {
		return false
	}

	dir := ins.Category.Direction()
	req := SizingRequest{Instrument: instrument, Price: mkt.Price, Time: mkt.Time, Instruction: ins, Position: pos}
	var (
		q  model.Quote
		ok bool
	)
	if dir == model.DirectionLong {
		q, ok = e.sizing.OpenLong(req)
	} else {
		q, ok = e.sizing.OpenShort(req)
	}
	if !ok || q.Price <= 0 || q.Amount <= 0 {
		return false
	}

	pos.Direction = dir
	pos.Price = q.Price
	pos.Amount = q.Amount
	pos.Balance = q.Value()
	pos.StopLossPrice = ins.StopLossPrice
	pos.OpenDate = timeutil.DateKey(mkt.Time)
	pos.OpenTime = mkt.Time
	pos.OpenMsg = ins.Message
	pos.Info = ins.Info
	if e.snapshotter != nil {
		pos.OpenSnapshot = e.snapshotter.Capture(mkt.Snapshot)
	}

	verb := "做多买入"
	if dir == model.DirectionShort {
		verb = "做空卖出"
	}
	e.logf("[%s - %s] // %s %s（%s - %s），原因： %s",
		instrument, timeutil.FormatDateTime(mkt.Time), ins.Category, verb, fmtNum(q.Price), fmtNum(q.Amount), ins.Message)

	e.fill(instrument, ins, q, mkt.Time)
	return true
}

func (e *Engine) close(instrument string, ins model.Instruction, mkt MarketState) bool {
	pos := e.book.Get(instrument, ins.Category)
	if pos == nil || !pos.IsOpen() {
		return false
	}
	if e.cfg.SameDayRestriction && !ins.Liquidate && pos.OpenDate == timeutil.DateKey(mkt.Time) {
		return false
	}

	req := SizingRequest{Instrument: instrument, Price: mkt.Price, Time: mkt.Time, Instruction: ins, Position: pos}
	var (
		q  model.Quote
		ok bool
	)
	if pos.Direction == model.DirectionLong {
		q, ok = e.sizing.CloseLong(req)
	} else {
		q, ok = e.sizing.CloseShort(req)
	}
	if !ok {
		return false
	}

	sell := q.Value()
	held := pos.Balance
	profit := sell - held
	verb := "平仓做多"
	if pos.Direction == model.DirectionShort {
		profit = held - sell
		verb = "平仓做空"
	}
	e.stats.Record(ins.Category, profit)

	pos.ProfitRate = round.Percent(profit, held, round.RatePlaces)
	pos.CloseMsg = ins.Message
	if e.snapshotter != nil {
		pos.CloseSnapshot = e.snapshotter.Capture(mkt.Snapshot)
	}

	e.logf("[%s - %s] // %s %s（%s - %s） 盈亏：%s (%.2f%%)，原因： %s",
		instrument, timeutil.FormatDateTime(mkt.Time), ins.Category, verb, fmtNum(q.Price), fmtNum(q.Amount), fmtNum(profit), pos.ProfitRate, ins.Message)

	closed := e.book.Close(instrument, ins.Category, mkt.Time)
	e.fill(instrument, ins, q, mkt.Time)
	if e.observer != nil {
		e.observer.OnClose(closed, profit)
	}
	return true
}

func (e *Engine) fill(instrument string, ins model.Instruction, q model.Quote, at time.Time) {
	rec := model.OrderRecord{
		Time:       at,
		Instrument: instrument,
		Category:   ins.Category,
		Action:     ins.Action,
		Price:      q.Price,
		Amount:     q.Amount,
		Message:    ins.Message,
	}
	e.orders.Append(rec)
	if e.observer != nil {
		e.observer.OnFill(rec)
	}
}

func fmtNum(v float64) string {
	return fmt.Sprintf("%g", v)
}
