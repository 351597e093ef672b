// Package ledger 维护每个标的的实时持仓与平仓历史。
// 使用单写者模式避免锁和竞态条件。
package ledger

import (
	"math"
	"sort"
	"time"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/util/round"
)

// watermarkPlaces 盯市收益率小数位
const watermarkPlaces = 4

// Ledger 持仓账本（单写者）
// 注意：本结构体默认由 Trader 单 goroutine 写入；若要跨 goroutine 读，请通过 Clone 拷贝传递。
type Ledger struct {
	// positions 按标的、买卖点类别缓存当前持仓槽位
	// 第一层 key: 标的代码
	// 第二层 key: 买卖点类别
	positions map[string]map[model.Category]*model.Position
	// history 按标的缓存已平仓记录（平仓顺序）
	history map[string][]*model.Position
}

// New 创建空账本
func New() *Ledger {
	return &Ledger{
		positions: make(map[string]map[model.Category]*model.Position),
		history:   make(map[string][]*model.Position),
	}
}

// GetOrCreate 获取持仓槽位，不存在时创建空仓对象
// 参数 instrument: 标的代码
// 参数 category: 买卖点类别
// 返回: 槽位中的持仓指针，持仓期间原地修改
func (l *Ledger) GetOrCreate(instrument string, category model.Category) *model.Position {
	slots, ok := l.positions[instrument]
	if !ok {
		slots = make(map[model.Category]*model.Position)
		l.positions[instrument] = slots
	}
	pos, ok := slots[category]
	if !ok {
		pos = model.NewPosition(instrument, category)
		slots[category] = pos
	}
	return pos
}

// Get 获取持仓槽位，不存在时返回 nil
func (l *Ledger) Get(instrument string, category model.Category) *model.Position {
	return l.positions[instrument][category]
}

// MarkToMarket 按最新 K 线的高低价更新持仓期间的最大浮盈/浮亏
// 多头：rate = (high - price) / price × 100
// 空头：rate = (price - low) / price × 100
// 最大浮盈取 max，最大浮亏取 min，两者初始为 0，只会扩大不会收窄。
func (l *Ledger) MarkToMarket(instrument string, high, low float64) {
	for _, pos := range l.positions[instrument] {
		if !pos.IsOpen() || pos.Price <= 0 {
			continue
		}
		var rate float64
		switch pos.Direction {
		case model.DirectionLong:
			rate = round.To((high-pos.Price)/pos.Price*100, watermarkPlaces)
		case model.DirectionShort:
			rate = round.To((pos.Price-low)/pos.Price*100, watermarkPlaces)
		default:
			continue
		}
		pos.MaxProfitRate = math.Max(pos.MaxProfitRate, rate)
		pos.MaxLossRate = math.Min(pos.MaxLossRate, rate)
	}
}

// Close 平仓归档
// 写入平仓时间，把当前持仓追加到历史，槽位替换为新的空仓对象。
// 返回: 归档的持仓；槽位不存在时返回 nil
func (l *Ledger) Close(instrument string, category model.Category, at time.Time) *model.Position {
	slots := l.positions[instrument]
	pos, ok := slots[category]
	if !ok {
		return nil
	}
	pos.CloseTime = at
	l.history[instrument] = append(l.history[instrument], pos)
	slots[category] = model.NewPosition(instrument, category)
	return pos
}

// Open 标的当前持仓中的仓位（按买卖点类别顺序）
func (l *Ledger) Open(instrument string) []*model.Position {
	var out []*model.Position
	for _, pos := range l.positions[instrument] {
		if pos.IsOpen() {
			out = append(out, pos)
		}
	}
	sortByCategory(out)
	return out
}

// Positions 标的全部持仓槽位（含空仓，按买卖点类别顺序）
func (l *Ledger) Positions(instrument string) []*model.Position {
	out := make([]*model.Position, 0, len(l.positions[instrument]))
	for _, pos := range l.positions[instrument] {
		out = append(out, pos)
	}
	sortByCategory(out)
	return out
}

// History 标的已平仓记录（平仓顺序）
// 返回的切片为只读视图。
func (l *Ledger) History(instrument string) []*model.Position {
	return l.history[instrument]
}

// Instruments 出现过的全部标的（升序）
func (l *Ledger) Instruments() []string {
	seen := make(map[string]struct{}, len(l.positions)+len(l.history))
	for k := range l.positions {
		seen[k] = struct{}{}
	}
	for k := range l.history {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Restore 用持久化数据重建账本
// 参数 positions: 全部持仓槽位
// 参数 history: 按标的分组的平仓记录
func Restore(positions []*model.Position, history map[string][]*model.Position) *Ledger {
	l := New()
	for _, pos := range positions {
		if pos == nil || pos.Instrument == "" {
			continue
		}
		slots, ok := l.positions[pos.Instrument]
		if !ok {
			slots = make(map[model.Category]*model.Position)
			l.positions[pos.Instrument] = slots
		}
		slots[pos.Category] = pos
	}
	for inst, list := range history {
		l.history[inst] = append([]*model.Position(nil), list...)
	}
	return l
}

func sortByCategory(list []*model.Position) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Category.Order() < list[j].Category.Order()
	})
}
