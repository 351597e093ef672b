// Package category 实现按买卖点类别的胜负统计。
// 胜率 = win / (win + loss) × 100
// 回撤比 = loss_balance / win_balance × 100
// 盈亏比 = (win_balance / win) / (loss_balance / loss)
package category

import (
	"trade-simulator/internal/core/model"
	"trade-simulator/internal/util/round"
)

// ratioPlaces 盈亏比小数位
const ratioPlaces = 4

// Stats 单个买卖点类别的累计统计
// 一次运行内各字段只增不减。
type Stats struct {
	// WinCount 盈利次数（收益>0）
	WinCount int64 `json:"win_count"`
	// LossCount 亏损次数（收益<=0）
	LossCount int64 `json:"loss_count"`
	// WinBalance 累计盈利金额
	WinBalance float64 `json:"win_balance"`
	// LossBalance 累计亏损金额（绝对值）
	LossBalance float64 `json:"loss_balance"`
}

// Add 合并另一份统计
func (s Stats) Add(o Stats) Stats {
	return Stats{
		WinCount:    s.WinCount + o.WinCount,
		LossCount:   s.LossCount + o.LossCount,
		WinBalance:  s.WinBalance + o.WinBalance,
		LossBalance: s.LossBalance + o.LossBalance,
	}
}

// Aggregator 买卖点类别统计器（单写者）
type Aggregator struct {
	// stats 按类别的累计统计
	stats map[model.Category]Stats
}

// New 创建统计器
func New() *Aggregator {
	return &Aggregator{stats: make(map[model.Category]Stats)}
}

// FromMap 用持久化数据重建统计器
func FromMap(m map[model.Category]Stats) *Aggregator {
	a := New()
	for k, v := range m {
		a.stats[k] = v
	}
	return a
}

// Record 记录一笔平仓收益
// 参数 profit: 平仓收益金额；>0 记为盈利，<=0 记为亏损（取绝对值），收益为 0 视为亏损。
func (a *Aggregator) Record(cat model.Category, profit float64) {
	s := a.stats[cat]
	if profit > 0 {
		s.WinCount++
		s.WinBalance += profit
	} else {
		s.LossCount++
		s.LossBalance += -profit
	}
	a.stats[cat] = s
}

// Get 获取类别统计，未记录过的类别返回零值
func (a *Aggregator) Get(cat model.Category) Stats {
	return a.stats[cat]
}

// Map 返回统计数据的拷贝（用于持久化）
func (a *Aggregator) Map() map[model.Category]Stats {
	out := make(map[model.Category]Stats, len(a.stats))
	for k, v := range a.stats {
		out[k] = v
	}
	return out
}

// Merge 按类别累加多个统计器，返回新的统计器
// 满足交换律与结合律，合并顺序不影响结果；nil 输入被忽略，入参不会被修改。
func Merge(aggs ...*Aggregator) *Aggregator {
	out := New()
	for _, a := range aggs {
		if a == nil {
			continue
		}
		for k, v := range a.stats {
			out.stats[k] = out.stats[k].Add(v)
		}
	}
	return out
}

// Merge 将自身与 others 合并，返回新的统计器
func (a *Aggregator) Merge(others ...*Aggregator) *Aggregator {
	return Merge(append([]*Aggregator{a}, others...)...)
}

// Row 报表行（固定 11 列）
type Row struct {
	// Category 买卖点类别
	Category model.Category `json:"category"`
	// Wins 盈利次数
	Wins int64 `json:"wins"`
	// Losses 亏损次数
	Losses int64 `json:"losses"`
	// WinRate 胜率（%）
	WinRate float64 `json:"win_rate"`
	// WinBalance 累计盈利
	WinBalance float64 `json:"win_balance"`
	// LossBalance 累计亏损
	LossBalance float64 `json:"loss_balance"`
	// Net 净收益
	Net float64 `json:"net"`
	// DrawbackRatio 回撤比（%）
	DrawbackRatio float64 `json:"drawback_ratio"`
	// MeanWin 平均盈利
	MeanWin float64 `json:"mean_win"`
	// MeanLoss 平均亏损
	MeanLoss float64 `json:"mean_loss"`
	// WinLossRatio 盈亏比
	WinLossRatio float64 `json:"win_loss_ratio"`
}

// Report 生成报表行
// 参数 cats: 需要输出的类别（按传入顺序）；为空时输出全部类别
func (a *Aggregator) Report(cats []model.Category) []Row {
	if len(cats) == 0 {
		cats = model.AllCategories()
	}
	rows := make([]Row, 0, len(cats))
	for _, cat := range cats {
		rows = append(rows, BuildRow(cat, a.stats[cat]))
	}
	return rows
}

// BuildRow 由累计统计计算一行报表
// 所有除法均有零值保护：分母为 0 时结果为 0。
func BuildRow(cat model.Category, s Stats) Row {
	row := Row{
		Category:    cat,
		Wins:        s.WinCount,
		Losses:      s.LossCount,
		WinBalance:  round.Rate(s.WinBalance),
		LossBalance: round.Rate(s.LossBalance),
		Net:         round.Rate(s.WinBalance - s.LossBalance),
	}
	if total := s.WinCount + s.LossCount; total > 0 {
		row.WinRate = round.Percent(float64(s.WinCount), float64(total), round.RatePlaces)
	}
	row.DrawbackRatio = round.Percent(s.LossBalance, s.WinBalance, round.RatePlaces)

	var meanWin, meanLoss float64
	if s.WinCount > 0 {
		meanWin = s.WinBalance / float64(s.WinCount)
	}
	if s.LossCount > 0 {
		meanLoss = s.LossBalance / float64(s.LossCount)
	}
	row.MeanWin = round.Rate(meanWin)
	row.MeanLoss = round.Rate(meanLoss)
	if meanWin != 0 && meanLoss != 0 {
		row.WinLossRatio = round.To(meanWin/meanLoss, ratioPlaces)
	}
	return row
}
