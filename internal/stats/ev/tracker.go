package ev

import (
	"sync"
	"time"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/util/round"
)

// Tracker 按买卖点类别维护独立的滚动 EV 统计
// 并发安全，可作为多个交易者共享的成交观察者。
type Tracker struct {
	windowSize int

	mu    sync.Mutex
	calcs map[model.Category]*Calculator
}

// NewTracker 创建 EV 追踪器
// 参数 windowSize: 每个类别的滚动窗口大小
func NewTracker(windowSize int) *Tracker {
	return &Tracker{windowSize: windowSize, calcs: make(map[model.Category]*Calculator)}
}

// Add 记录一笔已平仓持仓
func (t *Tracker) Add(pos *model.Position) {
	if pos == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.calcs[pos.Category]
	if !ok {
		c = NewCalculator(t.windowSize)
		t.calcs[pos.Category] = c
	}
	c.Add(pos)
}

// AddAll 批量记录已平仓持仓（报表重建时使用）
func (t *Tracker) AddAll(positions []*model.Position) {
	for _, pos := range positions {
		t.Add(pos)
	}
}

// OnFill 成交回调，EV 只关心平仓
func (t *Tracker) OnFill(model.OrderRecord) {}

// OnClose 平仓回调
func (t *Tracker) OnClose(pos *model.Position, _ float64) {
	t.Add(pos)
}

// Stats 获取指定类别的统计快照
func (t *Tracker) Stats(cat model.Category) EVStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.calcs[cat]; ok {
		return c.Stats()
	}
	return EVStats{}
}

// Row 期望值报表行
type Row struct {
	Category  model.Category `json:"category"`
	Count     int64          `json:"count"`
	WinRate   float64        `json:"winRate"`
	EV        float64        `json:"ev"`
	PRequired float64        `json:"pRequired"`
	RateP10   float64        `json:"rateP10"`
	RateP50   float64        `json:"rateP50"`
	RateP90   float64        `json:"rateP90"`
	HoldP50   time.Duration  `json:"holdP50"`
	HoldP90   time.Duration  `json:"holdP90"`
}

// Report 生成报表行，跳过没有样本的类别
// 参数 cats: 类别列表，为空表示全部类别
func (t *Tracker) Report(cats []model.Category) []Row {
	if len(cats) == 0 {
		cats = model.AllCategories()
	}
	rows := make([]Row, 0, len(cats))
	for _, cat := range cats {
		s := t.Stats(cat)
		if s.Count == 0 {
			continue
		}
		rows = append(rows, Row{
			Category:  cat,
			Count:     s.Count,
			WinRate:   round.Rate(s.WinRate * 100),
			EV:        round.Rate(s.EV),
			PRequired: round.Rate(s.PRequired * 100),
			RateP10:   s.RateP10,
			RateP50:   s.RateP50,
			RateP90:   s.RateP90,
			HoldP50:   s.HoldP50,
			HoldP90:   s.HoldP90,
		})
	}
	return rows
}
