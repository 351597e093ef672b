// Package ev 实现按买卖点类别的滚动期望值（EV）统计。
// 样本为已平仓持仓的收益率（%），不计手续费：
// EV = p × R - (1 - p) × L
// p_required = L / (R + L)
package ev

import (
	"time"

	"trade-simulator/internal/core/model"
)

type tradeSample struct {
	win  bool
	rate float64
	hold time.Duration
}

// EVStats EV 统计信息（滚动窗口）
type EVStats struct {
	// Count 样本数
	Count int64
	// WinCount 盈利样本数（收益率>0）
	WinCount int64
	// LossCount 亏损样本数（收益率<=0）
	LossCount int64

	// WinRate 胜率 p
	WinRate float64
	// AvgProfit 平均盈利率 R（%）
	AvgProfit float64
	// AvgLoss 平均亏损率 L（绝对值，%）
	AvgLoss float64

	// EV 每笔期望收益率（%）
	EV float64
	// PRequired 盈亏平衡胜率
	PRequired float64

	// RateP10 收益率 10 分位
	RateP10 float64
	// RateP50 收益率中位数
	RateP50 float64
	// RateP90 收益率 90 分位
	RateP90 float64
	// HoldP50 持仓时长中位数
	HoldP50 time.Duration
	// HoldP90 持仓时长 90 分位
	HoldP90 time.Duration
}

// Calculator EV 计算器（滚动窗口，非并发安全）
type Calculator struct {
	// windowSize 滚动窗口大小
	windowSize int
	// buf 环形缓冲区
	buf []tradeSample
	// pos 写入位置
	pos int
	// full 是否已填满
	full bool

	// 维护滚动统计（O(1) 更新）
	count     int64
	winCount  int64
	lossCount int64
	sumWinR   float64
	sumLossL  float64

	rates *rollingWindow
	holds *rollingWindow
}

// NewCalculator 创建 EV 计算器
// 参数 windowSize: 滚动窗口大小（建议 1000）
func NewCalculator(windowSize int) *Calculator {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &Calculator{
		windowSize: windowSize,
		buf:        make([]tradeSample, windowSize),
		rates:      newRollingWindow(windowSize),
		holds:      newRollingWindow(windowSize),
	}
}

// Add 添加一笔已平仓持仓
// 未平仓（CloseTime 为零值）的持仓被忽略
func (c *Calculator) Add(pos *model.Position) {
	if pos == nil || pos.CloseTime.IsZero() {
		return
	}

	s := tradeSample{
		win:  pos.IsWin(),
		rate: pos.ProfitRate,
		hold: pos.HoldDuration(),
	}

	// 若环已满，移除旧样本对统计的贡献
	if c.full {
		old := c.buf[c.pos]
		c.count--
		if old.win {
			c.winCount--
			c.sumWinR -= old.rate
		} else {
			c.lossCount--
			c.sumLossL -= abs(old.rate)
		}
	}

	c.buf[c.pos] = s
	c.pos++
	if c.pos >= c.windowSize {
		c.pos = 0
		c.full = true
	}

	c.count++
	if s.win {
		c.winCount++
		c.sumWinR += s.rate
	} else {
		c.lossCount++
		c.sumLossL += abs(s.rate)
	}
	c.rates.add(s.rate)
	c.holds.add(float64(s.hold))
}

// Stats 返回滚动窗口统计
func (c *Calculator) Stats() EVStats {
	out := EVStats{
		Count:     c.count,
		WinCount:  c.winCount,
		LossCount: c.lossCount,
	}
	if c.count <= 0 {
		return out
	}

	out.WinRate = float64(c.winCount) / float64(c.count)
	if c.winCount > 0 {
		out.AvgProfit = c.sumWinR / float64(c.winCount)
	}
	if c.lossCount > 0 {
		out.AvgLoss = c.sumLossL / float64(c.lossCount)
	}

	p, R, L := out.WinRate, out.AvgProfit, out.AvgLoss
	out.EV = p*R - (1-p)*L
	if den := R + L; den > 0 {
		out.PRequired = L / den
	} else {
		out.PRequired = 1
	}

	rq := c.rates.quantiles(0.10, 0.50, 0.90)
	out.RateP10, out.RateP50, out.RateP90 = rq[0], rq[1], rq[2]
	hq := c.holds.quantiles(0.50, 0.90)
	out.HoldP50, out.HoldP90 = time.Duration(hq[0]), time.Duration(hq[1])
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
