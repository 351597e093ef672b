// Package report 把类别统计、滚动期望与平仓记录渲染为文本、Markdown、CSV 或 HTML。
package report

import (
	"fmt"
	"strconv"
	"time"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/stats/category"
	"trade-simulator/internal/stats/ev"
	"trade-simulator/internal/util/round"
	"trade-simulator/internal/util/timeutil"
)

// Table 渲染前的二维表
type Table struct {
	// Caption 表标题
	Caption string
	// Headers 列名
	Headers []string
	// Rows 单元格文本
	Rows [][]string
}

// Document 报表文档
type Document struct {
	// Title 文档标题
	Title string
	// Stats 类别统计
	Stats []category.Row
	// Expectancy 滚动期望，可为空
	Expectancy []ev.Row
	// Closed 平仓记录，可为空
	Closed []*model.Position
}

// Tables 文档包含的表（空表被跳过，类别统计总是输出）
func (d Document) Tables() []Table {
	tables := []Table{StatsTable(d.Stats)}
	if len(d.Expectancy) > 0 {
		tables = append(tables, ExpectancyTable(d.Expectancy))
	}
	if len(d.Closed) > 0 {
		tables = append(tables, ClosedTable(d.Closed))
	}
	return tables
}

var statsHeaders = []string{"买卖点", "成功", "失败", "胜率", "盈利", "亏损", "净利润", "回吐比例", "平均盈利", "平均亏损", "盈亏比"}

// StatsTable 类别统计表
func StatsTable(rows []category.Row) Table {
	t := Table{Caption: "买卖点统计", Headers: statsHeaders}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Category.Label(),
			strconv.FormatInt(r.Wins, 10),
			strconv.FormatInt(r.Losses, 10),
			num(r.WinRate) + "%",
			num(r.WinBalance),
			num(r.LossBalance),
			num(r.Net),
			num(r.DrawbackRatio),
			num(r.MeanWin),
			num(r.MeanLoss),
			num(r.WinLossRatio),
		})
	}
	return t
}

// ExpectancyTable 滚动期望表
func ExpectancyTable(rows []ev.Row) Table {
	t := Table{
		Caption: "滚动期望",
		Headers: []string{"买卖点", "样本", "胜率", "期望收益率", "盈亏平衡胜率", "P10", "P50", "P90", "持仓P50", "持仓P90"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Category.Label(),
			strconv.FormatInt(r.Count, 10),
			num(r.WinRate) + "%",
			num(r.EV) + "%",
			num(r.PRequired) + "%",
			num(round.Rate(r.RateP10)) + "%",
			num(round.Rate(r.RateP50)) + "%",
			num(round.Rate(r.RateP90)) + "%",
			duration(r.HoldP50),
			duration(r.HoldP90),
		})
	}
	return t
}

// ClosedTable 平仓记录表
func ClosedTable(positions []*model.Position) Table {
	t := Table{
		Caption: "平仓记录",
		Headers: []string{"标的", "买卖点", "方向", "开仓时间", "平仓时间", "开仓价", "数量", "收益率", "最大浮盈", "最大浮亏", "开仓原因", "平仓原因"},
	}
	for _, p := range positions {
		t.Rows = append(t.Rows, []string{
			p.Instrument,
			p.Category.Label(),
			p.Direction.Label(),
			timeutil.FormatDateTime(p.OpenTime),
			timeutil.FormatDateTime(p.CloseTime),
			num(p.Price),
			num(p.Amount),
			num(p.ProfitRate) + "%",
			num(p.MaxProfitRate) + "%",
			num(p.MaxLossRate) + "%",
			p.OpenMsg,
			p.CloseMsg,
		})
	}
	return t
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// duration 持仓时长，按天/小时/分钟显示
func duration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0"
	case d >= 24*time.Hour:
		return fmt.Sprintf("%.1fd", d.Hours()/24)
	case d >= time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}
