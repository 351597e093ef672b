// Package model 定义模拟交易引擎中使用的核心数据结构。
// 包含买卖点类别、持仓、交易指令、K 线快照等核心类型。
package model

import "fmt"

// Direction 持仓方向
type Direction string

const (
	// DirectionNone 空仓
	DirectionNone Direction = ""
	// DirectionLong 做多
	DirectionLong Direction = "long"
	// DirectionShort 做空
	DirectionShort Direction = "short"
)

// Label 方向的中文名称，用于日志
func (d Direction) Label() string {
	switch d {
	case DirectionLong:
		return "做多"
	case DirectionShort:
		return "做空"
	default:
		return "空仓"
	}
}

// Category 买卖点类别
// 由上游形态识别引擎产生，每个类别有明确的方向：买点做多，卖点做空。
type Category string

const (
	// Buy1 一类买点
	Buy1 Category = "1buy"
	// Buy2 二类买点
	Buy2 Category = "2buy"
	// LooseBuy2 类二类买点
	LooseBuy2 Category = "l2buy"
	// Buy3 三类买点
	Buy3 Category = "3buy"
	// LooseBuy3 类三类买点
	LooseBuy3 Category = "l3buy"
	// Sell1 一类卖点
	Sell1 Category = "1sell"
	// Sell2 二类卖点
	Sell2 Category = "2sell"
	// LooseSell2 类二类卖点
	LooseSell2 Category = "l2sell"
	// Sell3 三类卖点
	Sell3 Category = "3sell"
	// LooseSell3 类三类卖点
	LooseSell3 Category = "l3sell"
)

type categoryInfo struct {
	direction Direction
	label     string
	order     int
}

var categories = map[Category]categoryInfo{
	Buy1:       {DirectionLong, "一类买点", 0},
	Buy2:       {DirectionLong, "二类买点", 1},
	LooseBuy2:  {DirectionLong, "类二类买点", 2},
	Buy3:       {DirectionLong, "三类买点", 3},
	LooseBuy3:  {DirectionLong, "类三类买点", 4},
	Sell1:      {DirectionShort, "一类卖点", 5},
	Sell2:      {DirectionShort, "二类卖点", 6},
	LooseSell2: {DirectionShort, "类二类卖点", 7},
	Sell3:      {DirectionShort, "三类卖点", 8},
	LooseSell3: {DirectionShort, "类三类卖点", 9},
}

// AllCategories 返回全部买卖点类别（固定顺序，报表与清仓均按此顺序）
func AllCategories() []Category {
	return []Category{Buy1, Buy2, LooseBuy2, Buy3, LooseBuy3, Sell1, Sell2, LooseSell2, Sell3, LooseSell3}
}

// ParseCategory 解析买卖点类别
// 参数 s: 类别标识，如 "1buy"、"l3sell"
// 返回: 类别，未知标识返回错误
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("未知买卖点类别: %q", s)
	}
	return c, nil
}

// IsValid 是否为已知类别
func (c Category) IsValid() bool {
	_, ok := categories[c]
	return ok
}

// Direction 类别对应的开仓方向
// 未知类别返回 DirectionNone
func (c Category) Direction() Direction {
	return categories[c].direction
}

// IsLong 是否为买点（做多）
func (c Category) IsLong() bool {
	return c.Direction() == DirectionLong
}

// IsShort 是否为卖点（做空）
func (c Category) IsShort() bool {
	return c.Direction() == DirectionShort
}

// Label 类别的中文名称
func (c Category) Label() string {
	if info, ok := categories[c]; ok {
		return info.label
	}
	return string(c)
}

// Order 类别的排序序号，未知类别排在最后
func (c Category) Order() int {
	if info, ok := categories[c]; ok {
		return info.order
	}
	return len(categories)
}
