package model

import "time"

// Bar 单根 K 线
type Bar struct {
	// Time K 线时间（观测时间）
	Time time.Time `json:"time"`
	// Open 开盘价
	Open float64 `json:"open"`
	// High 最高价
	High float64 `json:"high"`
	// Low 最低价
	Low float64 `json:"low"`
	// Close 收盘价
	Close float64 `json:"close"`
	// Volume 成交量
	Volume float64 `json:"volume"`
}

// Series 单一周期的 K 线序列
// Bars 只追加，已有元素不会被原地修改，快照可以安全地共享底层数组。
type Series struct {
	// Timeframe 周期标识，如 "d"、"30m"、"5m"
	Timeframe string `json:"timeframe"`
	// Bars K 线列表（时间升序）
	Bars []Bar `json:"bars"`
}

// Last 最后一根 K 线
func (s *Series) Last() (Bar, bool) {
	if s == nil || len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Snapshot 单个标的在某一时刻的多周期分析快照
// Frames 按周期从粗到细排列，最后一个为最细周期，用于定价与盯市。
type Snapshot struct {
	// Instrument 标的代码
	Instrument string `json:"instrument"`
	// Frames 多周期序列
	Frames []*Series `json:"frames"`
}

// Finest 最细周期序列
func (s *Snapshot) Finest() *Series {
	if s == nil || len(s.Frames) == 0 {
		return nil
	}
	return s.Frames[len(s.Frames)-1]
}

// Frame 按周期标识查找序列
func (s *Snapshot) Frame(timeframe string) *Series {
	if s == nil {
		return nil
	}
	for _, f := range s.Frames {
		if f.Timeframe == timeframe {
			return f
		}
	}
	return nil
}

// LastBar 最细周期的最后一根 K 线
func (s *Snapshot) LastBar() (Bar, bool) {
	return s.Finest().Last()
}
