// Package timeutil 提供时间相关的工具函数。
// 包含高精度时间戳（用于行情连接的存活统计）与交易日期格式化。
package timeutil

import (
	"time"
)

const (
	// DateLayout 交易日期格式
	DateLayout = "2006-01-02"
	// DateTimeLayout 日期时间格式（日志与报表）
	DateTimeLayout = "2006-01-02 15:04:05"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// NowNano 获取当前时间的纳秒时间戳
// 使用“单调时钟 + 启动时 Unix 时间”组合实现，系统时间跳变时时间差仍保持单调。
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// MsToTime 将毫秒时间戳转换为 time.Time（UTC）
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// DateKey 交易日期键，用于当日不可卖出判断
// 使用 t 自身的时区，调用方保证同一标的的观测时间时区一致。
func DateKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatDateTime 格式化日期时间
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}
