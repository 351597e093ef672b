// Package fastparse 提供行情消息中数值字段的解析。
// 交易所 K 线接口的价格与数量既可能是字符串，也可能是 JSON 数字。
package fastparse

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ParseFloat 解析浮点数字符串
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseInt 解析整数字符串
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// MustParseFloat 解析浮点数，失败时返回 0
func MustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Number 解析字符串或数字形式的数值
// 参数 v: json.Unmarshal 得到的值（string、float64、json.Number）
func Number(v any) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("无法解析数值: %T", v)
	}
}

// Int 解析字符串或数字形式的整数（毫秒时间戳等）
func Int(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseInt(x, 10, 64)
	case float64:
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("无法解析整数: %T", v)
	}
}
