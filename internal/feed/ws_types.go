package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/util/fastparse"
	"trade-simulator/internal/util/timeutil"
)

// SubscribeRequest WebSocket 订阅请求
// 订阅 <symbol>@kline_<interval> 行情流。
type SubscribeRequest struct {
	// Method 订阅方法: SUBSCRIBE
	Method string `json:"method"`
	// Params 订阅参数列表，如 "btcusdt@kline_5m"
	Params []string `json:"params"`
	// ID 请求 ID
	ID int64 `json:"id"`
}

// KlineMessage K 线推送消息
// 字段映射：
// - e: 事件类型（kline）
// - E: 事件时间（毫秒）
// - s: Symbol（大写）
// - k: K 线内容
type KlineMessage struct {
	// EventType 事件类型: kline
	EventType string `json:"e"`
	// EventTimeMs 事件时间（毫秒）
	EventTimeMs int64 `json:"E"`
	// Symbol 交易对
	Symbol string `json:"s"`
	// Kline K 线
	Kline KlinePayload `json:"k"`
}

// KlinePayload K 线内容（价格与数量为字符串）
type KlinePayload struct {
	// OpenTimeMs 开盘时间
	OpenTimeMs int64 `json:"t"`
	// CloseTimeMs 收盘时间
	CloseTimeMs int64 `json:"T"`
	// Interval K 线间隔
	Interval string `json:"i"`
	// Open 开盘价
	Open string `json:"o"`
	// Close 收盘价
	Close string `json:"c"`
	// High 最高价
	High string `json:"h"`
	// Low 最低价
	Low string `json:"l"`
	// Volume 成交量
	Volume string `json:"v"`
	// Closed 是否已收盘
	Closed bool `json:"x"`
}

// ConnectionMetrics 连接质量指标
type ConnectionMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64
	// DroppedCount 通道已满丢弃的 K 线数
	DroppedCount int64
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64
}

// klineParser K 线消息解析器
type klineParser struct {
	// symbols 交易所 symbol -> 标的代码，用于过滤未配置标的
	symbols map[string]string
	// intervals 交易所间隔 -> 周期标识
	intervals map[string]string
}

func newKlineParser(instruments, timeframes []string) *klineParser {
	return &klineParser{symbols: symbolIndex(instruments), intervals: timeframeIndex(timeframes)}
}

// Parse 解析 K 线推送
// 返回: ok=false 表示非 K 线消息、未收盘或未配置的标的/周期
func (p *klineParser) Parse(data []byte) (BarEvent, bool, error) {
	var msg KlineMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return BarEvent{}, false, fmt.Errorf("解析 K 线消息失败: %w", err)
	}
	if msg.EventType != "kline" || !msg.Kline.Closed {
		return BarEvent{}, false, nil
	}

	inst, ok := p.symbols[strings.ToUpper(msg.Symbol)]
	if !ok {
		return BarEvent{}, false, nil
	}
	tf, ok := p.intervals[msg.Kline.Interval]
	if !ok {
		return BarEvent{}, false, nil
	}

	k := msg.Kline
	var vals [5]float64
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := fastparse.ParseFloat(s)
		if err != nil {
			return BarEvent{}, false, fmt.Errorf("解析 K 线数值失败: %w", err)
		}
		vals[i] = v
	}

	return BarEvent{
		Instrument: inst,
		Timeframe:  tf,
		Bar: model.Bar{
			Time:   timeutil.MsToTime(k.CloseTimeMs + 1),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		},
	}, true, nil
}
