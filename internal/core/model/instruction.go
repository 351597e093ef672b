package model

import "time"

// Action 指令动作
type Action string

const (
	// ActionOpen 开仓（买点买入做多 / 卖点卖出做空）
	ActionOpen Action = "open"
	// ActionClose 平仓
	ActionClose Action = "close"
)

// Instruction 策略发出的交易指令
// 不持久化，交给执行引擎立即处理。
type Instruction struct {
	// Category 买卖点类别
	Category Category `json:"category"`
	// Action 动作: open 或 close
	Action Action `json:"action"`
	// StopLossPrice 止损价格
	StopLossPrice float64 `json:"stop_loss_price"`
	// Message 原因说明
	Message string `json:"message"`
	// Info 调用方元数据，开仓时写入持仓
	Info map[string]any `json:"info,omitempty"`
	// Liquidate 运行结束的强制清仓，不受当日不可卖出限制
	Liquidate bool `json:"-"`
}

// Quote 仓位计算结果：成交价格与数量
type Quote struct {
	// Price 成交价格
	Price float64 `json:"price"`
	// Amount 成交数量
	Amount float64 `json:"amount"`
}

// Value 成交金额
func (q Quote) Value() float64 {
	return q.Price * q.Amount
}

// OrderRecord 成交记录
type OrderRecord struct {
	// Time 成交时间
	Time time.Time `json:"time"`
	// Instrument 标的代码
	Instrument string `json:"instrument"`
	// Category 买卖点类别
	Category Category `json:"category"`
	// Action 动作
	Action Action `json:"action"`
	// Price 成交价格
	Price float64 `json:"price"`
	// Amount 成交数量
	Amount float64 `json:"amount"`
	// Message 原因说明
	Message string `json:"message"`
}
