package paper

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/util/round"
)

// SizingRequest 仓位计算请求
type SizingRequest struct {
	// Instrument 标的代码
	Instrument string
	// Price 最新观测价格
	Price float64
	// Time 最新观测时间
	Time time.Time
	// Instruction 触发本次成交的指令
	Instruction model.Instruction
	// Position 当前持仓（开仓时为空仓对象）
	Position *model.Position
}

// SizingPolicy 仓位计算策略
// 四个钩子分别负责多头开仓、空头开仓、多头平仓、空头平仓；返回 false 表示放弃本次成交。
type SizingPolicy interface {
	OpenLong(req SizingRequest) (model.Quote, bool)
	OpenShort(req SizingRequest) (model.Quote, bool)
	CloseLong(req SizingRequest) (model.Quote, bool)
	CloseShort(req SizingRequest) (model.Quote, bool)
}

const (
	// DefaultCapital 回测默认单笔名义资金
	DefaultCapital = 100000.0
	// DefaultFactor 回测默认资金使用比例
	DefaultFactor = 0.99
)

// FixedNotional 固定名义金额仓位（回测）
// 开仓数量 = round(Capital / price × Factor, 4)，平仓按持仓数量全部成交。
type FixedNotional struct {
	// Capital 单笔名义资金
	Capital float64
	// Factor 资金使用比例
	Factor float64
}

// NewFixedNotional 创建固定名义金额仓位策略，非正参数使用默认值
func NewFixedNotional(capital, factor float64) FixedNotional {
	if capital <= 0 {
		capital = DefaultCapital
	}
	if factor <= 0 {
		factor = DefaultFactor
	}
	return FixedNotional{Capital: capital, Factor: factor}
}

// OpenLong 实现 SizingPolicy
func (f FixedNotional) OpenLong(req SizingRequest) (model.Quote, bool) {
	return f.open(req)
}

// OpenShort 实现 SizingPolicy
func (f FixedNotional) OpenShort(req SizingRequest) (model.Quote, bool) {
	return f.open(req)
}

// CloseLong 实现 SizingPolicy
func (f FixedNotional) CloseLong(req SizingRequest) (model.Quote, bool) {
	return closeAll(req)
}

// CloseShort 实现 SizingPolicy
func (f FixedNotional) CloseShort(req SizingRequest) (model.Quote, bool) {
	return closeAll(req)
}

func (f FixedNotional) open(req SizingRequest) (model.Quote, bool) {
	if req.Price <= 0 {
		return model.Quote{}, false
	}
	amount := round.Amount(f.Capital / req.Price * f.Factor)
	if amount <= 0 {
		return model.Quote{}, false
	}
	return model.Quote{Price: req.Price, Amount: amount}, true
}

func closeAll(req SizingRequest) (model.Quote, bool) {
	if req.Price <= 0 || req.Position == nil || req.Position.Amount <= 0 {
		return model.Quote{}, false
	}
	return model.Quote{Price: req.Price, Amount: req.Position.Amount}, true
}

// CapitalPool 共享资金池仓位（实盘风格）
// 每次开仓使用 min(PerTrade, 可用资金) × Factor，资金不足时放弃开仓；平仓时释放资金。
// 空头平仓：可用资金 += 开仓占用 + (开仓占用 - 平仓金额)。
// 资金以 decimal 记账，避免多次加减后的浮点漂移。
type CapitalPool struct {
	mu sync.Mutex
	// cash 可用资金
	cash decimal.Decimal
	// perTrade 单笔上限，0 表示不限
	perTrade decimal.Decimal
	// factor 资金使用比例
	factor decimal.Decimal
}

// NewCapitalPool 创建资金池
// 参数 capital: 初始资金
// 参数 perTrade: 单笔上限，<=0 表示不限
// 参数 factor: 资金使用比例，<=0 使用默认值
func NewCapitalPool(capital, perTrade, factor float64) *CapitalPool {
	if factor <= 0 {
		factor = DefaultFactor
	}
	if perTrade < 0 {
		perTrade = 0
	}
	return &CapitalPool{
		cash:     decimal.NewFromFloat(capital),
		perTrade: decimal.NewFromFloat(perTrade),
		factor:   decimal.NewFromFloat(factor),
	}
}

// Cash 当前可用资金
func (p *CapitalPool) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash.InexactFloat64()
}

// OpenLong 实现 SizingPolicy
func (p *CapitalPool) OpenLong(req SizingRequest) (model.Quote, bool) {
	return p.reserve(req)
}

// OpenShort 实现 SizingPolicy
func (p *CapitalPool) OpenShort(req SizingRequest) (model.Quote, bool) {
	return p.reserve(req)
}

// CloseLong 实现 SizingPolicy
func (p *CapitalPool) CloseLong(req SizingRequest) (model.Quote, bool) {
	q, ok := closeAll(req)
	if !ok {
		return q, false
	}
	p.mu.Lock()
	p.cash = p.cash.Add(decimal.NewFromFloat(q.Price).Mul(decimal.NewFromFloat(q.Amount)))
	p.mu.Unlock()
	return q, true
}

// CloseShort 实现 SizingPolicy
func (p *CapitalPool) CloseShort(req SizingRequest) (model.Quote, bool) {
	q, ok := closeAll(req)
	if !ok {
		return q, false
	}
	held := decimal.NewFromFloat(req.Position.Balance)
	sell := decimal.NewFromFloat(q.Price).Mul(decimal.NewFromFloat(q.Amount))
	p.mu.Lock()
	p.cash = p.cash.Add(held).Add(held.Sub(sell))
	p.mu.Unlock()
	return q, true
}

func (p *CapitalPool) reserve(req SizingRequest) (model.Quote, bool) {
	if req.Price <= 0 {
		return model.Quote{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	use := p.cash
	if p.perTrade.IsPositive() && p.perTrade.LessThan(use) {
		use = p.perTrade
	}
	if !use.IsPositive() {
		return model.Quote{}, false
	}
	price := decimal.NewFromFloat(req.Price)
	amount := use.Div(price).Mul(p.factor).Round(round.AmountPlaces)
	if !amount.IsPositive() {
		return model.Quote{}, false
	}
	p.cash = p.cash.Sub(price.Mul(amount))
	return model.Quote{Price: req.Price, Amount: amount.InexactFloat64()}, true
}
