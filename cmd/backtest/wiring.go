package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"trade-simulator/internal/config"
	"trade-simulator/internal/core/model"
	"trade-simulator/internal/core/paper"
	"trade-simulator/internal/feed"
	"trade-simulator/internal/observability"
	"trade-simulator/internal/output/jsonl"
	"trade-simulator/internal/store"
	"trade-simulator/internal/store/memory"
	"trade-simulator/internal/store/postgres"
	"trade-simulator/internal/trader"
)

// newSizing 按配置创建仓位策略，资金池有状态，每个交易者一份
func newSizing(cfg config.SizingConfig) paper.SizingPolicy {
	if cfg.Policy == "pool" {
		return paper.NewCapitalPool(cfg.Capital, cfg.PerTrade, cfg.Factor)
	}
	return paper.NewFixedNotional(cfg.Capital, cfg.Factor)
}

// newSource 按配置创建行情来源
// 参数 instruments: 交易者负责的标的（http/ws 模式按此订阅）
func newSource(ctx context.Context, cfg config.FeedConfig, instruments []string, logger *zap.Logger, metrics *observability.Metrics) (feed.Source, error) {
	switch cfg.Kind {
	case "http":
		return feed.NewHTTPSource(feed.HTTPConfig{
			BaseURL:     cfg.URL,
			Instruments: instruments,
			Timeframes:  cfg.Timeframes,
			Limit:       cfg.Limit,
			TimeoutMs:   cfg.TimeoutMs,
		}, logger), nil
	case "ws":
		src := feed.NewWSSource(feed.WSConfig{
			URL:            cfg.URL,
			Instruments:    instruments,
			Timeframes:     cfg.Timeframes,
			PingIntervalMs: cfg.PingIntervalMs,
			ReadTimeoutMs:  cfg.ReadTimeoutMs,
		}, logger)
		if err := src.Start(ctx); err != nil {
			return nil, fmt.Errorf("启动实时行情失败: %w", err)
		}
		go watchFeed(ctx, src, metrics)
		return src, nil
	default:
		src, err := feed.NewFileSource(cfg.Path, cfg.Timeframes)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

// watchFeed 周期性同步实时行情的重连次数到指标
func watchFeed(ctx context.Context, src *feed.WSSource, metrics *observability.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.FeedReconnects.Set(float64(src.Metrics().ReconnectCount))
		}
	}
}

// openStore 按配置打开交易者状态存储
// 返回: 存储与释放函数
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.TraderStore, func(), error) {
	if cfg.Driver != "postgres" {
		return memory.NewTraderStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("postgres 存储已就绪")
	return postgres.NewTraderStore(pool), pool.Close, nil
}

// storeTimeout 单次存取超时
func storeTimeout(cfg config.StoreConfig) time.Duration {
	return time.Duration(cfg.TimeoutMs) * time.Millisecond
}

// fillRecord 导出的成交流水行
type fillRecord struct {
	// Trader 交易者名称
	Trader string `json:"trader"`
	model.OrderRecord
}

// closedRecord 导出的平仓记录行
type closedRecord struct {
	// Trader 交易者名称
	Trader string `json:"trader"`
	*model.Position
}

// exporter JSONL 导出：成交流水在成交时写入，平仓记录在运行结束后写入
type exporter struct {
	orders    *jsonl.Writer
	positions *jsonl.Writer
	logger    *zap.Logger
}

func newExporter(cfg config.OutputConfig, logger *zap.Logger) (*exporter, error) {
	e := &exporter{logger: logger.Named("export")}
	var err error
	if cfg.OrdersEnabled {
		e.orders, err = jsonl.NewWriter(filepath.Join(cfg.Dir, "orders.jsonl"), cfg.BufferSize, jsonl.Truncate)
		if err != nil {
			return nil, fmt.Errorf("创建 orders writer 失败: %w", err)
		}
	}
	if cfg.PositionsEnabled {
		e.positions, err = jsonl.NewWriter(filepath.Join(cfg.Dir, "positions.jsonl"), cfg.BufferSize, jsonl.Truncate)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("创建 positions writer 失败: %w", err)
		}
	}
	return e, nil
}

// Observer 绑定交易者名称的成交观察者，未开启成交导出时返回 nil
func (e *exporter) Observer(traderName string) paper.Observer {
	if e.orders == nil {
		return nil
	}
	return &fillExporter{e: e, name: traderName}
}

type fillExporter struct {
	e    *exporter
	name string
}

func (f *fillExporter) OnFill(rec model.OrderRecord) {
	if err := f.e.orders.Write(fillRecord{Trader: f.name, OrderRecord: rec}); err != nil {
		f.e.logger.Warn("写入成交流水失败", zap.Error(err))
	}
}

func (f *fillExporter) OnClose(*model.Position, float64) {}

// WriteClosed 写入全部交易者的平仓记录（按类别顺序）
func (e *exporter) WriteClosed(traders []*trader.Trader) {
	if e.positions == nil {
		return
	}
	for _, t := range traders {
		for _, cat := range model.AllCategories() {
			for _, pos := range t.ClosedPositions(cat) {
				if err := e.positions.Write(closedRecord{Trader: t.Name(), Position: pos}); err != nil {
					e.logger.Warn("写入平仓记录失败", zap.Error(err))
				}
			}
		}
	}
}

// Close 刷新并关闭全部写入器
func (e *exporter) Close() {
	for _, w := range []*jsonl.Writer{e.orders, e.positions} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			e.logger.Warn("关闭导出文件失败", zap.String("path", w.Path()), zap.Error(err))
			continue
		}
		e.logger.Info("导出完成",
			zap.String("path", w.Path()),
			zap.Int64("written", w.Written()),
			zap.Int64("dropped", w.Dropped()),
		)
	}
}
