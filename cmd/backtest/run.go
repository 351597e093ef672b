package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"trade-simulator/internal/audit"
	"trade-simulator/internal/config"
	"trade-simulator/internal/core/paper"
	"trade-simulator/internal/core/signal"
	"trade-simulator/internal/feed"
	"trade-simulator/internal/observability"
	"trade-simulator/internal/report"
	"trade-simulator/internal/runner"
	"trade-simulator/internal/trader"
)

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if key := c.String("key"); key != "" {
		cfg.Store.Key = key
	}
	format, err := report.ParseFormat(firstNonEmpty(c.String("format"), cfg.Report.Format))
	if err != nil {
		return err
	}

	logger := newLogger(cfg.App.LogLevel).With(zap.String("app", cfg.App.Name))
	defer logger.Sync()

	ctx, cancel := signalContext(logger)
	defer cancel()

	metrics := observability.NewMetrics("")
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger.Named("metrics")); err != nil {
				logger.Error("指标服务退出", zap.Error(err))
			}
		}()
	}

	exp, err := newExporter(cfg.Output, logger)
	if err != nil {
		return err
	}

	jobs, err := buildJobs(ctx, cfg, logger, metrics, exp)
	if err != nil {
		exp.Close()
		return err
	}

	start := time.Now()
	sum, err := runner.RunAll(ctx, jobs)
	if err != nil {
		exp.Close()
		return fmt.Errorf("运行失败: %w", err)
	}
	metrics.MarkRunFinished(time.Now())

	exp.WriteClosed(sum.Traders)
	exp.Close()

	for _, res := range sum.Results {
		logger.Info("交易者运行结束",
			zap.String("trader", res.Name),
			zap.Int64("bars", res.Bars),
			zap.Int64("steps", res.Steps),
			zap.Int("liquidated", res.Liquidated),
		)
	}

	key, err := saveResults(ctx, cfg, sum.Traders, logger)
	if err != nil {
		return err
	}

	logger.Info("回测完成",
		zap.String("key", key),
		zap.Int("traders", len(sum.Traders)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return report.Render(os.Stdout, format, report.Document{
		Title:      fmt.Sprintf("%s 回测报告 (%s)", cfg.App.Name, key),
		Stats:      sum.Stats.Report(cfg.ReportCategories()),
		Expectancy: expectancy(sum.Traders, cfg.Report.EVWindow, cfg.ReportCategories()),
	})
}

// buildJobs 为每个交易者创建独立的信号回放、快照组装器与行情来源
func buildJobs(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, exp *exporter) ([]runner.Job, error) {
	jobs := make([]runner.Job, 0, len(cfg.Traders))
	closeAll := func() {
		for _, j := range jobs {
			_ = j.Source.Close()
		}
	}

	for _, tc := range cfg.Traders {
		strategy, err := signal.Load(cfg.Signals.Path, cfg.Signals.StopLoss)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("加载交易者 %s 的信号失败: %w", tc.Name, err)
		}

		tlog := logger.Named("trader").With(zap.String("trader", tc.Name))
		t, err := trader.New(trader.Options{
			Name:               tc.Name,
			SameDayRestriction: tc.StockMode,
			ShortSelling:       tc.FuturesMode,
			Categories:         tc.CategoryList(),
			Audit:              audit.Mode(tc.Audit),
			Sizing:             newSizing(cfg.Sizing),
			Sink:               func(line string) { tlog.Info(line) },
			Observer:           paper.Observers{metrics.Observer(tc.Name), exp.Observer(tc.Name)},
		}, strategy)
		if err != nil {
			closeAll()
			return nil, err
		}

		builder, err := feed.NewBuilder(cfg.Feed.Timeframes, cfg.Feed.MaxBars)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("创建快照组装器失败: %w", err)
		}

		instruments := tc.InstrumentsOr(cfg.Feed.Instruments)
		if len(instruments) == 0 {
			instruments = strategy.Instruments()
		}
		src, err := newSource(ctx, cfg.Feed, instruments, logger, metrics)
		if err != nil {
			closeAll()
			return nil, err
		}

		r := runner.New(t, builder, tc.Instruments, logger)
		r.SetHook(metrics.ObserveStep)
		jobs = append(jobs, runner.Job{Runner: r, Source: src})
	}
	return jobs, nil
}

// saveResults 保存全部交易者状态，返回策略结果键
func saveResults(ctx context.Context, cfg *config.Config, traders []*trader.Trader, logger *zap.Logger) (string, error) {
	key := cfg.Store.Key
	if key == "" {
		key = uuid.NewString()
	}

	st, release, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return "", fmt.Errorf("打开存储失败: %w", err)
	}
	defer release()

	states := make([]trader.State, 0, len(traders))
	for _, t := range traders {
		states = append(states, t.State())
	}

	saveCtx, cancel := context.WithTimeout(ctx, storeTimeout(cfg.Store))
	defer cancel()
	if err := st.Save(saveCtx, key, states); err != nil {
		return "", fmt.Errorf("保存策略结果 %s 失败: %w", key, err)
	}
	if cfg.Store.Driver == "memory" {
		logger.Warn("使用内存存储，进程退出后结果不会保留", zap.String("key", key))
	}
	return key, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
