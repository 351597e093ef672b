package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"trade-simulator/internal/cache"
	"trade-simulator/internal/config"
	"trade-simulator/internal/core/model"
	"trade-simulator/internal/report"
	"trade-simulator/internal/stats/ev"
	"trade-simulator/internal/store"
	"trade-simulator/internal/trader"
)

func reportAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	format, err := report.ParseFormat(firstNonEmpty(c.String("format"), cfg.Report.Format))
	if err != nil {
		return err
	}

	logger := newLogger(cfg.App.LogLevel).With(zap.String("app", cfg.App.Name))
	defer logger.Sync()

	ctx, cancel := signalContext(logger)
	defer cancel()

	st, release, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("打开存储失败: %w", err)
	}
	defer release()

	if c.Bool("list") {
		return listKeys(ctx, cfg.Store, st)
	}

	key := firstNonEmpty(c.String("key"), cfg.Store.Key)
	if key == "" {
		return errors.New("需要 --key 或 store.key 指定策略结果")
	}

	var cat model.Category
	if s := c.String("category"); s != "" {
		if cat, err = model.ParseCategory(s); err != nil {
			return err
		}
	}

	results := cache.NewResults(cache.StoreLoader(st))
	loadCtx, loadCancel := context.WithTimeout(ctx, storeTimeout(cfg.Store))
	defer loadCancel()
	traders, err := results.Get(loadCtx, key)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("策略结果 %s 不存在", key)
	}
	if err != nil {
		return err
	}

	doc := report.Document{
		Title:      fmt.Sprintf("%s 回测报告 (%s)", cfg.App.Name, key),
		Stats:      trader.MergeStats(traders).Report(cfg.ReportCategories()),
		Expectancy: expectancy(traders, cfg.Report.EVWindow, cfg.ReportCategories()),
	}
	if cat != "" {
		doc.Closed = trader.ClosedPositions(traders, cat)
	}

	logger.Info("已加载策略结果", zap.String("key", key), zap.Int("traders", len(traders)))
	return report.Render(os.Stdout, format, doc)
}

// expectancy 由平仓记录计算滚动期望，run 与 report 共用
// 平仓记录按平仓时间、交易者名称排序后依次进入窗口，结果不依赖交易者的完成顺序。
func expectancy(traders []*trader.Trader, window int, cats []model.Category) []ev.Row {
	tracker := ev.NewTracker(window)
	tracker.AddAll(trader.ClosedInCloseOrder(traders))
	return tracker.Report(cats)
}

func listKeys(ctx context.Context, cfg config.StoreConfig, st store.TraderStore) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout(cfg))
	defer cancel()
	keys, err := st.Keys(ctx)
	if err != nil {
		return fmt.Errorf("读取策略结果键失败: %w", err)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}
