// Package runner 把行情来源、快照组装与交易者串联起来。
// 单个 Runner 顺序驱动一个交易者；RunAll 并发运行多个相互独立的交易者，结束后合并类别统计。
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trade-simulator/internal/feed"
	"trade-simulator/internal/stats/category"
	"trade-simulator/internal/trader"
)

// StepHook 每一步执行完成后的回调（指标统计等）
type StepHook func(traderName, instrument string, elapsed time.Duration)

// Result 单个交易者的运行结果
type Result struct {
	// Name 交易者名称
	Name string
	// Bars 收到的 K 线数
	Bars int64
	// Steps 驱动交易者的步数（驱动周期 K 线数）
	Steps int64
	// Liquidated 运行结束时强制平仓的持仓数
	Liquidated int
}

// Runner 单个交易者的驱动器（单写者）
type Runner struct {
	trader  *trader.Trader
	builder *feed.Builder
	// instruments 交易者负责的标的，nil 表示不限
	instruments map[string]struct{}
	hook        StepHook
	logger      *zap.Logger
}

// New 创建驱动器
// 参数 t: 交易者
// 参数 b: 快照组装器（不可与其他 Runner 共享）
// 参数 instruments: 交易者负责的标的，为空表示不限
// 参数 logger: 日志记录器
func New(t *trader.Trader, b *feed.Builder, instruments []string, logger *zap.Logger) *Runner {
	r := &Runner{
		trader:  t,
		builder: b,
		logger:  logger.Named("runner").With(zap.String("trader", t.Name())),
	}
	if len(instruments) > 0 {
		r.instruments = make(map[string]struct{}, len(instruments))
		for _, inst := range instruments {
			r.instruments[inst] = struct{}{}
		}
	}
	return r
}

// SetHook 设置每步回调
func (r *Runner) SetHook(h StepHook) { r.hook = h }

// Trader 被驱动的交易者
func (r *Runner) Trader() *trader.Trader { return r.trader }

// Run 从来源读取 K 线直到耗尽，然后强制平仓
// ctx 取消时不做清仓，直接返回 ctx.Err()
func (r *Runner) Run(ctx context.Context, src feed.Source) (Result, error) {
	res := Result{Name: r.trader.Name()}
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("读取行情失败: %w", err)
		}
		if r.instruments != nil {
			if _, ok := r.instruments[ev.Instrument]; !ok {
				continue
			}
		}
		res.Bars++

		snap, ok := r.builder.Add(ev)
		if !ok {
			continue
		}

		start := time.Now()
		if err := r.trader.Run(ev.Instrument, snap); err != nil {
			return res, fmt.Errorf("交易者 %s 处理 %s 失败: %w", r.trader.Name(), ev.Instrument, err)
		}
		res.Steps++
		if r.hook != nil {
			r.hook(r.trader.Name(), ev.Instrument, time.Since(start))
		}
	}

	res.Liquidated = r.trader.End()
	r.logger.Info("回测完成",
		zap.Int64("bars", res.Bars),
		zap.Int64("steps", res.Steps),
		zap.Int("liquidated", res.Liquidated))
	return res, nil
}

// Job 一个并发运行单元
type Job struct {
	// Runner 驱动器
	Runner *Runner
	// Source 行情来源（由该 Job 独占）
	Source feed.Source
}

// Summary 并发运行的汇总结果
type Summary struct {
	// Results 与 jobs 顺序一致的运行结果
	Results []Result
	// Traders 与 jobs 顺序一致的交易者
	Traders []*trader.Trader
	// Stats 合并后的类别统计
	Stats *category.Aggregator
}

// RunAll 并发运行多个交易者
// 任一交易者失败时取消其余运行并返回第一个错误；来源在结束后关闭。
func RunAll(ctx context.Context, jobs []Job) (Summary, error) {
	results := make([]Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			defer job.Source.Close()
			res, err := job.Runner.Run(gctx, job.Source)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{Results: results}, err
	}

	traders := make([]*trader.Trader, len(jobs))
	for i, job := range jobs {
		traders[i] = job.Runner.Trader()
	}
	return Summary{
		Results: results,
		Traders: traders,
		Stats:   trader.MergeStats(traders),
	}, nil
}
