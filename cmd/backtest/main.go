// Package main 是买卖点模拟交易回测的入口点。
// 读取 K 线与外部买卖点信号，驱动一个或多个模拟交易者，输出按买卖点类别的统计报表。
//
// 重要：本系统只做模拟成交，不连接任何交易账户。
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "backtest"
	app.Usage = "买卖点模拟交易与统计"
	app.Version = Version

	app.Commands = []cli.Command{
		runCMD,
		reportCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configFlag = cli.StringFlag{
	Name:  "config, c",
	Value: "config.yaml",
	Usage: "配置文件路径",
}

var (
	runCMD = cli.Command{
		Name:      "run",
		Usage:     "运行模拟交易并输出报表",
		Action:    runAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{Name: "key", Usage: "策略结果键，覆盖 store.key"},
			cli.StringFlag{Name: "format", Usage: "报表格式，覆盖 report.format"},
		},
		Description: `按配置回放 K 线与信号，结束后清仓、打印统计、导出 JSONL 并保存交易者状态`,
	}
	reportCMD = cli.Command{
		Name:      "report",
		Usage:     "查看已保存的策略结果",
		Action:    reportAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{Name: "key", Usage: "策略结果键，默认 store.key"},
			cli.StringFlag{Name: "category", Usage: "列出该买卖点类别的平仓记录，如 1buy"},
			cli.StringFlag{Name: "format", Usage: "报表格式，覆盖 report.format"},
			cli.BoolFlag{Name: "list", Usage: "列出已保存的策略结果键"},
		},
		Description: `从存储加载交易者状态，合并统计后输出报表`,
	}
)

// newLogger 创建 zap 日志记录器
// 参数 level: 日志级别，无效时使用 info
func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// signalContext 捕获 SIGINT/SIGTERM，触发优雅退出
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("收到退出信号，开始优雅关闭")
			cancel()
		case <-ctx.Done():
		}
		ossignal.Stop(sigCh)
	}()
	return ctx, cancel
}
