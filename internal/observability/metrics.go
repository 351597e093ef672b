// Package observability 提供回测运行的 Prometheus 指标。
// 指标注册在独立的 Registry 上，便于测试与多实例共存。
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/core/paper"
)

// DefaultNamespace 默认指标命名空间
const DefaultNamespace = "trade_simulator"

// Metrics 回测指标
type Metrics struct {
	registry *prometheus.Registry

	// StepsTotal 交易者运行步数
	StepsTotal *prometheus.CounterVec
	// StepDuration 单步耗时
	StepDuration *prometheus.HistogramVec
	// FillsTotal 成交笔数
	FillsTotal *prometheus.CounterVec
	// ClosesTotal 平仓笔数（按结果）
	ClosesTotal *prometheus.CounterVec
	// ProfitTotal 累计盈亏
	ProfitTotal *prometheus.GaugeVec
	// OpenPositions 当前持仓数
	OpenPositions *prometheus.GaugeVec
	// FeedReconnects 行情重连次数
	FeedReconnects prometheus.Gauge
	// LastRunTimestamp 最近一次回测完成时间
	LastRunTimestamp prometheus.Gauge
}

// NewMetrics 创建指标并注册到新的 Registry
// 参数 namespace: 指标命名空间，为空使用 DefaultNamespace
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "steps_total",
			Help:      "Total number of trader steps",
		}, []string{"trader"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "step_duration_seconds",
			Help:      "Trader step duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"trader"}),
		FillsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "fills_total",
			Help:      "Total number of simulated fills by category and action",
		}, []string{"trader", "category", "action"}),
		ClosesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "closes_total",
			Help:      "Total number of closed positions by category and result",
		}, []string{"trader", "category", "result"}),
		ProfitTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "profit_total",
			Help:      "Realized profit by category",
		}, []string{"trader", "category"}),
		OpenPositions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "open_positions",
			Help:      "Number of open positions",
		}, []string{"trader"}),
		FeedReconnects: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects",
			Help:      "WebSocket feed reconnect count",
		}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last finished run",
		}),
	}
}

// Registry 指标所在的 Registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStep 记录一步运行，签名与 runner.StepHook 一致
func (m *Metrics) ObserveStep(traderName, _ string, elapsed time.Duration) {
	m.StepsTotal.WithLabelValues(traderName).Inc()
	m.StepDuration.WithLabelValues(traderName).Observe(elapsed.Seconds())
}

// MarkRunFinished 记录回测完成时间
func (m *Metrics) MarkRunFinished(at time.Time) {
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// Observer 返回绑定交易者名称的成交观察者
func (m *Metrics) Observer(traderName string) paper.Observer {
	return &traderObserver{m: m, name: traderName}
}

type traderObserver struct {
	m    *Metrics
	name string
}

func (o *traderObserver) OnFill(rec model.OrderRecord) {
	o.m.FillsTotal.WithLabelValues(o.name, string(rec.Category), string(rec.Action)).Inc()
	if rec.Action == model.ActionOpen {
		o.m.OpenPositions.WithLabelValues(o.name).Inc()
	} else {
		o.m.OpenPositions.WithLabelValues(o.name).Dec()
	}
}

func (o *traderObserver) OnClose(pos *model.Position, profit float64) {
	result := "loss"
	if profit > 0 {
		result = "win"
	}
	o.m.ClosesTotal.WithLabelValues(o.name, string(pos.Category), result).Inc()
	o.m.ProfitTotal.WithLabelValues(o.name, string(pos.Category)).Add(profit)
}

// Handler 返回指标 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve 在 addr 上提供 /metrics，ctx 取消后优雅关闭
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("指标服务已启动", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	}
}
