package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"trade-simulator/internal/core/model"
	"trade-simulator/internal/util/fastparse"
	"trade-simulator/internal/util/timeutil"
)

const (
	// klinesPath REST K 线接口路径（Binance 兼容）
	klinesPath = "/api/v3/klines"

	defaultRetryCount      = 3
	defaultRetryWaitTime   = 500 * time.Millisecond
	defaultRetryMaxBackoff = 5 * time.Second
)

// HTTPConfig REST 回补配置
type HTTPConfig struct {
	// BaseURL 服务地址，如 https://api.binance.com
	BaseURL string
	// Instruments 标的列表
	Instruments []string
	// Timeframes 周期列表（从粗到细）
	Timeframes []string
	// Limit 每个 (标的, 周期) 请求的 K 线数量
	Limit int
	// TimeoutMs 单次请求超时（毫秒）
	TimeoutMs int
}

// HTTPSource REST K 线回补来源
// 首次调用 Next 时拉取全部 (标的, 周期) 的历史 K 线，之后按收盘时间顺序回放。
// 只回放已收盘的 K 线，K 线时间取收盘时刻。
type HTTPSource struct {
	cfg    HTTPConfig
	http   *resty.Client
	logger *zap.Logger
	now    func() time.Time

	loaded *sliceSource
}

// isRetryable 网络错误、5xx、429、408 时重试
func isRetryable(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	return code == 429 || code == 408
}

// NewHTTPSource 创建 REST 回补来源
// 参数 cfg: 回补配置
// 参数 logger: 日志记录器
func NewHTTPSource(cfg HTTPConfig, logger *zap.Logger) *HTTPSource {
	if cfg.Limit <= 0 {
		cfg.Limit = 500
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryable)

	return &HTTPSource{
		cfg:    cfg,
		http:   client,
		logger: logger.Named("http-feed"),
		now:    time.Now,
	}
}

// Next 返回下一根 K 线
func (s *HTTPSource) Next(ctx context.Context) (BarEvent, error) {
	if s.loaded == nil {
		if err := s.load(ctx); err != nil {
			return BarEvent{}, err
		}
	}
	return s.loaded.Next(ctx)
}

// Close 丢弃尚未回放的 K 线
func (s *HTTPSource) Close() error {
	if s.loaded != nil {
		return s.loaded.Close()
	}
	s.loaded = &sliceSource{}
	return nil
}

func (s *HTTPSource) load(ctx context.Context) error {
	var events []BarEvent
	for _, inst := range s.cfg.Instruments {
		for _, tf := range s.cfg.Timeframes {
			bars, err := s.FetchKlines(ctx, inst, tf)
			if err != nil {
				return err
			}
			for _, bar := range bars {
				events = append(events, BarEvent{Instrument: inst, Timeframe: tf, Bar: bar})
			}
			s.logger.Debug("K 线回补完成",
				zap.String("instrument", inst),
				zap.String("timeframe", tf),
				zap.Int("bars", len(bars)))
		}
	}
	s.loaded = newSliceSource(events, s.cfg.Timeframes)
	s.logger.Info("REST K 线回补完成", zap.Int("events", len(events)))
	return nil
}

// FetchKlines 拉取单个 (标的, 周期) 的已收盘 K 线
// 参数 instrument: 标的代码，请求时转换为交易所 symbol
// 参数 timeframe: 周期标识
// 返回: 时间升序的 K 线
func (s *HTTPSource) FetchKlines(ctx context.Context, instrument, timeframe string) ([]model.Bar, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", NormalizeSymbol(instrument)).
		SetQueryParam("interval", Interval(timeframe)).
		SetQueryParam("limit", fmt.Sprintf("%d", s.cfg.Limit)).
		Get(klinesPath)
	if err != nil {
		return nil, fmt.Errorf("请求 %s %s K 线失败: %w", instrument, timeframe, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("请求 %s %s K 线失败: HTTP %d: %s", instrument, timeframe, resp.StatusCode(), string(resp.Body()))
	}

	var rows [][]any
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("解析 %s %s K 线失败: %w", instrument, timeframe, err)
	}

	nowMs := s.now().UnixMilli()
	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		bar, closeMs, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("解析 %s %s 第 %d 根 K 线失败: %w", instrument, timeframe, i, err)
		}
		// 未收盘
		if closeMs >= nowMs {
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKlineRow 解析 K 线数组
// 格式: [openTime, open, high, low, close, volume, closeTime, ...]
func parseKlineRow(row []any) (model.Bar, int64, error) {
	if len(row) < 7 {
		return model.Bar{}, 0, fmt.Errorf("字段数量不足: %d", len(row))
	}
	var vals [5]float64
	for i := range vals {
		v, err := fastparse.Number(row[i+1])
		if err != nil {
			return model.Bar{}, 0, err
		}
		vals[i] = v
	}
	closeMs, err := fastparse.Int(row[6])
	if err != nil {
		return model.Bar{}, 0, err
	}
	return model.Bar{
		Time:   timeutil.MsToTime(closeMs + 1),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, closeMs, nil
}
