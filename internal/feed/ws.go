package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trade-simulator/internal/util/backoff"
	"trade-simulator/internal/util/timeutil"
)

// WSConfig 实时 K 线配置
type WSConfig struct {
	// URL WebSocket 地址，如 wss://stream.binance.com:9443/ws
	URL string
	// Instruments 标的列表
	Instruments []string
	// Timeframes 周期列表
	Timeframes []string
	// PingIntervalMs 心跳间隔（毫秒），0 表示读取超时的一半
	PingIntervalMs int
	// ReadTimeoutMs 读取超时（毫秒），0 表示 30 秒
	ReadTimeoutMs int
	// BufferSize K 线事件通道容量
	BufferSize int
}

// WSSource 实时 K 线来源
// 只投递已收盘的 K 线；断线后按指数退避重连并重新订阅。
// 心跳机制: 协议层 ping/pong
type WSSource struct {
	cfg    WSConfig
	logger *zap.Logger
	parser *klineParser

	conn   *websocket.Conn
	connMu sync.Mutex

	barCh chan BarEvent
	done  chan struct{}

	backoff *backoff.Backoff

	lastMsgTime int64
	reconnects  int64
	parseErrors int64
	dropped     int64

	closed    int32
	closeOnce sync.Once
}

// NewWSSource 创建实时 K 线来源
// 参数 cfg: 连接配置
// 参数 logger: 日志记录器
func NewWSSource(cfg WSConfig, logger *zap.Logger) *WSSource {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	return &WSSource{
		cfg:     cfg,
		logger:  logger.Named("ws-feed"),
		parser:  newKlineParser(cfg.Instruments, cfg.Timeframes),
		barCh:   make(chan BarEvent, cfg.BufferSize),
		done:    make(chan struct{}),
		backoff: backoff.NewDefault(),
	}
}

// Start 建立连接、订阅并启动读取与心跳循环
// 参数 ctx: 上下文，取消后循环退出
func (s *WSSource) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.subscribe(); err != nil {
		s.closeConn()
		return err
	}
	go s.pingLoop(ctx)
	go s.readLoop(ctx)
	return nil
}

// Next 返回下一根已收盘 K 线
// 来源关闭后返回 io.EOF
func (s *WSSource) Next(ctx context.Context) (BarEvent, error) {
	select {
	case ev := <-s.barCh:
		return ev, nil
	default:
	}
	select {
	case ev := <-s.barCh:
		return ev, nil
	case <-ctx.Done():
		return BarEvent{}, ctx.Err()
	case <-s.done:
		return BarEvent{}, io.EOF
	}
}

func (s *WSSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "trade-simulator/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("连接 K 线 WebSocket 失败: %w", err)
	}

	readTimeout := s.readTimeout()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		atomic.StoreInt64(&s.lastMsgTime, timeutil.NowNano())
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s.conn = conn
	s.backoff.Reset()
	s.logger.Info("K 线 WebSocket 连接成功", zap.String("url", s.cfg.URL))
	return nil
}

// subscribe 订阅全部 (标的, 周期) 的 K 线流
func (s *WSSource) subscribe() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("WebSocket 未连接")
	}

	params := make([]string, 0, len(s.cfg.Instruments)*len(s.cfg.Timeframes))
	for _, inst := range s.cfg.Instruments {
		// 订阅参数要求小写 symbol
		sym := strings.ToLower(NormalizeSymbol(inst))
		for _, tf := range s.cfg.Timeframes {
			params = append(params, fmt.Sprintf("%s@kline_%s", sym, Interval(tf)))
		}
	}

	data, err := json.Marshal(SubscribeRequest{Method: "SUBSCRIBE", Params: params, ID: 1})
	if err != nil {
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	s.logger.Info("K 线订阅请求已发送", zap.Int("streams", len(params)))
	return nil
}

func (s *WSSource) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil || atomic.LoadInt32(&s.closed) == 1 {
			return
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if atomic.LoadInt32(&s.closed) == 1 {
				return
			}
			s.logger.Warn("读取 K 线消息失败", zap.Error(err))
			atomic.AddInt64(&s.reconnects, 1)
			s.closeConn()
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout()))
		atomic.StoreInt64(&s.lastMsgTime, timeutil.NowNano())

		ev, ok, err := s.parser.Parse(data)
		if err != nil {
			if atomic.AddInt64(&s.parseErrors, 1)%100 == 1 {
				s.logger.Warn("解析 K 线消息失败（采样）", zap.Error(err))
			}
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.barCh <- ev:
		default:
			atomic.AddInt64(&s.dropped, 1)
			s.logger.Warn("K 线通道已满，丢弃事件",
				zap.String("instrument", ev.Instrument),
				zap.String("timeframe", ev.Timeframe))
		}
	}
}

// reconnect 等待退避时间后重连并重新订阅
// 返回: ctx 取消或来源关闭时返回 false
func (s *WSSource) reconnect(ctx context.Context) bool {
	if err := s.backoff.Wait(ctx); err != nil {
		return false
	}
	if atomic.LoadInt32(&s.closed) == 1 {
		return false
	}
	s.logger.Info("K 线 WebSocket 准备重连", zap.Int("attempt", s.backoff.Attempt()))

	if err := s.connect(ctx); err != nil {
		s.logger.Error("K 线 WebSocket 重连失败", zap.Error(err))
		return true
	}
	if err := s.subscribe(); err != nil {
		s.logger.Error("K 线重新订阅失败", zap.Error(err))
		s.closeConn()
	}
	return true
}

func (s *WSSource) pingLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.PingIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = s.readTimeout() / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			if conn == nil {
				s.connMu.Unlock()
				continue
			}
			deadline := time.Now().Add(5 * time.Second)
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline)
			s.connMu.Unlock()
			if err != nil {
				s.logger.Warn("发送 ping 失败", zap.Error(err))
			}
		}
	}
}

func (s *WSSource) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *WSSource) readTimeout() time.Duration {
	if s.cfg.ReadTimeoutMs > 0 {
		return time.Duration(s.cfg.ReadTimeoutMs) * time.Millisecond
	}
	return 30 * time.Second
}

// Close 关闭来源，之后 Next 在取完缓冲后返回 io.EOF
func (s *WSSource) Close() error {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		close(s.done)
		s.closeConn()
		s.logger.Info("K 线 WebSocket 已关闭")
	})
	return nil
}

// Metrics 获取连接指标
func (s *WSSource) Metrics() ConnectionMetrics {
	m := ConnectionMetrics{
		ReconnectCount:  atomic.LoadInt64(&s.reconnects),
		ParseErrorCount: atomic.LoadInt64(&s.parseErrors),
		DroppedCount:    atomic.LoadInt64(&s.dropped),
	}
	if last := atomic.LoadInt64(&s.lastMsgTime); last > 0 {
		m.LastMessageAgeMs = (timeutil.NowNano() - last) / 1_000_000
	}
	return m
}
