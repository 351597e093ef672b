// Package config 负责加载和验证 YAML 配置文件。
// 提供回测所需的全部配置项：交易者与市场规则、仓位计算、行情来源、信号、输出、存储与报表。
// 部署相关的少量字段可以通过 TRADER_ 前缀的环境变量覆盖。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"trade-simulator/internal/audit"
	"trade-simulator/internal/core/model"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "TRADER"

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Traders 交易者列表，每个交易者独立运行后合并统计
	Traders []TraderConfig `yaml:"traders"`
	// Sizing 仓位计算配置
	Sizing SizingConfig `yaml:"sizing"`
	// Feed 行情来源配置
	Feed FeedConfig `yaml:"feed"`
	// Signals 外部信号配置
	Signals SignalsConfig `yaml:"signals"`
	// Output 导出配置
	Output OutputConfig `yaml:"output"`
	// Store 交易者状态存储配置
	Store StoreConfig `yaml:"store"`
	// Report 报表配置
	Report ReportConfig `yaml:"report"`
	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// TraderConfig 交易者配置
type TraderConfig struct {
	// Name 交易者名称（同一次运行内唯一）
	Name string `yaml:"name"`
	// StockMode 股票模式：当日开仓当日不可平仓
	StockMode bool `yaml:"stock_mode"`
	// FuturesMode 期货模式：允许卖点做空
	FuturesMode bool `yaml:"futures_mode"`
	// Categories 允许交易的买卖点类别，为空表示不限
	Categories []string `yaml:"categories"`
	// Audit 审计快照模式: off, shared, deep
	Audit string `yaml:"audit"`
	// Instruments 该交易者负责的标的，为空表示使用 feed.instruments
	Instruments []string `yaml:"instruments"`
}

// SizingConfig 仓位计算配置
type SizingConfig struct {
	// Policy 仓位策略: fixed（固定名义金额）或 pool（共享资金池）
	Policy string `yaml:"policy"`
	// Capital fixed 为单笔名义资金；pool 为初始资金
	Capital float64 `yaml:"capital"`
	// PerTrade pool 模式下单笔上限，0 表示不限
	PerTrade float64 `yaml:"per_trade"`
	// Factor 资金使用比例（0-1]
	Factor float64 `yaml:"factor"`
}

// FeedConfig 行情来源配置
type FeedConfig struct {
	// Kind 来源类型: file（JSONL 回放）、http（REST K 线回补）、ws（实时 K 线）
	Kind string `yaml:"kind"`
	// Path file 模式的 JSONL 路径
	Path string `yaml:"path"`
	// URL http/ws 模式的服务地址
	URL string `yaml:"url"`
	// Instruments 标的列表
	Instruments []string `yaml:"instruments"`
	// Timeframes 周期列表，从粗到细，最后一个为驱动周期
	Timeframes []string `yaml:"timeframes"`
	// MaxBars 每个周期保留的最大 K 线数
	MaxBars int `yaml:"max_bars"`
	// Limit http 模式单次请求的 K 线数量
	Limit int `yaml:"limit"`
	// TimeoutMs http 请求超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// PingIntervalMs ws 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// ReadTimeoutMs ws 读取超时（毫秒）
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
}

// SignalsConfig 外部信号配置
type SignalsConfig struct {
	// Path 信号 JSONL 路径
	Path string `yaml:"path"`
	// StopLoss 是否按止损价自动平仓
	StopLoss bool `yaml:"stop_loss"`
}

// OutputConfig 导出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// OrdersEnabled 是否导出成交流水
	OrdersEnabled bool `yaml:"orders_enabled"`
	// PositionsEnabled 是否导出平仓记录
	PositionsEnabled bool `yaml:"positions_enabled"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
}

// StoreConfig 交易者状态存储配置
type StoreConfig struct {
	// Driver 存储驱动: memory 或 postgres
	Driver string `yaml:"driver"`
	// DSN postgres 连接串
	DSN string `yaml:"dsn"`
	// Key 策略结果键，为空时运行时生成
	Key string `yaml:"key"`
	// TimeoutMs 单次存取超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
}

// ReportConfig 报表配置
type ReportConfig struct {
	// Format 输出格式: text, markdown, csv, html
	Format string `yaml:"format"`
	// Categories 报表包含的买卖点类别，为空表示全部
	Categories []string `yaml:"categories"`
	// EVWindow 滚动期望的窗口样本数
	EVWindow int `yaml:"ev_window"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Addr Prometheus 指标监听地址，为空表示不启动
	Addr string `yaml:"addr"`
}

// envOverrides 环境变量覆盖项
type envOverrides struct {
	LogLevel    string `envconfig:"LOG_LEVEL"`
	StoreDriver string `envconfig:"STORE_DRIVER"`
	StoreDSN    string `envconfig:"STORE_DSN"`
	StoreKey    string `envconfig:"STORE_KEY"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，应用环境变量覆盖、默认值并验证
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// applyEnv 应用环境变量覆盖，未设置的变量不影响 YAML 中的值
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("读取环境变量失败: %w", err)
	}
	if env.LogLevel != "" {
		c.App.LogLevel = env.LogLevel
	}
	if env.StoreDriver != "" {
		c.Store.Driver = env.StoreDriver
	}
	if env.StoreDSN != "" {
		c.Store.DSN = env.StoreDSN
	}
	if env.StoreKey != "" {
		c.Store.Key = env.StoreKey
	}
	if env.MetricsAddr != "" {
		c.Metrics.Addr = env.MetricsAddr
	}
	return nil
}

// setDefaults 设置配置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "trade-simulator"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	// 未配置交易者时使用一个默认股票交易者
	if len(c.Traders) == 0 {
		c.Traders = []TraderConfig{{Name: "default", StockMode: true}}
	}
	for i := range c.Traders {
		if c.Traders[i].Name == "" {
			c.Traders[i].Name = fmt.Sprintf("trader-%d", i+1)
		}
		if c.Traders[i].Audit == "" {
			c.Traders[i].Audit = string(audit.ModeOff)
		}
	}

	// 仓位默认值：单笔 100000，使用 99%
	if c.Sizing.Policy == "" {
		c.Sizing.Policy = "fixed"
	}
	if c.Sizing.Capital == 0 {
		c.Sizing.Capital = 100000
	}
	if c.Sizing.Factor == 0 {
		c.Sizing.Factor = 0.99
	}

	if c.Feed.Kind == "" {
		c.Feed.Kind = "file"
	}
	if c.Feed.MaxBars == 0 {
		c.Feed.MaxBars = 1000
	}
	if c.Feed.Limit == 0 {
		c.Feed.Limit = 500
	}
	if c.Feed.TimeoutMs == 0 {
		c.Feed.TimeoutMs = 10000 // 10 秒
	}
	if c.Feed.PingIntervalMs == 0 {
		c.Feed.PingIntervalMs = 15000 // 15 秒
	}
	if c.Feed.ReadTimeoutMs == 0 {
		c.Feed.ReadTimeoutMs = 30000 // 30 秒
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.TimeoutMs == 0 {
		c.Store.TimeoutMs = 5000
	}

	if c.Report.Format == "" {
		c.Report.Format = "text"
	}
	if c.Report.EVWindow == 0 {
		c.Report.EVWindow = 200
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 交易者
	names := make(map[string]bool, len(c.Traders))
	for i, t := range c.Traders {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("traders[%d].name: 交易者名称不能为空", i))
		} else if names[t.Name] {
			errs = append(errs, fmt.Sprintf("traders[%d].name: 交易者名称重复 '%s'", i, t.Name))
		}
		names[t.Name] = true
		for j, cat := range t.Categories {
			if _, err := model.ParseCategory(cat); err != nil {
				errs = append(errs, fmt.Sprintf("traders[%d].categories[%d]: %v", i, j, err))
			}
		}
		if _, err := audit.New(audit.Mode(t.Audit)); err != nil {
			errs = append(errs, fmt.Sprintf("traders[%d].audit: %v", i, err))
		}
	}

	// 仓位计算
	switch c.Sizing.Policy {
	case "fixed", "pool":
	default:
		errs = append(errs, fmt.Sprintf("sizing.policy: 无效的仓位策略 '%s'，有效值: fixed, pool", c.Sizing.Policy))
	}
	if c.Sizing.Capital <= 0 {
		errs = append(errs, "sizing.capital: 资金必须为正数")
	}
	if c.Sizing.PerTrade < 0 {
		errs = append(errs, "sizing.per_trade: 单笔上限不能为负数")
	}
	if c.Sizing.Factor <= 0 || c.Sizing.Factor > 1 {
		errs = append(errs, fmt.Sprintf("sizing.factor: 资金使用比例必须在 (0, 1] 之间，当前值: %f", c.Sizing.Factor))
	}

	// 行情来源
	switch c.Feed.Kind {
	case "file":
		if c.Feed.Path == "" {
			errs = append(errs, "feed.path: file 模式需要 K 线文件路径")
		}
	case "http", "ws":
		if c.Feed.URL == "" {
			errs = append(errs, fmt.Sprintf("feed.url: %s 模式需要服务地址", c.Feed.Kind))
		}
		if len(c.AllInstruments()) == 0 {
			errs = append(errs, fmt.Sprintf("feed.instruments: %s 模式至少需要一个标的", c.Feed.Kind))
		}
	default:
		errs = append(errs, fmt.Sprintf("feed.kind: 无效的行情来源 '%s'，有效值: file, http, ws", c.Feed.Kind))
	}
	if len(c.Feed.Timeframes) == 0 {
		errs = append(errs, "feed.timeframes: 至少需要一个周期")
	}
	seen := make(map[string]bool, len(c.Feed.Timeframes))
	for i, tf := range c.Feed.Timeframes {
		if tf == "" || seen[tf] {
			errs = append(errs, fmt.Sprintf("feed.timeframes[%d]: 周期为空或重复", i))
		}
		seen[tf] = true
	}
	if c.Feed.MaxBars <= 0 {
		errs = append(errs, "feed.max_bars: 最大 K 线数必须为正数")
	}

	// 信号
	if c.Signals.Path == "" {
		errs = append(errs, "signals.path: 信号文件路径不能为空")
	}

	// 存储
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn: postgres 驱动需要连接串")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver: 无效的存储驱动 '%s'，有效值: memory, postgres", c.Store.Driver))
	}

	// 报表
	switch c.Report.Format {
	case "text", "markdown", "csv", "html":
	default:
		errs = append(errs, fmt.Sprintf("report.format: 无效的报表格式 '%s'，有效值: text, markdown, csv, html", c.Report.Format))
	}
	if c.Report.EVWindow < 0 {
		errs = append(errs, "report.ev_window: 窗口样本数不能为负数")
	}
	for i, cat := range c.Report.Categories {
		if _, err := model.ParseCategory(cat); err != nil {
			errs = append(errs, fmt.Sprintf("report.categories[%d]: %v", i, err))
		}
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// AllInstruments 全部标的（feed.instruments 与各交易者 instruments 的并集，保持首次出现顺序）
func (c *Config) AllInstruments() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(list []string) {
		for _, s := range list {
			if s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	add(c.Feed.Instruments)
	for _, t := range c.Traders {
		add(t.Instruments)
	}
	return out
}

// ReportCategories 报表类别列表，为空返回 nil（表示全部）
func (c *Config) ReportCategories() []model.Category {
	return toCategories(c.Report.Categories)
}

// CategoryList 交易者允许的买卖点类别
func (t TraderConfig) CategoryList() []model.Category {
	return toCategories(t.Categories)
}

// InstrumentsOr 交易者负责的标的，未配置时返回 fallback
func (t TraderConfig) InstrumentsOr(fallback []string) []string {
	if len(t.Instruments) > 0 {
		return t.Instruments
	}
	return fallback
}

func toCategories(list []string) []model.Category {
	if len(list) == 0 {
		return nil
	}
	out := make([]model.Category, 0, len(list))
	for _, s := range list {
		if c, err := model.ParseCategory(s); err == nil {
			out = append(out, c)
		}
	}
	return out
}
