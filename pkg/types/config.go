package types

import (
	"errors"
	"fmt"
	"time"
)

// Config 主配置结构，启动时构建一次，运行期间只读
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Network  NetworkConfig  `mapstructure:"network"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DingTalk DingTalkConfig `mapstructure:"dingtalk"`
	PushPlus PushPlusConfig `mapstructure:"pushplus"`
	Database DatabaseConfig `mapstructure:"database"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出目录，为空则只输出到控制台
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// ExchangeConfig 交易所接入配置
type ExchangeConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	APISecret         string  `mapstructure:"api_secret"`
	Passphrase        string  `mapstructure:"passphrase"`
	KlinePath         string  `mapstructure:"kline_path"`
	BalancePath       string  `mapstructure:"balance_path"`
	OrderPath         string  `mapstructure:"order_path"`
	SignMarketData    bool    `mapstructure:"sign_market_data"`    // 行情接口是否需要签名
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // 本地限速
	BalanceRetries    uint64  `mapstructure:"balance_retries"`     // 余额查询最大重试次数
}

// TradingConfig 交易配置
type TradingConfig struct {
	Symbol          string  `mapstructure:"symbol"`           // 交易对，如 BTC-USDT
	Interval        string  `mapstructure:"interval"`         // K线周期，如 1H
	CandleLimit     int     `mapstructure:"candle_limit"`     // 每轮拉取的K线数量
	Leverage        int     `mapstructure:"leverage"`         // 杠杆倍数
	RiskFraction    float64 `mapstructure:"risk_fraction"`    // 单笔风险占比
	MarginMode      string  `mapstructure:"margin_mode"`      // 保证金模式，默认 cross
	BalanceCurrency string  `mapstructure:"balance_currency"` // 计价币种，默认 USDT
	PricePrecision  int32   `mapstructure:"price_precision"`  // 止盈止损价格小数位
	SizePrecision   int32   `mapstructure:"size_precision"`   // 下单数量小数位
	DryRun          bool    `mapstructure:"dry_run"`          // 只构建订单，不真实提交
}

// StrategyConfig RSI背离策略配置
type StrategyConfig struct {
	RSIPeriod         int     `mapstructure:"rsi_period"`         // RSI周期，默认14
	Oversold          float64 `mapstructure:"oversold"`           // 超卖阈值，默认30
	Overbought        float64 `mapstructure:"overbought"`         // 超买阈值，默认70
	RequireDivergence bool    `mapstructure:"require_divergence"` // 是否需要背离确认
	DivergenceWindow  int     `mapstructure:"divergence_window"`  // 背离检测窗口，默认5
	FibWindow         int     `mapstructure:"fib_window"`         // 斐波那契回撤窗口，默认20
	StopLossPct       float64 `mapstructure:"stop_loss_pct"`      // 止损比例，默认0.01
	TakeProfitPct     float64 `mapstructure:"take_profit_pct"`    // 止盈比例，默认0.04
}

// FetchConfig 调度配置
type FetchConfig struct {
	Interval       time.Duration `mapstructure:"interval"`        // 每轮间隔
	SignalCooldown time.Duration `mapstructure:"signal_cooldown"` // 同一信号去重时长
	StatsEvery     int           `mapstructure:"stats_every"`     // 每N轮输出一次统计
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}

// RedisConfig Redis配置
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DingTalkConfig 钉钉配置
type DingTalkConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Secret     string `mapstructure:"secret"`
}

// PushPlusConfig PushPlus配置
type PushPlusConfig struct {
	UserToken string `mapstructure:"user_token"`
	To        string `mapstructure:"to"` // 好友令牌，多人用逗号分隔
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL配置，Host为空时不记录快照
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// Validate 校验启动所需的关键配置
func (c *Config) Validate() error {
	var errs []error

	if c.Exchange.BaseURL == "" {
		errs = append(errs, errors.New("exchange.base_url 不能为空"))
	}
	if !c.Trading.DryRun && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		errs = append(errs, errors.New("缺少 API key/secret（或开启 trading.dry_run）"))
	}
	if c.Trading.Symbol == "" {
		errs = append(errs, errors.New("trading.symbol 不能为空"))
	}
	if c.Trading.Leverage <= 0 {
		errs = append(errs, fmt.Errorf("trading.leverage 必须大于0: %d", c.Trading.Leverage))
	}
	if c.Trading.RiskFraction <= 0 || c.Trading.RiskFraction > 1 {
		errs = append(errs, fmt.Errorf("trading.risk_fraction 必须在 (0,1] 之间: %v", c.Trading.RiskFraction))
	}
	if c.Strategy.RSIPeriod <= 0 {
		errs = append(errs, fmt.Errorf("strategy.rsi_period 必须大于0: %d", c.Strategy.RSIPeriod))
	}
	if c.Strategy.Oversold >= c.Strategy.Overbought {
		errs = append(errs, fmt.Errorf("strategy.oversold(%v) 必须小于 overbought(%v)", c.Strategy.Oversold, c.Strategy.Overbought))
	}
	if c.Strategy.StopLossPct <= 0 || c.Strategy.StopLossPct >= 1 {
		errs = append(errs, fmt.Errorf("strategy.stop_loss_pct 必须在 (0,1) 之间: %v", c.Strategy.StopLossPct))
	}
	if c.Strategy.TakeProfitPct <= 0 || c.Strategy.TakeProfitPct >= 1 {
		errs = append(errs, fmt.Errorf("strategy.take_profit_pct 必须在 (0,1) 之间: %v", c.Strategy.TakeProfitPct))
	}
	if c.Trading.CandleLimit < c.Strategy.RSIPeriod+1 {
		errs = append(errs, fmt.Errorf("trading.candle_limit(%d) 至少为 rsi_period+1", c.Trading.CandleLimit))
	}

	return errors.Join(errs...)
}
