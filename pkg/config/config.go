package config

import (
	"errors"
	"strings"
	"time"

	"blofin-rsi-sentry/pkg/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load 加载配置：.env → 默认值 → 配置文件 → 环境变量
func Load() (*types.Config, error) {
	// .env 不存在时直接使用进程环境变量
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// 设置默认值
	setDefaults(v)

	// 读取环境变量，EXCHANGE_API_KEY 对应 exchange.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// 优先尝试读取本地配置文件
	v.SetConfigName("config.local")
	if err := v.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*types.Config, error) {
	var config types.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindLegacyEnv 兼容旧脚本使用的环境变量名
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("exchange.api_key", "EXCHANGE_API_KEY", "BLOFIN_API_KEY")
	_ = v.BindEnv("exchange.api_secret", "EXCHANGE_API_SECRET", "BLOFIN_API_SECRET")
	_ = v.BindEnv("exchange.passphrase", "EXCHANGE_PASSPHRASE", "BLOFIN_API_PASSPHRASE")
	_ = v.BindEnv("trading.leverage", "TRADING_LEVERAGE", "LEVERAGE")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "logs")
	v.SetDefault("log.max_size", 200)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.compress", false)

	v.SetDefault("exchange.base_url", "https://openapi.blofin.com")
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.passphrase", "")
	v.SetDefault("exchange.kline_path", "/api/v1/market/candles")
	v.SetDefault("exchange.balance_path", "/api/v1/account/balance")
	v.SetDefault("exchange.order_path", "/api/v1/trade/order")
	v.SetDefault("exchange.sign_market_data", false)
	v.SetDefault("exchange.requests_per_second", 5)
	v.SetDefault("exchange.balance_retries", 3)

	v.SetDefault("trading.symbol", "BTC-USDT")
	v.SetDefault("trading.interval", "1H")
	v.SetDefault("trading.candle_limit", 100)
	v.SetDefault("trading.leverage", 10)
	v.SetDefault("trading.risk_fraction", 0.10)
	v.SetDefault("trading.margin_mode", "cross")
	v.SetDefault("trading.balance_currency", "USDT")
	v.SetDefault("trading.price_precision", 2)
	v.SetDefault("trading.size_precision", 4)
	v.SetDefault("trading.dry_run", false)

	v.SetDefault("strategy.rsi_period", 14)
	v.SetDefault("strategy.oversold", 30.0)
	v.SetDefault("strategy.overbought", 70.0)
	v.SetDefault("strategy.require_divergence", true)
	v.SetDefault("strategy.divergence_window", 5)
	v.SetDefault("strategy.fib_window", 20)
	v.SetDefault("strategy.stop_loss_pct", 0.01)
	v.SetDefault("strategy.take_profit_pct", 0.04)

	v.SetDefault("fetch.interval", time.Minute)
	v.SetDefault("fetch.signal_cooldown", time.Hour)
	v.SetDefault("fetch.stats_every", 30)

	v.SetDefault("network.proxy", "")
	v.SetDefault("network.timeout", 30*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("dingtalk.webhook_url", "")
	v.SetDefault("dingtalk.secret", "")
	v.SetDefault("pushplus.user_token", "")
	v.SetDefault("pushplus.to", "")

	v.SetDefault("database.mysql.host", "")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.max_idle_conns", 2)
	v.SetDefault("database.mysql.max_open_conns", 5)
}
