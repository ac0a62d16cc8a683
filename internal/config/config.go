package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cron       CronConfig       `mapstructure:"cron"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Connectors ConnectorsConfig `mapstructure:"connectors"`
	PriceFeed  PriceFeedConfig  `mapstructure:"price_feed"`
	Alert      AlertConfig      `mapstructure:"alert"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Swagger         bool          `mapstructure:"swagger"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is postgres or sqlite.
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig backs the bot and task leases. An empty Addr selects the in-process locker.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CronConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	LeaseTTL time.Duration     `mapstructure:"lease_ttl"`
	Tasks    map[string]string `mapstructure:"tasks"`
}

type ExecutorConfig struct {
	LeaseTTL       time.Duration `mapstructure:"lease_ttl"`
	LeaseWait      time.Duration `mapstructure:"lease_wait"`
	ReconcileGrace time.Duration `mapstructure:"reconcile_grace"`
	PendingLimit   int           `mapstructure:"pending_limit"`
	CandleBars     int           `mapstructure:"candle_bars"`
	AssetCacheTTL  time.Duration `mapstructure:"asset_cache_ttl"`
}

type ConnectorsConfig struct {
	HTTPTimeout time.Duration         `mapstructure:"http_timeout"`
	Binance     BinanceConnectorConfig `mapstructure:"binance"`
	Alpaca      AlpacaConnectorConfig  `mapstructure:"alpaca"`
}

type BinanceConnectorConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	PlaceProtective bool   `mapstructure:"place_protective"`
}

type AlpacaConnectorConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type PriceFeedConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	Symbols      []string      `mapstructure:"symbols"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
}

type AlertConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads path (unless envOnly) and overlays EZ_* environment variables. A .env file in
// the working directory is loaded first when present; real environment variables win.
func Load(path string, envOnly bool) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, err
		}
	}

	v := viper.New()
	v.SetEnvPrefix("EZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.swagger", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.lease_ttl", "5m")
	v.SetDefault("executor.lease_ttl", "30s")
	v.SetDefault("executor.lease_wait", "5s")
	v.SetDefault("executor.reconcile_grace", "5m")
	v.SetDefault("executor.pending_limit", 50)
	v.SetDefault("executor.candle_bars", 100)
	v.SetDefault("executor.asset_cache_ttl", "1m")
	v.SetDefault("connectors.http_timeout", "15s")
	v.SetDefault("connectors.binance.base_url", "")
	v.SetDefault("connectors.binance.place_protective", true)
	v.SetDefault("connectors.alpaca.base_url", "")
	v.SetDefault("price_feed.enabled", false)
	v.SetDefault("price_feed.url", "wss://fstream.binance.com/stream")
	v.SetDefault("price_feed.symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("price_feed.reconnect_min", "1s")
	v.SetDefault("price_feed.reconnect_max", "30s")
	v.SetDefault("alert.webhook_url", "")
	v.SetDefault("alert.token", "")
	v.SetDefault("alert.timeout", "2s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" && cfg.DB.Driver == "sqlite" {
		cfg.DB.DSN = "ezpip.db"
	}
	return cfg, nil
}
