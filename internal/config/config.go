package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"flash-trader/internal/engine"
	"flash-trader/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Lottery   LotteryConfig   `mapstructure:"lottery"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Volume    VolumeConfig    `mapstructure:"volume"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SchedulerConfig governs the leaderboard cycle cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// RewardsConfig sizes the pool and controls streak decay. Amounts are base units.
type RewardsConfig struct {
	VolumeThreshold      uint64          `mapstructure:"volume_threshold"`
	LowVolumePool        uint64          `mapstructure:"low_volume_pool"`
	HighVolumePool       uint64          `mapstructure:"high_volume_pool"`
	DecayStreakThreshold uint64          `mapstructure:"decay_streak_threshold"`
	DecayFactor          decimal.Decimal `mapstructure:"decay_factor"`
}

// LotteryConfig describes the bonus rule.
type LotteryConfig struct {
	MinOneMinCount uint64 `mapstructure:"min_one_min_count"`
	Amount         uint64 `mapstructure:"amount"`
}

// ArchiveConfig sets history retention. Zero keeps everything.
type ArchiveConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

// VolumeConfig selects the external DEX volume signal.
type VolumeConfig struct {
	Source         string        `mapstructure:"source"`
	Static         uint64        `mapstructure:"static"`
	URL            string        `mapstructure:"url"`
	Field          string        `mapstructure:"field"`
	Decimals       int32         `mapstructure:"decimals"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TransferConfig routes computed transfers to the value-transfer service.
type TransferConfig struct {
	Executor   string        `mapstructure:"executor"`
	WebhookURL string        `mapstructure:"webhook_url"`
	AuthToken  string        `mapstructure:"auth_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BurnVault  string        `mapstructure:"burn_vault"`
}

// AlertingConfig controls cycle announcements.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 推送参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig exposes Prometheus metrics during `run`.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Listen    string `mapstructure:"listen"`
	Namespace string `mapstructure:"namespace"`
}

// ExportConfig sets chart export behaviour.
type ExportConfig struct {
	ChartWidth  int `mapstructure:"chart_width"`
	ChartHeight int `mapstructure:"chart_height"`
}

// Load builds configuration from file, .env, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("FLASHTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "flashtrader")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x464c5452))
	v.SetDefault("scheduler.startup_delay", "0s")

	pools := engine.DefaultPoolPolicy()
	rewards := engine.DefaultRewardPolicy()
	v.SetDefault("rewards.volume_threshold", pools.VolumeThreshold)
	v.SetDefault("rewards.low_volume_pool", pools.LowVolumePool)
	v.SetDefault("rewards.high_volume_pool", pools.HighVolumePool)
	v.SetDefault("rewards.decay_streak_threshold", rewards.DecayStreakThreshold)
	v.SetDefault("rewards.decay_factor", rewards.DecayFactor.String())

	bonus := engine.DefaultBonusPolicy()
	v.SetDefault("lottery.min_one_min_count", bonus.MinOneMinCount)
	v.SetDefault("lottery.amount", bonus.Amount)

	v.SetDefault("archive.retention", "24h")

	v.SetDefault("volume.source", "static")
	v.SetDefault("volume.static", 0)
	v.SetDefault("volume.field", "volume")
	v.SetDefault("volume.decimals", 0)
	v.SetDefault("volume.request_timeout", "10s")

	v.SetDefault("transfer.executor", "log")
	v.SetDefault("transfer.timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9464")
	v.SetDefault("metrics.namespace", "flashtrader")

	v.SetDefault("export.chart_width", 1280)
	v.SetDefault("export.chart_height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			stringToDecimalHook(),
		)
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func stringToDecimalHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case float64:
			return decimal.NewFromFloat(v), nil
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		default:
			return data, nil
		}
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Rewards.DecayFactor.IsNegative() || c.Rewards.DecayFactor.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("rewards.decay_factor must be within [0, 1], got %s", c.Rewards.DecayFactor)
	}
	if c.Archive.Retention < 0 {
		return fmt.Errorf("archive.retention cannot be negative")
	}

	switch c.Volume.Source {
	case "static":
	case "http":
		if c.Volume.URL == "" {
			return fmt.Errorf("volume.url is required when volume.source is http")
		}
	default:
		return fmt.Errorf("volume.source must be static or http, got %q", c.Volume.Source)
	}

	switch c.Transfer.Executor {
	case "log":
	case "webhook":
		if c.Transfer.WebhookURL == "" {
			return fmt.Errorf("transfer.webhook_url is required when transfer.executor is webhook")
		}
	default:
		return fmt.Errorf("transfer.executor must be log or webhook, got %q", c.Transfer.Executor)
	}

	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}
	return nil
}

// PoolPolicy returns the configured pool sizing rule.
func (c *Config) PoolPolicy() engine.PoolPolicy {
	return engine.PoolPolicy{
		VolumeThreshold: c.Rewards.VolumeThreshold,
		LowVolumePool:   c.Rewards.LowVolumePool,
		HighVolumePool:  c.Rewards.HighVolumePool,
	}
}

// CyclePolicy returns the configured reward and lottery rules.
func (c *Config) CyclePolicy() engine.CyclePolicy {
	return engine.CyclePolicy{
		Rewards: engine.RewardPolicy{
			DecayStreakThreshold: c.Rewards.DecayStreakThreshold,
			DecayFactor:          c.Rewards.DecayFactor,
		},
		Bonus: engine.BonusPolicy{
			MinOneMinCount: c.Lottery.MinOneMinCount,
			Amount:         c.Lottery.Amount,
		},
	}
}
