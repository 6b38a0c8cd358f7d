package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cron   CronConfig   `mapstructure:"cron"`

	Engine     EngineConfig     `mapstructure:"engine"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type AuthConfig struct {
	// BearerToken guards the API; empty disables auth.
	BearerToken string `mapstructure:"bearer_token"`
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
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type CronConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Sweep is the resume-sweep schedule in robfig/cron syntax.
	Sweep string `mapstructure:"sweep"`
}

type EngineConfig struct {
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	Workers           int           `mapstructure:"workers"`
	SelectionLimit    int           `mapstructure:"selection_limit"`
	ImmediateDebounce time.Duration `mapstructure:"immediate_debounce"`
	// MaxScan caps how many articles a single evaluation reads.
	MaxScan int `mapstructure:"max_scan"`
}

type DispatchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
	ResumeBatch int           `mapstructure:"resume_batch"`
}

type RetentionConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	ArticleDays      int           `mapstructure:"article_days"`
	NotificationDays int           `mapstructure:"notification_days"`
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type SummarizerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("auth.bearer_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.sweep", "@every 2m")
	v.SetDefault("engine.tick_interval", "1m")
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.selection_limit", 10)
	v.SetDefault("engine.immediate_debounce", "1m")
	v.SetDefault("engine.max_scan", 500)
	v.SetDefault("dispatch.max_attempts", 4)
	v.SetDefault("dispatch.base_backoff", "2s")
	v.SetDefault("dispatch.max_backoff", "30s")
	v.SetDefault("dispatch.timeout", "60s")
	v.SetDefault("dispatch.lease_ttl", "2m")
	v.SetDefault("dispatch.resume_batch", 50)
	v.SetDefault("retention.interval", "6h")
	v.SetDefault("retention.article_days", 90)
	v.SetDefault("retention.notification_days", 180)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("summarizer.base_url", "")
	v.SetDefault("summarizer.api_key", "")
	v.SetDefault("summarizer.timeout", "30s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
