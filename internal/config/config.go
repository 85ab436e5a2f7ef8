package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "SHOPBOOKING_CONFIG_PATH"

type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Sweeper struct {
		Enabled         *bool `yaml:"enabled"`
		IntervalMinutes int   `yaml:"interval_minutes"`
		LockTTLSeconds  int   `yaml:"lock_ttl_seconds"`
	} `yaml:"sweeper"`

	Notifications struct {
		Enabled       bool             `yaml:"enabled"`
		BotToken      string           `yaml:"bot_token"`
		DefaultChatID int64            `yaml:"default_chat_id"`
		ShopChats     map[string]int64 `yaml:"shop_chats"`
		RatePerSecond float64          `yaml:"rate_per_second"`
		Burst         int              `yaml:"burst"`
	} `yaml:"notifications"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportDir     string `yaml:"export_dir"`
		IntervalHours int    `yaml:"interval_hours"`
		LookbackDays  int    `yaml:"lookback_days"`
	} `yaml:"audit"`

	Shops struct {
		ConfigPath           string `yaml:"config_path"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"shops"`
}

// Path returns the config location from the environment or the default.
func Path() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/shopbooking.db"
	}
	if cfg.Shops.ConfigPath == "" {
		cfg.Shops.ConfigPath = "configs/shops.yaml"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SweeperEnabled defaults to true when the key is absent.
func (c *Config) SweeperEnabled() bool {
	return c.Sweeper.Enabled == nil || *c.Sweeper.Enabled
}

func (c *Config) SweepInterval() time.Duration {
	if c.Sweeper.IntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Sweeper.IntervalMinutes) * time.Minute
}

func (c *Config) SweepLockTTL() time.Duration {
	if c.Sweeper.LockTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Sweeper.LockTTLSeconds) * time.Second
}

func (c *Config) ShopsWatchInterval() time.Duration {
	if c.Shops.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Shops.WatchIntervalSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) AuditInterval() time.Duration {
	if c.Audit.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Audit.IntervalHours) * time.Hour
}

func (c *Config) AuditLookback() time.Duration {
	if c.Audit.LookbackDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Audit.LookbackDays) * 24 * time.Hour
}

func (c *Config) NotificationRate() (perSecond float64, burst int) {
	perSecond, burst = c.Notifications.RatePerSecond, c.Notifications.Burst
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return perSecond, burst
}
