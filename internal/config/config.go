package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	DataDir         string        `yaml:"data_dir"`
	DBPath          string        `yaml:"db_path"`
	LogLevel        string        `yaml:"log_level"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
	RetentionDays   int           `yaml:"retention_days"`

	Docker        DockerConfig        `yaml:"docker"`
	Cache         CacheConfig         `yaml:"cache"`
	WebChecks     WebChecksConfig     `yaml:"web_checks"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Formatting    FormattingConfig    `yaml:"formatting"`
	UpdateCheck   UpdateCheckConfig   `yaml:"update_check"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

type DockerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Socket  string `yaml:"socket"`
}

// CacheConfig holds how long each metric category stays fresh.
type CacheConfig struct {
	CPU         time.Duration `yaml:"cpu"`
	Network     time.Duration `yaml:"network"`
	Disk        time.Duration `yaml:"disk"`
	FileSystem  time.Duration `yaml:"filesystem"`
	Memory      time.Duration `yaml:"memory"`
	Processes   time.Duration `yaml:"processes"`
	GPU         time.Duration `yaml:"gpu"`
	Motherboard time.Duration `yaml:"motherboard"`
}

type WebChecksConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	StatusTTL time.Duration `yaml:"status_ttl"`
}

type NotificationsConfig struct {
	ServerName string         `yaml:"server_name"`
	Timeout    time.Duration  `yaml:"timeout"`
	Ntfy       NtfyConfig     `yaml:"ntfy"`
	Telegram   TelegramConfig `yaml:"telegram"`
}

type NtfyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Topic   string `yaml:"topic"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type FormattingConfig struct {
	// TemperatureUnit is system, celsius or fahrenheit.
	TemperatureUnit string `yaml:"temperature_unit"`
}

type UpdateCheckConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	User     string        `yaml:"user"`
	Repo     string        `yaml:"repo"`
}

type TelemetryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		DataDir:         "./data",
		LogLevel:        "info",
		MonitorInterval: 15 * time.Second,
		RetentionDays:   30,
		Docker:          DockerConfig{Enabled: true, Socket: "/var/run/docker.sock"},
		Cache: CacheConfig{
			CPU:         5 * time.Second,
			Network:     5 * time.Second,
			Disk:        5 * time.Second,
			FileSystem:  5 * time.Second,
			Memory:      5 * time.Second,
			Processes:   5 * time.Second,
			GPU:         5 * time.Second,
			Motherboard: time.Minute,
		},
		WebChecks:     WebChecksConfig{Timeout: 10 * time.Second, StatusTTL: 10 * time.Second},
		Notifications: NotificationsConfig{Timeout: 10 * time.Second, Ntfy: NtfyConfig{URL: "https://ntfy.sh"}},
		Formatting:    FormattingConfig{TemperatureUnit: "system"},
		UpdateCheck:   UpdateCheckConfig{Enabled: true, Interval: 12 * time.Hour, User: "Krillsson", Repo: "sys-api"},
		Telemetry:     TelemetryConfig{Interval: time.Minute},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// APP_CONFIG if any, and finally environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("APP_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	cfg.Formatting.TemperatureUnit = strings.ToLower(strings.TrimSpace(cfg.Formatting.TemperatureUnit))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.DBPath == "" {
		cfg.DBPath = cfg.DataDir + "/app.db"
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return errors.New("config file is empty")
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = getenv("APP_ADDR", cfg.Addr)
	cfg.DataDir = getenv("APP_DATA_DIR", cfg.DataDir)
	cfg.DBPath = getenv("APP_DB_PATH", cfg.DBPath)
	cfg.LogLevel = getenv("APP_LOG_LEVEL", cfg.LogLevel)
	cfg.MonitorInterval = getenvDuration("APP_MONITOR_INTERVAL", cfg.MonitorInterval)
	cfg.RetentionDays = getenvInt("APP_RETENTION_DAYS", cfg.RetentionDays)
	cfg.Docker.Enabled = getenvBool("APP_DOCKER_ENABLED", cfg.Docker.Enabled)
	cfg.Docker.Socket = getenv("DOCKER_SOCKET", cfg.Docker.Socket)
	cfg.Notifications.ServerName = getenv("APP_SERVER_NAME", cfg.Notifications.ServerName)
	cfg.Notifications.Ntfy.Enabled = getenvBool("APP_NTFY_ENABLED", cfg.Notifications.Ntfy.Enabled)
	cfg.Notifications.Ntfy.URL = getenv("APP_NTFY_URL", cfg.Notifications.Ntfy.URL)
	cfg.Notifications.Ntfy.Topic = getenv("APP_NTFY_TOPIC", cfg.Notifications.Ntfy.Topic)
	cfg.Notifications.Telegram.BotToken = getenv("TELEGRAM_BOT_TOKEN", cfg.Notifications.Telegram.BotToken)
	cfg.Notifications.Telegram.ChatID = getenv("TELEGRAM_CHAT_ID", cfg.Notifications.Telegram.ChatID)
	cfg.Formatting.TemperatureUnit = getenv("APP_TEMPERATURE_UNIT", cfg.Formatting.TemperatureUnit)
	cfg.UpdateCheck.Enabled = getenvBool("APP_UPDATE_CHECK", cfg.UpdateCheck.Enabled)
	cfg.Telemetry.Enabled = getenvBool("APP_TELEMETRY", cfg.Telemetry.Enabled)
}

func Validate(cfg Config) error {
	if cfg.Addr == "" {
		return errors.New("addr is required")
	}
	if cfg.MonitorInterval <= 0 {
		return fmt.Errorf("monitor_interval must be > 0, got %s", cfg.MonitorInterval)
	}
	switch strings.ToLower(cfg.Formatting.TemperatureUnit) {
	case "system", "celsius", "fahrenheit":
	default:
		return fmt.Errorf("formatting.temperature_unit must be system, celsius or fahrenheit, got %q", cfg.Formatting.TemperatureUnit)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.UpdateCheck.Enabled && (cfg.UpdateCheck.User == "" || cfg.UpdateCheck.Repo == "") {
		return errors.New("update_check requires user and repo")
	}
	if cfg.UpdateCheck.Enabled && cfg.UpdateCheck.Interval <= 0 {
		return fmt.Errorf("update_check.interval must be > 0, got %s", cfg.UpdateCheck.Interval)
	}
	for name, ttl := range map[string]time.Duration{
		"cpu": cfg.Cache.CPU, "network": cfg.Cache.Network, "disk": cfg.Cache.Disk,
		"filesystem": cfg.Cache.FileSystem, "memory": cfg.Cache.Memory, "processes": cfg.Cache.Processes,
		"gpu": cfg.Cache.GPU, "motherboard": cfg.Cache.Motherboard,
	} {
		if ttl < 0 {
			return fmt.Errorf("cache.%s must not be negative", name)
		}
	}
	return nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
}
