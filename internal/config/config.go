package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024

// Config keeps runtime settings for the API server, the scheduler and the bot.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Auth       AuthConfig       `koanf:"auth"`
	Extraction ExtractionConfig `koanf:"extraction"`
	Scheduler  SchedulerConfig  `koanf:"scheduler"`
	Telegram   TelegramConfig   `koanf:"telegram"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	URL    string `koanf:"url"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type ExtractionConfig struct {
	Provider      string        `koanf:"provider"`
	APIKey        string        `koanf:"api_key"`
	Model         string        `koanf:"model"`
	BaseURL       string        `koanf:"base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerMinute int           `koanf:"rate_per_minute"`
}

type SchedulerConfig struct {
	Enabled        bool          `koanf:"enabled"`
	IntakeInterval time.Duration `koanf:"intake_interval"`
	DailyTime      string        `koanf:"daily_time"`
	Timezone       string        `koanf:"timezone"`
}

type TelegramConfig struct {
	Token  string `koanf:"token"`
	Digest bool   `koanf:"digest"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "clearfocus.db",
		},
		Auth: AuthConfig{
			TokenTTL: 30 * 24 * time.Hour,
		},
		Extraction: ExtractionConfig{
			Provider:      "heuristic",
			Model:         "gpt-4o-mini",
			Timeout:       60 * time.Second,
			RatePerMinute: 50,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			IntakeInterval: 10 * time.Minute,
			DailyTime:      "00:00",
		},
		Telegram: TelegramConfig{
			Digest: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

var sections = map[string]bool{
	"server":     true,
	"database":   true,
	"auth":       true,
	"extraction": true,
	"scheduler":  true,
	"telegram":   true,
	"log":        true,
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. Environment variables map
// SECTION_FIELD_NAME to section.field_name (DATABASE_URL -> database.url).
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if raw := k.String("server.allowed_origins"); raw != "" && !strings.HasPrefix(raw, "[") {
		cfg.Server.AllowedOrigins = splitList(raw)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envKey maps an environment variable onto a config key. Variables outside
// the known sections are ignored.
func envKey(s string) string {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 || !sections[parts[0]] {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(f)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("database.url is required")
	}
	switch c.Extraction.Provider {
	case "heuristic":
	case "openai":
		if c.Extraction.APIKey == "" {
			return fmt.Errorf("extraction.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("extraction.provider must be heuristic or openai, got %q", c.Extraction.Provider)
	}
	if c.Scheduler.IntakeInterval <= 0 {
		return fmt.Errorf("scheduler.intake_interval must be positive")
	}
	if _, _, err := ParseClock(c.Scheduler.DailyTime); err != nil {
		return fmt.Errorf("scheduler.daily_time: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Location resolves the timezone that defines "today".
func (c Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Scheduler.Timezone)
}

// ParseClock parses an HH:MM time of day.
func ParseClock(value string) (int, int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}
