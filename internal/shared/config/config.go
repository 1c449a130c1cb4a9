package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/reshetovitsme/channel-posts/internal/shared/domain"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

type Config struct {
	TelegramBotToken    string        `koanf:"telegram_bot_token" validate:"required"`
	TelegramAPIURL      string        `koanf:"telegram_api_url" validate:"required,url"`
	ChannelID           int64         `koanf:"channel_id" validate:"required"`
	ChannelUsername     string        `koanf:"channel_username"`
	HoursBack           int           `koanf:"hours_back" validate:"gte=0"`
	MaxPosts            int           `koanf:"max_posts" validate:"gte=1"`
	OutputPath          string        `koanf:"output_path" validate:"required"`
	MediaDir            string        `koanf:"media_dir" validate:"required"`
	MediaPathPrefix     string        `koanf:"media_path_prefix"`
	DefaultMedia        string        `koanf:"default_media" validate:"required"`
	MediaTimeout        int           `koanf:"media_timeout" validate:"gte=1"`
	DownloadConcurrency int           `koanf:"download_concurrency" validate:"gte=1"`
	DownloadRate        float64       `koanf:"download_rate" validate:"gt=0"`
	MaxMediaBytes       int64         `koanf:"max_media_bytes" validate:"gte=1"`
	IncludeKeywords     []string      `koanf:"include_keywords"`
	ExcludeKeywords     []string      `koanf:"exclude_keywords"`
	HistoryPath         string        `koanf:"history_path" validate:"required"`
	HTTPPort            string        `koanf:"http_port"`
	UpdateInterval      int           `koanf:"update_interval" validate:"gte=0"`
	SiteTitle           string        `koanf:"site_title"`
	SiteURL             string        `koanf:"site_url" validate:"omitempty,url"`
	AppEnv              domain.AppEnv `koanf:"app_env"`
}

var configFiles = []string{
	"config.yaml",
	"config.yml",
	"config.json",
	"config.toml",
}

// Load builds the configuration from an optional .env file, a config file and
// the environment, in increasing priority. An empty path searches the working
// directory for config.{yaml,yml,json,toml}.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case in production
	_ = godotenv.Load()

	k := koanf.New(".")

	configFile := path
	if configFile == "" {
		configFile, _ = lo.Find(configFiles, func(file string) bool {
			_, err := os.Stat(file)
			return err == nil
		})
	}

	if configFile != "" {
		parser, err := parserFor(configFile)
		if err != nil {
			return nil, apperrors.Mark(apperrors.ErrConfiguration, err)
		}
		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, apperrors.Mark(apperrors.ErrConfiguration, oops.With("config_file", configFile).Wrap(err))
		}
	}

	// Environment variables override config file values:
	// TELEGRAM_BOT_TOKEN -> telegram_bot_token
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, apperrors.Mark(apperrors.ErrConfiguration, oops.With("context", "loading environment variables").Wrap(err))
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, apperrors.Mark(apperrors.ErrConfiguration, oops.With("context", "unmarshaling config").Wrap(err))
	}

	// Keyword lists arrive as comma-separated strings from the environment
	cfg.IncludeKeywords = keywords(k.Get("include_keywords"))
	cfg.ExcludeKeywords = keywords(k.Get("exclude_keywords"))

	if env, err := domain.ParseAppEnv(k.String("app_env")); err == nil {
		cfg.AppEnv = env
	} else {
		cfg.AppEnv = domain.AppEnvProduction
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func parserFor(configFile string) (koanf.Parser, error) {
	switch ext := filepath.Ext(configFile); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, oops.With("config_file", configFile).Errorf("unsupported config file extension: %s", ext)
	}
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]any{
		"telegram_api_url":     "https://api.telegram.org",
		"hours_back":           48,
		"max_posts":            10,
		"output_path":          "./site/data/posts.json",
		"media_dir":            "./site/media",
		"media_path_prefix":    "media",
		"default_media":        "images/placeholder.png",
		"media_timeout":        30,
		"download_concurrency": 4,
		"download_rate":        5.0,
		"max_media_bytes":      20 << 20,
		"history_path":         "./data/history.db",
		"http_port":            "8080",
		"update_interval":      0,
		"site_title":           "Channel Posts",
		"app_env":              "production",
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}
}

// Validate checks required settings. A failure is a configuration error and
// must abort a run before the source is contacted.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return apperrors.Mark(apperrors.ErrConfiguration, apperrors.ErrMissingBotToken)
	}
	if c.ChannelID == 0 {
		return apperrors.Mark(apperrors.ErrConfiguration, apperrors.ErrMissingChannelID)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return apperrors.Mark(apperrors.ErrConfiguration, oops.With("context", "validating config").Wrap(err))
	}

	return nil
}

// MediaFetchTimeout is the per-download deadline.
func (c *Config) MediaFetchTimeout() time.Duration {
	return time.Duration(c.MediaTimeout) * time.Second
}

// Window is the trailing ingestion horizon.
func (c *Config) Window() time.Duration {
	return time.Duration(c.HoursBack) * time.Hour
}

// ParseKeywords parses a comma-separated keyword list, dropping blanks.
func ParseKeywords(s string) []string {
	if s == "" {
		return []string{}
	}
	return lo.FilterMap(strings.Split(s, ","), func(part string, _ int) (string, bool) {
		part = strings.TrimSpace(part)
		return part, part != ""
	})
}

// koanf might return lists as a string from env vars or as a slice from config files
func keywords(raw any) []string {
	switch v := raw.(type) {
	case string:
		return ParseKeywords(v)
	case []any:
		return lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s := strings.TrimSpace(fmt.Sprint(item))
			return s, s != ""
		})
	case []string:
		return ParseKeywords(strings.Join(v, ","))
	default:
		return []string{}
	}
}
