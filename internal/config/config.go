package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrNoServerURL     = errors.New("server_url must not be empty")
	ErrInvalidDebounce = errors.New("search_debounce must be positive")
	ErrExportFormat    = errors.New("export_format must be md or html")
)

type Config struct {
	ServerURL         string        `mapstructure:"server_url"`
	SearchDebounce    time.Duration `mapstructure:"search_debounce"`
	StreamIdleTimeout time.Duration `mapstructure:"stream_idle_timeout"`
	DBPath            string        `mapstructure:"db_path"`
	ExportDir         string        `mapstructure:"export_dir"`
	ExportFormat      string        `mapstructure:"export_format"`
	Log               LogConfig     `mapstructure:"log"`
	Backend           BackendConfig `mapstructure:"backend"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// BackendConfig is only read by the local dev server.
type BackendConfig struct {
	Addr      string `mapstructure:"addr"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// Dir returns the per-user directory quill keeps its files in.
func Dir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "."
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "quill")
}

func setDefaults(v *viper.Viper) {
	dir := Dir()
	v.SetDefault("server_url", "http://127.0.0.1:8036")
	v.SetDefault("search_debounce", 300*time.Millisecond)
	v.SetDefault("stream_idle_timeout", time.Duration(0))
	v.SetDefault("db_path", filepath.Join(dir, "quill.db"))
	v.SetDefault("export_dir", ".")
	v.SetDefault("export_format", "md")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", filepath.Join(dir, "quill.log"))
	v.SetDefault("backend.addr", "127.0.0.1:8036")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.base_url", "https://api.openai.com/v1")
	v.SetDefault("backend.model", "gpt-4o-mini")
	v.SetDefault("backend.max_tokens", 2000)
}

// Load reads configuration from path (optional; empty means defaults plus
// environment). Environment variables use the QUILL_ prefix, e.g.
// QUILL_SERVER_URL or QUILL_BACKEND_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.ServerURL = strings.TrimSuffix(cfg.ServerURL, "/")

	if cfg.ServerURL == "" {
		return nil, ErrNoServerURL
	}
	if cfg.SearchDebounce <= 0 {
		return nil, ErrInvalidDebounce
	}
	if cfg.ExportFormat != "md" && cfg.ExportFormat != "html" {
		return nil, ErrExportFormat
	}
	return cfg, nil
}
