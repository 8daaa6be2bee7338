// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Submitter SubmitterConfig `mapstructure:"submitter" yaml:"submitter"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ExecPath overrides the Chrome binary location (CHROME_BIN equivalent).
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// Args are appended to the default hardened launch flags.
	Args      []string `mapstructure:"args" yaml:"args"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	// WindowWidth/WindowHeight set the viewport of the launched browser.
	WindowWidth  int `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int `mapstructure:"window_height" yaml:"window_height"`
}

// NetworkConfig tunes the bounded waits used against the target page.
type NetworkConfig struct {
	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// PageReadyTimeout bounds the wait for a body-equivalent root during mapping.
	PageReadyTimeout time.Duration `mapstructure:"page_ready_timeout" yaml:"page_ready_timeout"`
	// ElementTimeout bounds individual element presence checks.
	ElementTimeout time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	// ConfirmationTimeout bounds the wait for the post-submit confirmation signal.
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout" yaml:"confirmation_timeout"`
	// PostLoadWait is the settle period after a navigation before interacting.
	PostLoadWait time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// SubmitterConfig controls the fill/submit pipeline.
type SubmitterConfig struct {
	// MaxFillRetries bounds attempts per field before it is recorded as failed.
	MaxFillRetries int `mapstructure:"max_fill_retries" yaml:"max_fill_retries"`
	// RetryPause is the short pause between failed fill attempts.
	RetryPause time.Duration `mapstructure:"retry_pause" yaml:"retry_pause"`
	// RowInterval paces row submissions (one submission per interval).
	RowInterval time.Duration `mapstructure:"row_interval" yaml:"row_interval"`
	// ScreenshotPath, when set, receives a diagnostic capture of the mapped page.
	ScreenshotPath string `mapstructure:"screenshot_path" yaml:"screenshot_path"`
}

// ServerConfig holds settings for the HTTP job API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// UploadDir receives uploaded spreadsheets; defaults to the OS temp dir.
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir"`
	// MaxConcurrentJobs caps background submission runs sharing this host.
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "form-submitter")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "90s")
	v.SetDefault("network.page_ready_timeout", "30s")
	v.SetDefault("network.element_timeout", "10s")
	v.SetDefault("network.confirmation_timeout", "10s")
	v.SetDefault("network.post_load_wait", "1500ms")

	// -- Submitter --
	v.SetDefault("submitter.max_fill_retries", 3)
	v.SetDefault("submitter.retry_pause", "500ms")
	v.SetDefault("submitter.row_interval", "2s")
	v.SetDefault("submitter.screenshot_path", "")

	// -- Server --
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.upload_dir", "")
	v.SetDefault("server.max_concurrent_jobs", 1)
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Submitter.MaxFillRetries <= 0 {
		return fmt.Errorf("submitter.max_fill_retries must be a positive integer")
	}
	if c.Server.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("server.max_concurrent_jobs must be a positive integer")
	}
	if c.Network.PageReadyTimeout <= 0 || c.Network.ElementTimeout <= 0 {
		return fmt.Errorf("network timeouts must be positive durations")
	}
	switch strings.ToLower(c.Logger.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.Logger.Format)
	}
	return nil
}
