// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Supported browser engines.
const (
	EngineChromedp   = "chromedp"
	EnginePlaywright = "playwright"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	Target  TargetConfig  `mapstructure:"target" yaml:"target"`
	Cases   CasesConfig   `mapstructure:"cases" yaml:"cases"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Engine        string         `mapstructure:"engine" yaml:"engine"`
	Headless      bool           `mapstructure:"headless" yaml:"headless"`
	Viewport      ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	NoSandbox     bool           `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	DisableDevShm bool           `mapstructure:"disable_dev_shm" yaml:"disable_dev_shm"`
	SingleProcess bool           `mapstructure:"single_process" yaml:"single_process"`
	Args          []string       `mapstructure:"args" yaml:"args"`
	ExecPath      string         `mapstructure:"exec_path" yaml:"exec_path"`
}

// ViewportConfig is the browser window size in CSS pixels.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// RunnerConfig tunes the timing of a flow run.
type RunnerConfig struct {
	// DefaultTimeout is applied to every locate/act call that does not set its own.
	DefaultTimeout    time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	SettleTimeout     time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	ActionDelay       time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	Linger            time.Duration `mapstructure:"linger" yaml:"linger"`
	Concurrency       int           `mapstructure:"concurrency" yaml:"concurrency"`
	LaunchInterval    time.Duration `mapstructure:"launch_interval" yaml:"launch_interval"`
}

// TargetConfig describes the application under test.
type TargetConfig struct {
	BaseURL     string            `mapstructure:"base_url" yaml:"base_url"`
	Credentials CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
}

// CredentialsConfig holds the accounts used by the built-in flows.
// Passwords are expected to come from the environment, not the config file.
type CredentialsConfig struct {
	Email        string `mapstructure:"email" yaml:"email"`
	Password     string `mapstructure:"password" yaml:"-"`
	RoleEmail    string `mapstructure:"role_email" yaml:"role_email"`
	RolePassword string `mapstructure:"role_password" yaml:"-"`
}

// CasesConfig points at additional case definitions on disk.
type CasesConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flowrunner")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Browser --
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.disable_dev_shm", true)
	v.SetDefault("browser.single_process", false)

	// -- Runner --
	v.SetDefault("runner.default_timeout", "5s")
	v.SetDefault("runner.navigation_timeout", "10s")
	v.SetDefault("runner.settle_timeout", "3s")
	v.SetDefault("runner.action_delay", "0s")
	v.SetDefault("runner.linger", "0s")
	v.SetDefault("runner.concurrency", 1)
	v.SetDefault("runner.launch_interval", "0s")

	// -- Target --
	v.SetDefault("target.base_url", "http://localhost:5000")
	v.SetDefault("target.credentials.email", "clubadmin@example.com")
	v.SetDefault("target.credentials.password", "")
	v.SetDefault("target.credentials.role_email", "member@example.com")
	v.SetDefault("target.credentials.role_password", "")

	// -- Cases --
	v.SetDefault("cases.dir", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are only ever read from the environment.
	_ = v.BindEnv("target.credentials.password", "FLOWRUNNER_PASSWORD")
	_ = v.BindEnv("target.credentials.role_password", "FLOWRUNNER_ROLE_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in file system settings.
func (c *Config) expandPaths() error {
	var err error
	if c.Cases.Dir, err = homedir.Expand(c.Cases.Dir); err != nil {
		return fmt.Errorf("cases.dir: %w", err)
	}
	if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
		return fmt.Errorf("logger.log_file: %w", err)
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Browser.Engine) {
	case EngineChromedp, EnginePlaywright:
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", EngineChromedp, EnginePlaywright, c.Browser.Engine)
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport width and height must be positive")
	}
	if err := c.Runner.Validate(); err != nil {
		return fmt.Errorf("runner configuration invalid: %w", err)
	}
	if strings.TrimSpace(c.Target.BaseURL) == "" {
		return fmt.Errorf("target.base_url is a required configuration field")
	}
	return nil
}

// Validate checks the RunnerConfig settings.
func (r *RunnerConfig) Validate() error {
	if r.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be a positive duration")
	}
	if r.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	if r.SettleTimeout <= 0 {
		return fmt.Errorf("settle_timeout must be a positive duration")
	}
	if r.ActionDelay < 0 || r.Linger < 0 || r.LaunchInterval < 0 {
		return fmt.Errorf("action_delay, linger and launch_interval cannot be negative")
	}
	if r.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	return nil
}
