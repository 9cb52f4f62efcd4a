// Package config loads the mailwalk configuration from a yaml file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jakopako/mailwalk/internal/output"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration is looked up if no path is given.
const DefaultPath = "./mailwalk.yaml"

// APIConfig defines how to reach the statistics and settings API.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" env:"MAILWALK_API_URL" env-default:"https://whitescrap-api.humming-mail.com"`
	Timeout           time.Duration `yaml:"timeout" env:"MAILWALK_API_TIMEOUT" env-default:"30s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"MAILWALK_API_RPS" env-default:"5"`
	Provider          string        `yaml:"provider" env:"MAILWALK_PROVIDER" env-default:"gmail"`
	Username          string        `yaml:"username" env:"MAILWALK_USERNAME"` // we want to be able to pass credentials via env vars
	Password          string        `yaml:"password" env:"MAILWALK_PASSWORD"` // we want to be able to pass credentials via env vars
}

// StoreConfig defines where the durable run state lives.
type StoreConfig struct {
	Path string `yaml:"path" env:"MAILWALK_STORE" env-default:"./.mailwalk/state.db"`
}

// BrowserConfig defines how the browser is reached or launched.
type BrowserConfig struct {
	RemoteURL   string        `yaml:"remote_url" env:"MAILWALK_DEVTOOLS_URL"`
	UserDataDir string        `yaml:"user_data_dir" env:"MAILWALK_USER_DATA_DIR"`
	Headless    bool          `yaml:"headless" env:"MAILWALK_HEADLESS" env-default:"false"`
	MailURL     string        `yaml:"mail_url" env:"MAILWALK_MAIL_URL" env-default:"https://mail.google.com/mail/u/0/#inbox"`
	UserAgent   string        `yaml:"user_agent" env:"MAILWALK_USER_AGENT"`
	TabHold     time.Duration `yaml:"tab_hold" env-default:"2s"`
	TabTimeout  time.Duration `yaml:"tab_timeout" env-default:"60s"`
	DebugDir    string        `yaml:"debug_dir" env-default:"./.mailwalk/debug"`
}

// PaceConfig is a [min, max] range for randomized waits.
type PaceConfig struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// AutomationConfig holds the timing parameters of the automation.
type AutomationConfig struct {
	LookbackDays       int           `yaml:"lookback_days" env:"MAILWALK_DAYS" env-default:"1"`
	PollInterval       time.Duration `yaml:"poll_interval" env-default:"500ms"`
	ElementTimeout     time.Duration `yaml:"element_timeout" env-default:"15s"`
	PaginationTimeout  time.Duration `yaml:"pagination_timeout" env-default:"10s"`
	TabResponseTimeout time.Duration `yaml:"tab_response_timeout" env-default:"90s"`
	Locale             string        `yaml:"locale" env:"MAILWALK_LOCALE" env-default:"en_US"`
	Pace               PaceConfig    `yaml:"pace"`
	SearchPace         PaceConfig    `yaml:"search_pace"`
	SpamPace           PaceConfig    `yaml:"spam_pace"`
	ConfirmPace        PaceConfig    `yaml:"confirm_pace"`
}

// LogConfig configures the optional rotating log file.
type LogConfig struct {
	File       string `yaml:"file" env:"MAILWALK_LOG_FILE"`
	MaxSize    int    `yaml:"max_size" env-default:"10"`
	MaxBackups int    `yaml:"max_backups" env-default:"3"`
	MaxAge     int    `yaml:"max_age" env-default:"28"`
}

// Config defines the overall structure of the mailwalk configuration.
// Values will be taken from a config yml file or environment variables
// or both.
type Config struct {
	API        APIConfig           `yaml:"api"`
	Store      StoreConfig         `yaml:"store"`
	Browser    BrowserConfig       `yaml:"browser"`
	Automation AutomationConfig    `yaml:"automation"`
	Log        LogConfig           `yaml:"log"`
	Output     output.WriterConfig `yaml:"output"`
}

// Default pacing ranges, in the order pace, search, spam, confirm.
var (
	DefaultPace        = PaceConfig{Min: 800 * time.Millisecond, Max: 1500 * time.Millisecond}
	DefaultSearchPace  = PaceConfig{Min: 3 * time.Second, Max: 5 * time.Second}
	DefaultSpamPace    = PaceConfig{Min: 2 * time.Second, Max: 3 * time.Second}
	DefaultConfirmPace = PaceConfig{Min: 1 * time.Second, Max: 1500 * time.Millisecond}
)

// NewConfig reads the configuration at path. A missing file is not an
// error, in that case only environment variables and defaults are used.
func NewConfig(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &config); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return nil, fmt.Errorf("error reading config from env: %w", err)
		}
	} else {
		return nil, err
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration that results from defaults alone.
func Default() (*Config, error) {
	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	fill := func(p *PaceConfig, d PaceConfig) {
		if p.Min == 0 && p.Max == 0 {
			*p = d
		}
	}
	fill(&c.Automation.Pace, DefaultPace)
	fill(&c.Automation.SearchPace, DefaultSearchPace)
	fill(&c.Automation.SpamPace, DefaultSpamPace)
	fill(&c.Automation.ConfirmPace, DefaultConfirmPace)
}

// Validate checks that timing parameters are usable.
func (c *Config) Validate() error {
	a := c.Automation
	if a.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be at least 1, got %d", a.LookbackDays)
	}
	if a.PollInterval <= 0 || a.ElementTimeout <= 0 || a.PaginationTimeout <= 0 || a.TabResponseTimeout <= 0 {
		return errors.New("poll_interval, element_timeout, pagination_timeout and tab_response_timeout must be positive")
	}
	for name, p := range map[string]PaceConfig{
		"pace":         a.Pace,
		"search_pace":  a.SearchPace,
		"spam_pace":    a.SpamPace,
		"confirm_pace": a.ConfirmPace,
	} {
		// a zero width range makes the timing predictable
		if p.Min <= 0 || p.Max <= p.Min {
			return fmt.Errorf("%s: max (%v) must be greater than min (%v) and min must be positive", name, p.Max, p.Min)
		}
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url cannot be empty")
	}
	if c.API.RequestsPerSecond <= 0 {
		return errors.New("api.requests_per_second must be positive")
	}
	return nil
}

// Write marshals the configuration as yaml to path. Credentials are
// never written.
func (c Config) Write(path string) error {
	c.API.Username = ""
	c.API.Password = ""
	yamlData, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("error while marshalling config: %w", err)
	}
	return os.WriteFile(path, yamlData, 0o600)
}
