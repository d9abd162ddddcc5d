// ABOUTME: Configuration loading and parsing for hiredesk-gateway
// ABOUTME: Supports YAML files with environment variable expansion and fail-fast validation

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete hiredesk-gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Bot        BotConfig        `yaml:"bot"`
	Database   DatabaseConfig   `yaml:"database"`
	Vso        VsoConfig        `yaml:"vso"`
	Upwork     UpworkConfig     `yaml:"upwork"`
	FancyHands FancyHandsConfig `yaml:"fancyhands"`
	SendGrid   SendGridConfig   `yaml:"sendgrid"`
	Graph      GraphConfig      `yaml:"graph"`
	Dialogs    DialogsConfig    `yaml:"dialogs"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// BotConfig holds Bot Framework connector credentials and channel settings
type BotConfig struct {
	AppID       string `yaml:"app_id"`
	AppPassword string `yaml:"app_password"`
	ServiceURL  string `yaml:"service_url"`
	PhoneNumber string `yaml:"phone_number"`

	// AgentTeamID is the group conversation the bot treats as the internal
	// agent channel.
	AgentTeamID string `yaml:"agent_team_id"`

	// Production suppresses error detail in user-facing failure messages.
	Production bool `yaml:"production"`
}

// DatabaseConfig holds the identity/session database location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// VsoConfig holds work-item tracking (Azure DevOps) settings
type VsoConfig struct {
	OrgURL   string `yaml:"org_url"`
	Project  string `yaml:"project"`
	Username string `yaml:"username"`
	PAT      string `yaml:"pat"`

	// AssignTo is the account newly created tickets are assigned to.
	AssignTo string `yaml:"assign_to"`
}

// UpworkConfig holds Upwork OAuth1.0a credentials
type UpworkConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	AccessToken    string `yaml:"access_token"`
	AccessSecret   string `yaml:"access_secret"`
}

// FancyHandsConfig holds FancyHands OAuth1.0a credentials
type FancyHandsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	AccessToken    string `yaml:"access_token"`
	AccessSecret   string `yaml:"access_secret"`
}

// SendGridConfig holds email delivery settings
type SendGridConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKey      string `yaml:"api_key"`
	FromAddress string `yaml:"from_address"`
}

// GraphConfig holds Microsoft Graph client-credentials settings
type GraphConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// AgentUserID is the directory user whose presence stands in for agent
	// availability. When empty the gateway falls back to last-seen activity.
	AgentUserID string `yaml:"agent_user_id"`
}

// DialogsConfig holds conversation flow tuning knobs
type DialogsConfig struct {
	// MinDescriptionLength is the strict lower bound on request descriptions;
	// a description is valid only when its length is greater than this value.
	MinDescriptionLength int `yaml:"min_description_length"`
	MaxDescriptionLength int `yaml:"max_description_length"`
	PromptAttempts       int `yaml:"prompt_attempts"`

	// OnlineThreshold controls the "may be slow to respond" notice: an agent
	// seen within this window counts as online.
	OnlineThreshold time.Duration `yaml:"-"`

	OnlineThresholdRaw string `yaml:"online_threshold"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the config file leaves a knob unset.
const (
	DefaultMinDescriptionLength = 15
	DefaultMaxDescriptionLength = 2000
	DefaultPromptAttempts       = 3
	DefaultOnlineThreshold      = 10 * time.Minute
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "0.0.0.0:3978"
	}
	if cfg.Dialogs.MinDescriptionLength == 0 {
		cfg.Dialogs.MinDescriptionLength = DefaultMinDescriptionLength
	}
	if cfg.Dialogs.MaxDescriptionLength == 0 {
		cfg.Dialogs.MaxDescriptionLength = DefaultMaxDescriptionLength
	}
	if cfg.Dialogs.PromptAttempts == 0 {
		cfg.Dialogs.PromptAttempts = DefaultPromptAttempts
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present.
// The gateway refuses to start without them; failing here beats failing on
// the first user turn.
func (c *Config) Validate() error {
	required := []struct {
		value string
		name  string
	}{
		{c.Bot.AppID, "bot.app_id"},
		{c.Bot.AppPassword, "bot.app_password"},
		{c.Bot.PhoneNumber, "bot.phone_number"},
		{c.Vso.OrgURL, "vso.org_url"},
		{c.Vso.Project, "vso.project"},
		{c.Vso.Username, "vso.username"},
		{c.Vso.PAT, "vso.pat"},
		{c.Vso.AssignTo, "vso.assign_to"},
		{c.Database.Path, "database.path"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	if c.FancyHands.Enabled && c.FancyHands.ConsumerKey == "" {
		return fmt.Errorf("fancyhands.consumer_key is required when fancyhands is enabled")
	}
	if c.Upwork.Enabled && c.Upwork.ConsumerKey == "" {
		return fmt.Errorf("upwork.consumer_key is required when upwork is enabled")
	}
	if c.SendGrid.Enabled && c.SendGrid.APIKey == "" {
		return fmt.Errorf("sendgrid.api_key is required when sendgrid is enabled")
	}
	if c.Graph.Enabled && (c.Graph.TenantID == "" || c.Graph.ClientID == "" || c.Graph.ClientSecret == "") {
		return fmt.Errorf("graph.tenant_id, graph.client_id and graph.client_secret are required when graph is enabled")
	}

	if c.Dialogs.MinDescriptionLength >= c.Dialogs.MaxDescriptionLength {
		return fmt.Errorf("dialogs.min_description_length must be smaller than dialogs.max_description_length")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	cfg.Dialogs.OnlineThreshold = DefaultOnlineThreshold
	if cfg.Dialogs.OnlineThresholdRaw != "" {
		d, err := time.ParseDuration(cfg.Dialogs.OnlineThresholdRaw)
		if err != nil {
			return fmt.Errorf("parsing online_threshold %q: %w", cfg.Dialogs.OnlineThresholdRaw, err)
		}
		cfg.Dialogs.OnlineThreshold = d
	}
	return nil
}
