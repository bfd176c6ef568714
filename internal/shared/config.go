package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Endpoints and credentials live here; runtime tunables (sample size, wait
// interval, path patterns) live in the store's settings bag.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Library  LibraryConfig  `toml:"library"`
	Provider ProviderConfig `toml:"provider"`
	Slack    SlackConfig    `toml:"slack"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// StoreConfig contains configuration/metadata store connection settings.
type StoreConfig struct {
	// Backend selects "rest" (remote record store) or "sqlite" (local mirror).
	Backend        string `toml:"backend"`
	URL            string `toml:"url"`
	AuthCollection string `toml:"auth_collection"`
	AuthUser       string `toml:"auth_user"`
	AuthPassword   string `toml:"auth_password"`
}

// LibraryConfig contains media-server (local catalog) settings.
type LibraryConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// ProviderConfig contains streaming-catalog credentials and endpoints.
type ProviderConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	ProxyURL     string `toml:"proxy_url"`
	HeadersPath  string `toml:"headers_path"`
}

// SlackConfig contains notification side-channel tokens and channels.
type SlackConfig struct {
	BotToken        string `toml:"bot_token"` // xoxb-
	AppToken        string `toml:"app_token"` // xapp-, Socket Mode only
	InfoChannel     string `toml:"info_channel"`
	MismatchChannel string `toml:"mismatch_channel"`
	AuditChannel    string `toml:"audit_channel"`
}

// Channel returns the info channel, falling back to the default.
func (s SlackConfig) Channel() string {
	if s.InfoChannel != "" {
		return s.InfoChannel
	}
	return "#playsync"
}

// MismatchTarget returns the mismatch-report channel, falling back to the info channel.
func (s SlackConfig) MismatchTarget() string {
	if s.MismatchChannel != "" {
		return s.MismatchChannel
	}
	return s.Channel()
}

// AuditTarget returns the substitution audit channel, falling back to the info channel.
func (s SlackConfig) AuditTarget() string {
	if s.AuditChannel != "" {
		return s.AuditChannel
	}
	return s.Channel()
}

// DatabaseConfig contains local sqlite settings for the mirror store backend.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
