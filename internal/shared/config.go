package shared

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	MinTimeoutMinutes     = 5
	MaxTimeoutMinutes     = 60
	DefaultTimeoutMinutes = 30
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Remote   RemoteConfig   `toml:"remote"`
	Service  ServiceConfig  `toml:"service"`
	Session  SessionConfig  `toml:"session"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// RemoteConfig contains the SSH credentials the transfer service uses to reach the media host.
//
// Every field is credential-relevant: saving a change while connected forces a reconnect.
type RemoteConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	KeyPath  string `toml:"key_path"`
	Password string `toml:"password"`
}

// ServiceConfig contains the endpoints of the transfer service.
type ServiceConfig struct {
	BaseURL               string `toml:"base_url"`
	PushURL               string `toml:"push_url"`
	APIToken              string `toml:"api_token"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// SessionConfig contains idle-timeout policy and connection settings.
type SessionConfig struct {
	TimeoutMinutes         int  `toml:"timeout_minutes"`
	AutoConnect            bool `toml:"auto_connect"`
	DialTimeoutSeconds     int  `toml:"dial_timeout_seconds"`
	RefreshIntervalSeconds int  `toml:"refresh_interval_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the local session surface.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values from a .env file next to the working directory (and the process environment) override the file, see [ApplyEnv].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	ApplyEnv(config)
	config.Session.TimeoutMinutes = ClampTimeout(config.Session.TimeoutMinutes)

	return config, nil
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
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides credential and endpoint settings with MEDIASYNC_* variables.
//
// A .env file in the working directory is loaded first; variables already present in the environment win.
func ApplyEnv(c *Config) {
	_ = godotenv.Load()

	overrides := map[string]*string{
		"MEDIASYNC_REMOTE_HOST":     &c.Remote.Host,
		"MEDIASYNC_REMOTE_USER":     &c.Remote.User,
		"MEDIASYNC_REMOTE_KEY_PATH": &c.Remote.KeyPath,
		"MEDIASYNC_REMOTE_PASSWORD": &c.Remote.Password,
		"MEDIASYNC_BASE_URL":        &c.Service.BaseURL,
		"MEDIASYNC_PUSH_URL":        &c.Service.PushURL,
		"MEDIASYNC_API_TOKEN":       &c.Service.APIToken,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}

	if v, ok := os.LookupEnv("MEDIASYNC_TIMEOUT_MINUTES"); ok {
		if minutes, err := strconv.Atoi(v); err == nil {
			c.Session.TimeoutMinutes = minutes
		}
	}
}

// ClampTimeout bounds an idle timeout to [MinTimeoutMinutes, MaxTimeoutMinutes].
//
// Zero means "unset" and yields [DefaultTimeoutMinutes].
func ClampTimeout(minutes int) int {
	switch {
	case minutes == 0:
		return DefaultTimeoutMinutes
	case minutes < MinTimeoutMinutes:
		return MinTimeoutMinutes
	case minutes > MaxTimeoutMinutes:
		return MaxTimeoutMinutes
	default:
		return minutes
	}
}

// Validate checks that the settings required to reach the transfer service are present.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("%w: service.base_url is required", ErrInvalidConfig)
	}
	if c.Service.PushURL == "" {
		return fmt.Errorf("%w: service.push_url is required", ErrInvalidConfig)
	}
	if c.Remote.Host == "" || c.Remote.User == "" {
		return fmt.Errorf("%w: remote.host and remote.user are required", ErrMissingCredentials)
	}
	return nil
}

// CredentialsFingerprint hashes every credential-relevant setting.
//
// Two configs with equal fingerprints can share a push connection.
func (c *Config) CredentialsFingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s\x00%s\x00%s\x00%s",
		c.Remote.Host, c.Remote.Port, c.Remote.User, c.Remote.KeyPath, c.Remote.Password,
		c.Service.PushURL, c.Service.APIToken)
	return hex.EncodeToString(h.Sum(nil))
}

// RequestTimeout returns the HTTP request timeout for the transfer service.
func (c *Config) RequestTimeout() time.Duration {
	if c.Service.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Service.RequestTimeoutSeconds) * time.Second
}

// DialTimeout bounds how long a push connection attempt may stay in Connecting.
func (c *Config) DialTimeout() time.Duration {
	if c.Session.DialTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Session.DialTimeoutSeconds) * time.Second
}

// RefreshInterval is the period of the transfer listing pull.
func (c *Config) RefreshInterval() time.Duration {
	if c.Session.RefreshIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Session.RefreshIntervalSeconds) * time.Second
}
