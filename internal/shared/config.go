package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables overlaid onto provider credentials by [Config.ApplyEnv].
const (
	EnvGeminiAPIKey    = "TRACKX_GEMINI_API_KEY"
	EnvOpenAIAPIKey    = "TRACKX_OPENAI_API_KEY"
	EnvJamendoClientID = "TRACKX_JAMENDO_CLIENT_ID"
	EnvDatabasePath    = "TRACKX_DATABASE_PATH"
)

// Known provider names.
const (
	ProviderITunes       = "itunes"
	ProviderJamendo      = "jamendo"
	ProviderYouTubeMusic = "youtubemusic"
	ProviderGemini       = "gemini"
	ProviderOpenAI       = "openai"
)

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Client    ClientConfig    `toml:"client" yaml:"client"`
	Aggregate AggregateConfig `toml:"aggregate" yaml:"aggregate"`
	Providers ProvidersConfig `toml:"providers" yaml:"providers"`
	Database  DatabaseConfig  `toml:"database" yaml:"database"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

// ClientConfig contains request client throttling, retry and timeout settings.
type ClientConfig struct {
	RateLimit   int           `toml:"rate_limit" yaml:"rate_limit"`
	RatePeriod  time.Duration `toml:"rate_period" yaml:"rate_period"`
	MaxAttempts int           `toml:"max_attempts" yaml:"max_attempts"`
	RetryDelay  time.Duration `toml:"retry_delay" yaml:"retry_delay"`
	Timeout     time.Duration `toml:"timeout" yaml:"timeout"`
	ReadTimeout time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	UserAgent   string        `toml:"user_agent" yaml:"user_agent"`
}

// AggregateConfig selects providers and tunes the resolution pipeline.
type AggregateConfig struct {
	Suggester         string `toml:"suggester" yaml:"suggester"`
	Catalog           string `toml:"catalog" yaml:"catalog"`
	Country           string `toml:"country" yaml:"country"`
	Language          string `toml:"language" yaml:"language"`
	PreferPreview     bool   `toml:"prefer_preview" yaml:"prefer_preview"`
	SearchConcurrency int    `toml:"search_concurrency" yaml:"search_concurrency"`
	LookupChunkSize   int    `toml:"lookup_chunk_size" yaml:"lookup_chunk_size"`
	MaxCandidates     int    `toml:"max_candidates" yaml:"max_candidates"`
}

// ProvidersConfig contains per-provider endpoints and credentials.
type ProvidersConfig struct {
	ITunes       ITunesConfig       `toml:"itunes" yaml:"itunes"`
	Jamendo      JamendoConfig      `toml:"jamendo" yaml:"jamendo"`
	YouTubeMusic YouTubeMusicConfig `toml:"youtubemusic" yaml:"youtubemusic"`
	Gemini       GeminiConfig       `toml:"gemini" yaml:"gemini"`
	OpenAI       OpenAIConfig       `toml:"openai" yaml:"openai"`
}

// ITunesConfig contains iTunes Search API settings.
type ITunesConfig struct {
	BaseURL string `toml:"base_url" yaml:"base_url"`
	Entity  string `toml:"entity" yaml:"entity"`
}

// JamendoConfig contains Jamendo API settings.
//
// Lang is sent only when set. PreferDownloadable restricts matches to tracks
// Jamendo allows downloading.
type JamendoConfig struct {
	BaseURL            string `toml:"base_url" yaml:"base_url"`
	ClientID           string `toml:"client_id" yaml:"client_id"`
	Lang               string `toml:"lang" yaml:"lang"`
	PreferDownloadable bool   `toml:"prefer_downloadable" yaml:"prefer_downloadable"`
}

// YouTubeMusicConfig points at the ytmusicapi HTTP proxy.
//
// AuthFile is forwarded in the X-Auth-File header when set.
type YouTubeMusicConfig struct {
	BaseURL  string `toml:"base_url" yaml:"base_url"`
	AuthFile string `toml:"auth_file" yaml:"auth_file"`
}

// GeminiConfig contains Gemini generateContent settings.
type GeminiConfig struct {
	BaseURL string `toml:"base_url" yaml:"base_url"`
	APIKey  string `toml:"api_key" yaml:"api_key"`
	Model   string `toml:"model" yaml:"model"`
}

// OpenAIConfig contains OpenAI chat completion settings.
type OpenAIConfig struct {
	BaseURL string `toml:"base_url" yaml:"base_url"`
	APIKey  string `toml:"api_key" yaml:"api_key"`
	Model   string `toml:"model" yaml:"model"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host" yaml:"host"`
	Port int    `toml:"port" yaml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// LoadConfig reads and parses a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
// Values absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

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
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overlays credentials and paths from the environment onto the config.
//
// Only non-empty variables override file values.
func (c *Config) ApplyEnv() {
	overlay := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	overlay(&c.Providers.Gemini.APIKey, EnvGeminiAPIKey)
	overlay(&c.Providers.OpenAI.APIKey, EnvOpenAIAPIKey)
	overlay(&c.Providers.Jamendo.ClientID, EnvJamendoClientID)
	overlay(&c.Database.Path, EnvDatabasePath)
}

// Validate checks limits and provider names.
func (c *Config) Validate() error {
	switch {
	case c.Client.RateLimit <= 0:
		return fmt.Errorf("%w: client.rate_limit must be positive", ErrInvalidConfig)
	case c.Client.RatePeriod <= 0:
		return fmt.Errorf("%w: client.rate_period must be positive", ErrInvalidConfig)
	case c.Client.MaxAttempts <= 0:
		return fmt.Errorf("%w: client.max_attempts must be positive", ErrInvalidConfig)
	case c.Client.RetryDelay < 0:
		return fmt.Errorf("%w: client.retry_delay must not be negative", ErrInvalidConfig)
	case c.Aggregate.SearchConcurrency <= 0:
		return fmt.Errorf("%w: aggregate.search_concurrency must be positive", ErrInvalidConfig)
	case c.Aggregate.LookupChunkSize <= 0:
		return fmt.Errorf("%w: aggregate.lookup_chunk_size must be positive", ErrInvalidConfig)
	case c.Aggregate.MaxCandidates <= 0:
		return fmt.Errorf("%w: aggregate.max_candidates must be positive", ErrInvalidConfig)
	}

	switch c.Aggregate.Suggester {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown suggester %q", ErrInvalidConfig, c.Aggregate.Suggester)
	}

	switch c.Aggregate.Catalog {
	case ProviderITunes, ProviderJamendo, ProviderYouTubeMusic:
	default:
		return fmt.Errorf("%w: unknown catalog %q", ErrInvalidConfig, c.Aggregate.Catalog)
	}

	return nil
}
