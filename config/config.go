// Package config loads the client configuration from YAML or TOML files.
// Environment variables in the form ${VAR_NAME} are expanded before parsing,
// the document is checked against an embedded JSON schema, and duration
// strings are parsed into time.Duration values.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/AltairaLabs/sydney/credentials"
	"github.com/AltairaLabs/sydney/logger"
	"github.com/AltairaLabs/sydney/protocol"
)

// Transcript backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Default endpoint URLs of the chat service.
const (
	DefaultCreateURL  = "https://edgeservices.bing.com/edgesvc/turing/conversation/create"
	DefaultChatsURL   = "https://www.bing.com/turing/conversation/chats"
	DefaultChatHubURL = "wss://sydney.bing.com/sydney/ChatHub"
	DefaultKBlobURL   = "https://www.bing.com/images/kblob"
	DefaultBlobURL    = "https://www.bing.com/images/blob?bcid="
)

const (
	defaultStyle       = "balanced"
	defaultLocale      = "en-US"
	defaultDialTimeout = 10 * time.Second
	defaultPrefix      = "sydney"
	defaultServiceName = "sydney"
)

// Config is the complete client configuration.
type Config struct {
	Style              string           `yaml:"style" toml:"style"`
	ProtocolGeneration string           `yaml:"protocol_generation" toml:"protocol_generation"`
	Locale             string           `yaml:"locale" toml:"locale"`
	Proxy              string           `yaml:"proxy" toml:"proxy"`
	Credential         CredentialConfig `yaml:"credential" toml:"credential"`
	Endpoints          EndpointsConfig  `yaml:"endpoints" toml:"endpoints"`
	TurnRate           float64          `yaml:"turn_rate" toml:"turn_rate"` // turns per minute, 0 = unlimited
	Transcript         TranscriptConfig `yaml:"transcript" toml:"transcript"`
	Logging            LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics            MetricsConfig    `yaml:"metrics" toml:"metrics"`
	Telemetry          TelemetryConfig  `yaml:"telemetry" toml:"telemetry"`

	DialTimeout    time.Duration `yaml:"-" toml:"-"`
	DialTimeoutRaw string        `yaml:"dial_timeout" toml:"dial_timeout"`

	// dir is the directory of the loaded file, used for relative paths.
	dir string
}

// CredentialConfig selects where the session cookie comes from.
type CredentialConfig struct {
	Cookie     string `yaml:"cookie" toml:"cookie"`
	CookieFile string `yaml:"cookie_file" toml:"cookie_file"`
	CookieEnv  string `yaml:"cookie_env" toml:"cookie_env"`
}

// EndpointsConfig overrides service URLs.
type EndpointsConfig struct {
	Create  string `yaml:"create" toml:"create"`
	Chats   string `yaml:"chats" toml:"chats"`
	ChatHub string `yaml:"chathub" toml:"chathub"`
	KBlob   string `yaml:"kblob" toml:"kblob"`
	Blob    string `yaml:"blob" toml:"blob"`
}

// TranscriptConfig configures the optional transcript store.
type TranscriptConfig struct {
	Backend   string        `yaml:"backend" toml:"backend"`
	RedisAddr string        `yaml:"redis_addr" toml:"redis_addr"`
	Prefix    string        `yaml:"prefix" toml:"prefix"`
	TTL       time.Duration `yaml:"-" toml:"-"`
	TTLRaw    string        `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// TelemetryConfig holds tracing configuration.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name" toml:"service_name"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file and returns a parsed Config. Files ending in
// .toml are decoded as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = FormatTOML
	}

	cfg, err := Parse([]byte(expandEnvVars(string(data))), format)
	if err != nil {
		return nil, err
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Format is the encoding of a configuration document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Parse decodes an already expanded document.
func Parse(data []byte, format Format) (*Config, error) {
	if err := ValidateDocument(data, format); err != nil {
		return nil, err
	}

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.DialTimeoutRaw != "" {
		cfg.DialTimeout, err = time.ParseDuration(cfg.DialTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing dial_timeout %q: %w", cfg.DialTimeoutRaw, err)
		}
	}

	if cfg.Transcript.TTLRaw != "" {
		cfg.Transcript.TTL, err = time.ParseDuration(cfg.Transcript.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing transcript.ttl %q: %w", cfg.Transcript.TTLRaw, err)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Style == "" {
		c.Style = defaultStyle
	}
	if c.ProtocolGeneration == "" {
		c.ProtocolGeneration = string(protocol.GenerationHeader)
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}

	e := &c.Endpoints
	if e.Create == "" {
		e.Create = DefaultCreateURL
	}
	if e.Chats == "" {
		e.Chats = DefaultChatsURL
	}
	if e.ChatHub == "" {
		e.ChatHub = DefaultChatHubURL
	}
	if e.KBlob == "" {
		e.KBlob = DefaultKBlobURL
	}
	if e.Blob == "" {
		e.Blob = DefaultBlobURL
	}

	if c.Transcript.Backend == "" {
		c.Transcript.Backend = BackendNone
	}
	if c.Transcript.Prefix == "" {
		c.Transcript.Prefix = defaultPrefix
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}
}

// Validate checks that all configuration values are usable.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if _, err := protocol.ParseStyle(c.Style); err != nil {
		return err
	}
	if _, err := protocol.ParseGeneration(c.ProtocolGeneration); err != nil {
		return err
	}

	if c.Proxy != "" {
		if _, err := url.Parse(c.Proxy); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
	}

	if c.TurnRate < 0 {
		return fmt.Errorf("turn_rate must not be negative")
	}

	switch c.Transcript.Backend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.Transcript.RedisAddr == "" {
			return fmt.Errorf("transcript.redis_addr is required when transcript.backend is redis")
		}
	default:
		return fmt.Errorf("unknown transcript.backend %q", c.Transcript.Backend)
	}

	return nil
}

// StyleValue returns the parsed conversation style.
func (c *Config) StyleValue() protocol.ConversationStyle {
	s, _ := protocol.ParseStyle(c.Style)
	return s
}

// Generation returns the parsed protocol generation.
func (c *Config) Generation() protocol.Generation {
	g, _ := protocol.ParseGeneration(c.ProtocolGeneration)
	return g
}

// LocaleValue expands the locale tag into the locale, market and region a
// turn carries. "fr-CA" gives market fr-CA and region CA.
func (c *Config) LocaleValue() protocol.Locale {
	region := c.Locale
	if _, after, ok := strings.Cut(c.Locale, "-"); ok {
		region = after
	}
	return protocol.Locale{
		Locale: c.Locale,
		Market: c.Locale,
		Region: strings.ToUpper(region),
	}
}

// ProxyURL returns the parsed proxy URL, or nil when none is configured.
func (c *Config) ProxyURL() *url.URL {
	if c.Proxy == "" {
		return nil
	}
	u, _ := url.Parse(c.Proxy)
	return u
}

// CredentialResolver returns the resolution chain input for the credentials package.
func (c *Config) CredentialResolver() credentials.ResolverConfig {
	return credentials.ResolverConfig{
		Cookie:     c.Credential.Cookie,
		CookieFile: c.Credential.CookieFile,
		CookieEnv:  c.Credential.CookieEnv,
		ConfigDir:  c.dir,
	}
}

// LoggingSpec converts the logging section for logger.Configure.
func (c *Config) LoggingSpec() *logger.LoggingConfigSpec {
	return &logger.LoggingConfigSpec{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}
