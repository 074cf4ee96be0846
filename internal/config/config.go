package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// globalConfig stores the configuration loaded with command-line overrides
// This allows other packages to access the same configuration that was loaded by the server
var (
	globalConfig *Config
	configMutex  sync.Mutex
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoadOptions holds command-line override options
type LoadOptions struct {
	Host       string
	Port       string
	LogLevel   string
	ConfigFile string
	Workers    int
	Codebook   string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" env:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" env:"SERVER_IDLE_TIMEOUT" default:"120s"`
}

// DecoderConfig holds payload decoding configuration
type DecoderConfig struct {
	Workers         int    `yaml:"workers" env:"DECODER_WORKERS" default:"4"`
	CodebookFile    string `yaml:"codebookFile" env:"DECODER_CODEBOOK" default:""`
	MaxPayloadBytes int64  `yaml:"maxPayloadBytes" env:"DECODER_MAX_PAYLOAD" default:"67108864"`
	MaxPixels       int64  `yaml:"maxPixels" env:"DECODER_MAX_PIXELS" default:"134217728"`
	ReadBufferSize  int    `yaml:"readBufferSize" env:"WS_READ_BUFFER_SIZE" default:"65536"`
	WriteBufferSize int    `yaml:"writeBufferSize" env:"WS_WRITE_BUFFER_SIZE" default:"65536"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" default:""`
	MaxConnections int      `yaml:"maxConnections" env:"MAX_CONNECTIONS" default:"100"`
	EnableTLS      bool     `yaml:"enableTLS" env:"ENABLE_TLS" default:"false"`
	TLSCertFile    string   `yaml:"tlsCertFile" env:"TLS_CERT_FILE" default:""`
	TLSKeyFile     string   `yaml:"tlsKeyFile" env:"TLS_KEY_FILE" default:""`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Decoder: DecoderConfig{
			Workers:         4,
			MaxPayloadBytes: 64 << 20,
			MaxPixels:       1 << 27,
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{},
			MaxConnections: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	return LoadWithOverrides(LoadOptions{})
}

// LoadWithOverrides loads configuration with command-line overrides.
// Values are layered defaults, then the YAML file, then the environment,
// then opts.
func LoadWithOverrides(opts LoadOptions) (*Config, error) {
	config := Default()

	file := getOverrideOrEnv(opts.ConfigFile, "CONFIG_FILE", "")
	if file != "" {
		if err := config.loadFile(file); err != nil {
			return nil, err
		}
	}

	// Server config
	config.Server.Host = getOverrideOrEnv(opts.Host, "SERVER_HOST", config.Server.Host)
	config.Server.Port = getOverrideOrEnv(opts.Port, "SERVER_PORT", config.Server.Port)
	config.Server.ReadTimeout = getDurationWithDefault("SERVER_READ_TIMEOUT", config.Server.ReadTimeout)
	config.Server.WriteTimeout = getDurationWithDefault("SERVER_WRITE_TIMEOUT", config.Server.WriteTimeout)
	config.Server.IdleTimeout = getDurationWithDefault("SERVER_IDLE_TIMEOUT", config.Server.IdleTimeout)

	// Decoder config
	config.Decoder.Workers = getIntWithDefault("DECODER_WORKERS", config.Decoder.Workers)
	if opts.Workers > 0 {
		config.Decoder.Workers = opts.Workers
	}
	config.Decoder.CodebookFile = getOverrideOrEnv(opts.Codebook, "DECODER_CODEBOOK", config.Decoder.CodebookFile)
	config.Decoder.MaxPayloadBytes = int64(getIntWithDefault("DECODER_MAX_PAYLOAD", int(config.Decoder.MaxPayloadBytes)))
	config.Decoder.MaxPixels = int64(getIntWithDefault("DECODER_MAX_PIXELS", int(config.Decoder.MaxPixels)))
	config.Decoder.ReadBufferSize = getIntWithDefault("WS_READ_BUFFER_SIZE", config.Decoder.ReadBufferSize)
	config.Decoder.WriteBufferSize = getIntWithDefault("WS_WRITE_BUFFER_SIZE", config.Decoder.WriteBufferSize)

	// Security config
	config.Security.AllowedOrigins = getStringSliceWithDefault("ALLOWED_ORIGINS", config.Security.AllowedOrigins)
	config.Security.MaxConnections = getIntWithDefault("MAX_CONNECTIONS", config.Security.MaxConnections)
	config.Security.EnableTLS = getBoolWithDefault("ENABLE_TLS", config.Security.EnableTLS)
	config.Security.TLSCertFile = getEnvWithDefault("TLS_CERT_FILE", config.Security.TLSCertFile)
	config.Security.TLSKeyFile = getEnvWithDefault("TLS_KEY_FILE", config.Security.TLSKeyFile)

	// Logging config
	config.Logging.Level = getOverrideOrEnv(opts.LogLevel, "LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnvWithDefault("LOG_FORMAT", config.Logging.Format)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Store the configuration globally so other packages can access it
	configMutex.Lock()
	globalConfig = config
	configMutex.Unlock()

	return config, nil
}

// loadFile overlays the YAML document at path onto c. Unknown keys are
// rejected.
func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// GetGlobalConfig returns the globally stored configuration
// This should be used by packages that need access to the configuration
// loaded by the server with command-line overrides
func GetGlobalConfig() *Config {
	configMutex.Lock()
	defer configMutex.Unlock()
	return globalConfig
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate decoder config
	if c.Decoder.Workers <= 0 {
		return fmt.Errorf("decoder workers must be positive")
	}

	if c.Decoder.MaxPayloadBytes <= 0 {
		return fmt.Errorf("max payload size must be positive")
	}

	if c.Decoder.MaxPixels <= 0 {
		return fmt.Errorf("max image pixels must be positive")
	}

	if c.Decoder.ReadBufferSize <= 0 || c.Decoder.WriteBufferSize <= 0 {
		return fmt.Errorf("websocket buffer sizes must be positive")
	}

	if c.Decoder.CodebookFile != "" {
		if _, err := os.Stat(c.Decoder.CodebookFile); os.IsNotExist(err) {
			return fmt.Errorf("codebook file does not exist: %s", c.Decoder.CodebookFile)
		}
	}

	// Validate security config
	if c.Security.EnableTLS {
		if c.Security.TLSCertFile == "" || c.Security.TLSKeyFile == "" {
			return fmt.Errorf("TLS certificate and key files must be specified when TLS is enabled")
		}

		if _, err := os.Stat(c.Security.TLSCertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file does not exist: %s", c.Security.TLSCertFile)
		}

		if _, err := os.Stat(c.Security.TLSKeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file does not exist: %s", c.Security.TLSKeyFile)
		}
	}

	if c.Security.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}

	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceWithDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return splitString(value, ",")
	}
	return defaultValue
}

// getOverrideOrEnv returns command-line override value, env value, or default
func getOverrideOrEnv(override, envKey, defaultValue string) string {
	if override != "" {
		return override
	}
	return getEnvWithDefault(envKey, defaultValue)
}

func splitString(s, sep string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
