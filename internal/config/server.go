package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Transport modes.
const (
	TransportStdio     = "stdio"
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// EnvPrefix prefixes environment overrides, e.g. BASIC_LSP_LOG_LEVEL.
const EnvPrefix = "BASIC_LSP"

type ServerConfig struct {
	LogLevel       string          `mapstructure:"log_level"`
	LogFile        string          `mapstructure:"log_file"`
	MetricsEnabled bool            `mapstructure:"metrics_enabled"`
	OTLPEndpoint   string          `mapstructure:"otlp_endpoint"`
	OTLPInsecure   bool            `mapstructure:"otlp_insecure"`
	Transport      TransportConfig `mapstructure:"transport"`
}

// TransportConfig holds the protocol channel configuration.
type TransportConfig struct {
	// One of stdio, tcp, websocket.
	Mode string `mapstructure:"mode"`
	// Listen address for tcp and websocket.
	Address string `mapstructure:"address"`
	// Maximum concurrent sessions for tcp and websocket.
	MaxSessions int `mapstructure:"max_sessions"`
	// Size of the buffered reader in front of each connection.
	ReadBuffer int `mapstructure:"read_buffer"`
	// Largest Content-Length a peer may declare.
	MaxMessageBytes int `mapstructure:"max_message_bytes"`
}

// ValidationError occurs when a configuration value is out of range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration (field: %s): %s", e.Field, e.Message)
}

func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "/tmp/lsp-server.log")
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("otlp_endpoint", "127.0.0.1:4317")
	v.SetDefault("otlp_insecure", true)

	// Transport defaults
	v.SetDefault("transport.mode", TransportStdio)
	v.SetDefault("transport.address", "127.0.0.1:7998")
	v.SetDefault("transport.max_sessions", 16)
	v.SetDefault("transport.read_buffer", 64*1024)
	v.SetDefault("transport.max_message_bytes", 16<<20)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field values.
func (c *ServerConfig) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return &ValidationError{Field: "log_level", Message: err.Error()}
	}

	if c.LogFile == "" {
		return &ValidationError{Field: "log_file", Message: "log_file is required"}
	}
	if c.LogFile == "stdout" {
		return &ValidationError{Field: "log_file", Message: "stdout carries protocol traffic"}
	}

	if c.MetricsEnabled && c.OTLPEndpoint == "" {
		return &ValidationError{Field: "otlp_endpoint", Message: "required when metrics_enabled is set"}
	}

	switch c.Transport.Mode {
	case TransportStdio, TransportTCP, TransportWebSocket:
	default:
		return &ValidationError{
			Field:   "transport.mode",
			Message: fmt.Sprintf("unsupported mode: %s (must be one of: stdio, tcp, websocket)", c.Transport.Mode),
		}
	}

	if c.Transport.Mode != TransportStdio && c.Transport.Address == "" {
		return &ValidationError{Field: "transport.address", Message: "address is required for network transports"}
	}

	if c.Transport.MaxSessions < 1 {
		return &ValidationError{Field: "transport.max_sessions", Message: "must be at least 1"}
	}

	if c.Transport.ReadBuffer < 1 {
		return &ValidationError{Field: "transport.read_buffer", Message: "must be positive"}
	}

	if c.Transport.MaxMessageBytes < 1 {
		return &ValidationError{Field: "transport.max_message_bytes", Message: "must be positive"}
	}

	return nil
}
