package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from an optional YAML
// file with environment variables taking precedence over both the file and
// the built-in defaults.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Poll    PollConfig    `yaml:"poll"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string `yaml:"port"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`
}

// GatewayConfig holds WebSocket transport settings.
type GatewayConfig struct {
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	PingIntervalSec int   `yaml:"ping_interval_sec"`
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
	SendBufferSize  int   `yaml:"send_buffer_size"`
}

// PollConfig holds session coordinator settings.
type PollConfig struct {
	TickSeconds  int `yaml:"tick_seconds"`
	CommandQueue int `yaml:"command_queue"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               "8080",
			CORSAllowedOrigins: "*",
		},
		Gateway: GatewayConfig{
			ReadTimeoutSec:  60,
			WriteTimeoutSec: 10,
			PingIntervalSec: 30,
			MaxMessageBytes: 4096,
			SendBufferSize:  256,
		},
		Poll: PollConfig{
			TickSeconds:  1,
			CommandQueue: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.CORSAllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.Server.CORSAllowedOrigins)
	cfg.Gateway.ReadTimeoutSec = getEnvAsInt("WS_READ_TIMEOUT_SEC", cfg.Gateway.ReadTimeoutSec)
	cfg.Gateway.WriteTimeoutSec = getEnvAsInt("WS_WRITE_TIMEOUT_SEC", cfg.Gateway.WriteTimeoutSec)
	cfg.Gateway.PingIntervalSec = getEnvAsInt("WS_PING_INTERVAL_SEC", cfg.Gateway.PingIntervalSec)
	cfg.Poll.TickSeconds = getEnvAsInt("POLL_TICK_SEC", cfg.Poll.TickSeconds)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
