package config

import (
	"os"
	"strconv"
	"time"
)

// ServerConfig holds settings for the relay server runtime.
type ServerConfig struct {
	ListenAddr    string
	DefaultRoom   string
	HistoryLimit  int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxFrameBytes int
	SendBuffer    int
}

// ClientConfig holds settings for the terminal client.
type ClientConfig struct {
	ServerAddr    string
	Username      string
	Room          string
	CommandPrefix rune
}

// LoadServerConfig builds the server configuration from environment variables with sensible defaults.
// A read timeout of zero disables idle disconnects: a connection is live until its socket closes.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:    envOrDefault("RELAY_LISTEN_ADDR", ":8000"),
		DefaultRoom:   envOrDefault("RELAY_DEFAULT_ROOM", "general"),
		HistoryLimit:  envInt("RELAY_HISTORY_LIMIT", 50),
		ReadTimeout:   envDuration("RELAY_READ_TIMEOUT", 0),
		WriteTimeout:  envDuration("RELAY_WRITE_TIMEOUT", 15*time.Second),
		MaxFrameBytes: envInt("RELAY_MAX_FRAME_BYTES", 1<<20),
		SendBuffer:    envInt("RELAY_SEND_BUFFER", 64),
	}
}

// LoadClientConfig builds the client configuration from environment variables.
func LoadClientConfig() ClientConfig {
	prefix := envOrDefault("RELAY_COMMAND_PREFIX", "/")
	runes := []rune(prefix)
	commandPrefix := '/'
	if len(runes) > 0 {
		commandPrefix = runes[0]
	}
	return ClientConfig{
		ServerAddr:    envOrDefault("RELAY_SERVER_ADDR", "localhost:8000"),
		Username:      envOrDefault("RELAY_USERNAME", ""),
		Room:          envOrDefault("RELAY_ROOM", ""),
		CommandPrefix: commandPrefix,
	}
}

func envOrDefault(key, value string) string {
	if env, ok := os.LookupEnv(key); ok {
		return env
	}
	return value
}

func envDuration(key string, def time.Duration) time.Duration {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(env); err == nil {
			return parsed
		}
	}
	return def
}

func envInt(key string, def int) int {
	if env, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(env); err == nil {
			return parsed
		}
	}
	return def
}
