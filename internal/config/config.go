package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default configuration values
const (
	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultChunkSize = 16 * 1024
	DefaultOutputDir = "."

	DefaultPort           = "8080"
	DefaultEnvironment    = "development"
	DefaultAllowedOrigins = "*"
)

// Config holds participant configuration
type Config struct {
	// ServerURL is the relay's websocket endpoint
	ServerURL string

	// DisplayName is announced on join
	DisplayName string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// OutputDir receives incoming files
	OutputDir string

	ChunkSize   int
	MaxFileSize int64
	Encrypt     bool
}

// Options for loading config with CLI flag overrides.
// Zero values mean "not set on the command line".
type Options struct {
	ServerURL   string
	DisplayName string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
	OutputDir   string
	ChunkSize   int
	MaxFileSize int64
	NoEncrypt   bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ServerURL:   pick(opts.ServerURL, "SERVER_URL", DefaultServerURL),
		DisplayName: pick(opts.DisplayName, "CHATTIFY_NAME", os.Getenv("USER")),
		STUNServer:  pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:  pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:    pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:    pick(opts.TURNPass, "TURN_PASSWORD", ""),
		OutputDir:   pick(opts.OutputDir, "CHATTIFY_DIR", DefaultOutputDir),
		ForceRelay:  opts.ForceRelay || envBool("FORCE_RELAY"),
		ChunkSize:   opts.ChunkSize,
		MaxFileSize: opts.MaxFileSize,
		Encrypt:     !opts.NoEncrypt,
	}

	if cfg.ChunkSize == 0 {
		size, err := envInt("CHATTIFY_CHUNK_SIZE", DefaultChunkSize)
		if err != nil {
			return nil, err
		}
		cfg.ChunkSize = size
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}

	if cfg.MaxFileSize < 0 {
		return nil, fmt.Errorf("max file size must not be negative, got %d", cfg.MaxFileSize)
	}

	if !strings.HasPrefix(cfg.ServerURL, "ws://") && !strings.HasPrefix(cfg.ServerURL, "wss://") {
		return nil, fmt.Errorf("server URL must use ws:// or wss://, got %q", cfg.ServerURL)
	}

	if cfg.DisplayName == "" {
		cfg.DisplayName = "Anonymous"
	}

	return cfg, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// RedisConfig configures the optional presence mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ServerConfig holds relay configuration
type ServerConfig struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	Redis          RedisConfig
}

// ServerOptions carries CLI overrides for the relay.
type ServerOptions struct {
	Port      string
	RedisAddr string
}

// LoadServer reads relay configuration: CLI flag > env > default.
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	db, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Port:        pick(opts.Port, "PORT", DefaultPort),
		Environment: pick("", "ENVIRONMENT", DefaultEnvironment),
		Redis: RedisConfig{
			Addr:     pick(opts.RedisAddr, "REDIS_ADDR", ""),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		},
	}

	for _, origin := range strings.Split(pick("", "ALLOWED_ORIGINS", DefaultAllowedOrigins), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", cfg.Port, err)
	}

	return cfg, nil
}

// IsProduction reports whether the relay runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return ":" + c.Port
}

func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func envInt(env string, def int) (int, error) {
	v := os.Getenv(env)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	return n, nil
}

func envBool(env string) bool {
	b, _ := strconv.ParseBool(os.Getenv(env))
	return b
}
