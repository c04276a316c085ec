// Package config loads droprelay configuration from file, environment,
// and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Forwarding ForwardingConfig `mapstructure:"forwarding"`
	Lookup     LookupConfig     `mapstructure:"lookup"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the admin API server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig selects the rule/watermark store backend.
type DatabaseConfig struct {
	// Type is "postgres" or "file".
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	// StateDir holds the rules and watermark files for the file backend.
	StateDir string `mapstructure:"state_dir"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds the pgx/migrate connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// GatewayConfig holds the chat-gateway (NATS JetStream) settings.
type GatewayConfig struct {
	URL              string        `mapstructure:"url"`
	Stream           string        `mapstructure:"stream"`
	SubjectPrefix    string        `mapstructure:"subject_prefix"`
	MonitoredChannel string        `mapstructure:"monitored_channel"`
	BotUser          string        `mapstructure:"bot_user"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
}

// ForwardingConfig holds delivery policy.
type ForwardingConfig struct {
	SubjectPrefix string `mapstructure:"subject_prefix"`
	// SendDelay is the fixed courtesy delay before each forwarding
	// attempt.
	SendDelay       time.Duration `mapstructure:"send_delay"`
	DeleteOnForward bool          `mapstructure:"delete_on_forward"`
}

// LookupConfig holds the fuzzy record lookup settings.
type LookupConfig struct {
	RecordSourceURL string        `mapstructure:"record_source_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	// CacheBackend is "memory" or "redis".
	CacheBackend string `mapstructure:"cache_backend"`
}

type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AuthConfig holds the admin API token settings. An empty secret disables
// authentication.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("database.type", "file")
	v.SetDefault("database.state_dir", "./data")
	v.SetDefault("database.postgres.sslmode", "require")
	v.SetDefault("gateway.url", "nats://localhost:4222")
	v.SetDefault("gateway.stream", "CHAT_EVENTS")
	v.SetDefault("gateway.subject_prefix", "chat.events.")
	v.SetDefault("gateway.connect_timeout", "5s")
	v.SetDefault("forwarding.subject_prefix", "chat.post.")
	v.SetDefault("forwarding.send_delay", "1s")
	v.SetDefault("forwarding.delete_on_forward", false)
	v.SetDefault("lookup.timeout", "10s")
	v.SetDefault("lookup.cache_ttl", "10m")
	v.SetDefault("lookup.cache_backend", "memory")
	v.SetDefault("redis.key_prefix", "droprelay:lookup:")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/droprelay")
	}

	// Environment variables override (DROPRELAY_GATEWAY_URL, etc.)
	v.SetEnvPrefix("DROPRELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
