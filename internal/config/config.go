package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store driver constants
const (
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: REMINDERD_SCHEDULER__BATCH_SIZE sets
// scheduler.batch_size.
const EnvPrefix = "REMINDERD_"

type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	HTTP      HTTPConfig      `koanf:"http"`
	MCP       MCPConfig       `koanf:"mcp"`
	Notify    NotifyConfig    `koanf:"notify"`
}

type StoreConfig struct {
	Driver   string `koanf:"driver"`   // sqlite, dynamodb or memory
	Path     string `koanf:"path"`     // SQLite database file
	Table    string `koanf:"table"`    // DynamoDB table
	Region   string `koanf:"region"`   // AWS region for DynamoDB and SES
	Endpoint string `koanf:"endpoint"` // DynamoDB endpoint override, e.g. DynamoDB Local
	Timeout  int    `koanf:"timeout"`
}

type SchedulerConfig struct {
	Enabled   bool `koanf:"enabled"`
	Interval  int  `koanf:"interval"` // seconds
	BatchSize int  `koanf:"batch_size"`
}

type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// MCPConfig names the principal the stdio MCP server acts as.
type MCPConfig struct {
	PrincipalID string   `koanf:"principal_id"`
	Roles       []string `koanf:"roles"`
}

type NotifyConfig struct {
	Events   []string       `koanf:"events"` // transitions delivered to people
	Telegram TelegramConfig `koanf:"telegram"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Email    EmailConfig    `koanf:"email"`
}

type TelegramConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	ChatID   string `koanf:"chat_id"`
}

// KafkaConfig publishes every transition, regardless of NotifyConfig.Events.
type KafkaConfig struct {
	Enabled bool   `koanf:"enabled"`
	Brokers string `koanf:"brokers"` // comma separated
	Topic   string `koanf:"topic"`
}

type EmailConfig struct {
	Enabled    bool              `koanf:"enabled"`
	From       string            `koanf:"from"`
	Operator   string            `koanf:"operator"`
	Recipients map[string]string `koanf:"recipients"` // principal id -> address
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"http.allowed_origins": true,
	"mcp.roles":            true,
	"notify.events":        true,
}

func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Store.Path = expandPath(cfg.Store.Path)

	return &cfg, nil
}

func envKey(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")

	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case DriverDynamoDB:
		if c.Store.Table == "" {
			return fmt.Errorf("store.table is required for the dynamodb driver")
		}
		if c.Store.Region == "" {
			return fmt.Errorf("store.region is required for the dynamodb driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %s (supported: %s, %s, %s)",
			c.Store.Driver, DriverSQLite, DriverDynamoDB, DriverMemory)
	}

	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be positive")
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.BatchSize < 0 {
		return fmt.Errorf("scheduler.batch_size must not be negative")
	}

	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram needs bot_token and chat_id")
	}
	if c.Notify.Kafka.Enabled && (strings.TrimSpace(c.Notify.Kafka.Brokers) == "" || c.Notify.Kafka.Topic == "") {
		return fmt.Errorf("notify.kafka needs brokers and topic")
	}
	if c.Notify.Email.Enabled && c.Notify.Email.From == "" {
		return fmt.Errorf("notify.email needs a from address")
	}

	return nil
}

// StoreTimeout is the per-operation store timeout.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Store.Timeout) * time.Second
}

// SchedulerInterval is the sweep interval.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.Interval) * time.Second
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
