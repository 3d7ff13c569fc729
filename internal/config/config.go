package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port string `yaml:"port"`
	Dev  bool   `yaml:"dev"`
}

type DatabaseConfig struct {
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"sslmode"`
	MaxConns   int    `yaml:"max_conns"`
	Migrations string `yaml:"migrations"`
}

func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", d.MaxConns)
	}
	return dsn
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LedgerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	TxTimeout    time.Duration `yaml:"tx_timeout"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	LockTimeout  time.Duration `yaml:"lock_timeout"`
}

type KafkaConfig struct {
	Brokers           string        `yaml:"brokers"`
	ClientID          string        `yaml:"client_id"`
	GroupID           string        `yaml:"group_id"`
	RetryGroupID      string        `yaml:"retry_group_id"`
	InstanceID        string        `yaml:"instance_id"`
	TopicPartitions   int           `yaml:"topic_partitions"`
	RetryPartitions   int           `yaml:"retry_partitions"`
	ReplicationFactor int           `yaml:"replication_factor"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	MaxRetryAttempts  int           `yaml:"max_retry_attempts"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
	ServiceName    string `yaml:"service_name"`
}

type Config struct {
	App                AppConfig      `yaml:"app"`
	Database           DatabaseConfig `yaml:"database"`
	Log                LogConfig      `yaml:"log"`
	Auth               AuthConfig     `yaml:"auth"`
	Redis              RedisConfig    `yaml:"redis"`
	Ledger             LedgerConfig   `yaml:"ledger"`
	Kafka              KafkaConfig    `yaml:"kafka"`
	Tracing            TracingConfig  `yaml:"tracing"`
	EventDrivenEnabled bool           `yaml:"event_driven_enabled"`
}

// Load reads the optional YAML file named by CONFIG_FILE (config.yaml by
// default) and lets environment variables override any value from it.
func Load() (*Config, error) {
	cfg := defaults()

	path := getEnv("CONFIG_FILE", "config.yaml")
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Kafka.InstanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		cfg.Kafka.InstanceID = hostname
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{Port: "8080"},
		Database: DatabaseConfig{
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Password:   "postgres",
			Name:       "dealdb",
			SSLMode:    "disable",
			Migrations: "db/migrations",
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  10 * time.Minute,
		},
		Ledger: LedgerConfig{
			MaxAttempts:  3,
			TxTimeout:    5 * time.Second,
			RetryBackoff: 25 * time.Millisecond,
			LockTimeout:  2 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:           "kafka:9092",
			ClientID:          "claim-service",
			GroupID:           "claim-consumers",
			RetryGroupID:      "claim-retry",
			TopicPartitions:   3,
			RetryPartitions:   1,
			ReplicationFactor: 1,
			RetryDelay:        time.Second,
			MaxRetryAttempts:  5,
			RequestTimeout:    3 * time.Second,
		},
		Tracing: TracingConfig{
			JaegerEndpoint: "http://localhost:14268/api/traces",
			ServiceName:    "claim-service",
		},
	}
}

func applyEnv(c *Config) {
	c.App.Port = getEnv("APP_PORT", c.App.Port)
	c.App.Dev = getBool("APP_DEV", c.App.Dev)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxConns = getInt("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.Migrations = getEnv("DB_MIGRATIONS", c.Database.Migrations)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)

	c.Redis.Enabled = getBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getInt("REDIS_DB", c.Redis.DB)
	c.Redis.TTL = getDuration("REDIS_TTL", c.Redis.TTL)

	c.Ledger.MaxAttempts = getInt("LEDGER_MAX_ATTEMPTS", c.Ledger.MaxAttempts)
	c.Ledger.TxTimeout = getDuration("LEDGER_TX_TIMEOUT", c.Ledger.TxTimeout)
	c.Ledger.RetryBackoff = getDuration("LEDGER_RETRY_BACKOFF", c.Ledger.RetryBackoff)
	c.Ledger.LockTimeout = getDuration("LEDGER_LOCK_TIMEOUT", c.Ledger.LockTimeout)

	c.Kafka.Brokers = getEnv("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.ClientID = getEnv("KAFKA_CLIENT_ID", c.Kafka.ClientID)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)
	c.Kafka.RetryGroupID = getEnv("KAFKA_RETRY_GROUP_ID", c.Kafka.RetryGroupID)
	c.Kafka.InstanceID = getEnv("KAFKA_INSTANCE_ID", c.Kafka.InstanceID)
	c.Kafka.TopicPartitions = getInt("KAFKA_TOPIC_PARTITIONS", c.Kafka.TopicPartitions)
	c.Kafka.RetryPartitions = getInt("KAFKA_RETRY_PARTITIONS", c.Kafka.RetryPartitions)
	c.Kafka.ReplicationFactor = getInt("KAFKA_REPLICATION_FACTOR", c.Kafka.ReplicationFactor)
	c.Kafka.RetryDelay = getDuration("KAFKA_RETRY_DELAY", c.Kafka.RetryDelay)
	c.Kafka.MaxRetryAttempts = getInt("KAFKA_MAX_RETRY_ATTEMPTS", c.Kafka.MaxRetryAttempts)
	c.Kafka.RequestTimeout = getDuration("KAFKA_REQUEST_TIMEOUT", c.Kafka.RequestTimeout)

	c.Tracing.Enabled = getBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", c.Tracing.JaegerEndpoint)
	c.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", c.Tracing.ServiceName)

	c.EventDrivenEnabled = getBool("EVENT_DRIVEN_ENABLED", c.EventDrivenEnabled)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(os.Getenv(key))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
