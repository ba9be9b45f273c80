package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Env        string           `mapstructure:"env"` // development, staging, production
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Consumer   ConsumerConfig   `mapstructure:"consumer"`
	DeadLetter DeadLetterConfig `mapstructure:"dead_letter"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Log        LogConfig        `mapstructure:"log"`
}

// IsProduction reports whether the service runs with the production environment tag.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	ClientID         string   `mapstructure:"client_id"`
	GroupID          string   `mapstructure:"group_id"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
	WalletTopic      string   `mapstructure:"wallet_topic"`
	DeadLetterTopic  string   `mapstructure:"dead_letter_topic"`
	Workers          int      `mapstructure:"workers"` // readers in the consumer group
}

// ConsumerConfig tunes retry and reconnect behaviour of the event consumer.
type ConsumerConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

type DeadLetterConfig struct {
	Driver      string `mapstructure:"driver"` // kafka, sqs
	SQSQueueURL string `mapstructure:"sqs_queue_url"`
	AWSRegion   string `mapstructure:"aws_region"`
}

type LedgerConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	Retention     time.Duration `mapstructure:"retention"` // 0 keeps applied transactions forever
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type WalletConfig struct {
	Currency         string `mapstructure:"currency"`
	CodeLength       int    `mapstructure:"code_length"`
	CodeMaxAttempts  int    `mapstructure:"code_max_attempts"`
	CodeWidenBy      int    `mapstructure:"code_widen_by"`
	CodeMaxWidenings int    `mapstructure:"code_max_widenings"`
	SearchLimit      int    `mapstructure:"search_limit"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"` // empty disables bearer auth
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLT_.
// Nested keys use underscore: WLT_DATABASE_HOST, WLT_KAFKA_GROUP_ID, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("env", "development")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallets")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "wallet-service")
	v.SetDefault("kafka.group_id", "wallet-service")
	v.SetDefault("kafka.transaction_topic", "transactions")
	v.SetDefault("kafka.wallet_topic", "wallets")
	v.SetDefault("kafka.dead_letter_topic", "transactions.dlq")
	v.SetDefault("kafka.workers", 1)
	v.SetDefault("consumer.max_attempts", 5)
	v.SetDefault("consumer.initial_backoff", "200ms")
	v.SetDefault("consumer.max_backoff", "10s")
	v.SetDefault("consumer.reconnect_interval", "5s")
	v.SetDefault("dead_letter.driver", "kafka")
	v.SetDefault("dead_letter.sqs_queue_url", "")
	v.SetDefault("dead_letter.aws_region", "")
	v.SetDefault("ledger.cache_ttl", "24h")
	v.SetDefault("ledger.retention", "0s")
	v.SetDefault("ledger.sweep_interval", "1h")
	v.SetDefault("wallet.currency", "GHS")
	v.SetDefault("wallet.code_length", 12)
	v.SetDefault("wallet.code_max_attempts", 5)
	v.SetDefault("wallet.code_widen_by", 4)
	v.SetDefault("wallet.code_max_widenings", 2)
	v.SetDefault("wallet.search_limit", 50)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "wallet-service")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WLT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// WLT_KAFKA_BROKERS arrives as a single comma-separated string.
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	return &cfg, nil
}
