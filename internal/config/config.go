package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type GatewayConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type RedisConfig struct {
	URL         string
	DropdownTTL time.Duration
}

type KafkaConfig struct {
	Brokers        []string
	ContractsTopic string
}

type BuilderConfig struct {
	SessionTTL    time.Duration
	LookupTimeout time.Duration
	FenceLookups  bool
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Gateway     GatewayConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Builder     BuilderConfig
}

func Load() (*Config, error) {
	return fromViper(newViper(), true)
}

// LoadConsole loads the settings of the terminal console. The console talks
// to the gateway directly, so the database and token secret are optional.
func LoadConsole() (*Config, error) {
	return fromViper(newViper(), false)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	_ = v.ReadInConfig()
	return v
}

func fromViper(v *viper.Viper, server bool) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Gateway: GatewayConfig{
			BaseURL: strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),
			Token:   v.GetString("GATEWAY_TOKEN"),
			Timeout: v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Redis: RedisConfig{
			URL:         v.GetString("REDIS_URL"),
			DropdownTTL: v.GetDuration("DROPDOWN_CACHE_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:        parseList(v.GetString("KAFKA_BROKERS")),
			ContractsTopic: v.GetString("KAFKA_TOPIC_CONTRACTS"),
		},
		Builder: BuilderConfig{
			SessionTTL:    v.GetDuration("BUILDER_SESSION_TTL"),
			LookupTimeout: v.GetDuration("BUILDER_LOOKUP_TIMEOUT"),
			FenceLookups:  v.GetBool("BUILDER_FENCE_LOOKUPS"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Redis.DropdownTTL == 0 {
		cfg.Redis.DropdownTTL = 10 * time.Minute
	}
	if cfg.Kafka.ContractsTopic == "" {
		cfg.Kafka.ContractsTopic = "pestops.contracts"
	}
	if cfg.Builder.SessionTTL == 0 {
		cfg.Builder.SessionTTL = 2 * time.Hour
	}
	if cfg.Builder.LookupTimeout == 0 {
		cfg.Builder.LookupTimeout = 10 * time.Second
	}

	if err := validate(cfg, server); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config, server bool) error {
	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if !server {
		return nil
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
