package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort string        `yaml:"http_port"`
	GRPCPort string        `yaml:"grpc_port"`
	Mongo    MongoConfig   `yaml:"mongo"`
	Redis    RedisConfig   `yaml:"redis"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Cart     CartConfig    `yaml:"cart"`
	Auth     AuthConfig    `yaml:"auth"`
	Log      LogConfig     `yaml:"log"`

	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	CheckoutTopic string   `yaml:"checkout_topic"`
	OrderTopic    string   `yaml:"order_topic"`
}

type CatalogConfig struct {
	BaseURL         string        `yaml:"base_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

type CartConfig struct {
	Sizes    []string      `yaml:"sizes"`
	Currency string        `yaml:"currency"`
	IdleTTL  time.Duration `yaml:"idle_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		HTTPPort: "8080",
		GRPCPort: "50052",
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "cartdb",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			CheckoutTopic: "cart-checkout",
			OrderTopic:    "order-placed",
		},
		Catalog: CatalogConfig{
			BaseURL:         "http://localhost:4000",
			RefreshInterval: time.Minute,
			Timeout:         5 * time.Second,
		},
		Cart: CartConfig{
			Sizes:    []string{"S", "M", "L", "XL", "XXL"},
			Currency: "INR",
			IdleTTL:  30 * time.Minute,
		},
		Log:             LogConfig{Level: "info"},
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load applies defaults, then the YAML file at path (if any), then
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http_port is required")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return fmt.Errorf("mongo.uri and mongo.database are required")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTPPort, "CART_SERVICE_PORT")
	setString(&c.GRPCPort, "CART_SERVICE_GRPC_PORT")
	setString(&c.Mongo.URI, "MONGO_URI")
	setString(&c.Mongo.Database, "MONGO_DB_NAME")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setList(&c.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&c.Kafka.CheckoutTopic, "KAFKA_CHECKOUT_TOPIC")
	setString(&c.Kafka.OrderTopic, "KAFKA_ORDER_TOPIC")
	setString(&c.Catalog.BaseURL, "PRODUCT_SERVICE_URL")
	setList(&c.Cart.Sizes, "CART_SIZES")
	setString(&c.Cart.Currency, "CART_CURRENCY")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")

	if err := setDuration(&c.Catalog.RefreshInterval, "CATALOG_REFRESH_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&c.Cart.IdleTTL, "CART_IDLE_TTL"); err != nil {
		return err
	}
	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
