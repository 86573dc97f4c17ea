package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "DASHBOARD_CONFIG"

type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Dashboard DashboardConfig     `yaml:"dashboard"`
	Database  DatabaseConfig      `yaml:"database"`
	Redis     RedisConfig         `yaml:"redis"`
	Kafka     KafkaConfig         `yaml:"kafka"`
	Observ    ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Port string `yaml:"port" validate:"required,numeric"`
	Env  string `yaml:"env" validate:"oneof=development production test"`
}

type DashboardConfig struct {
	DefaultThresholdDays int     `yaml:"defaultThresholdDays" validate:"min=30,max=720"`
	MaxUploadMB          int     `yaml:"maxUploadMB" validate:"min=1,max=1024"`
	MaxRows              int     `yaml:"maxRows" validate:"min=0"`
	SessionTTLMinutes    int     `yaml:"sessionTTLMinutes" validate:"min=1"`
	SkipInvalidRows      bool    `yaml:"skipInvalidRows"`
	Timezone             string  `yaml:"timezone" validate:"required"`
	UploadRatePerSec     float64 `yaml:"uploadRatePerSec" validate:"gt=0"`
	UploadRateBurst      int     `yaml:"uploadRateBurst" validate:"min=1"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0,max=15"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	TopicAnalysis string   `yaml:"topicAnalysis" validate:"required"`
	ConsumerGroup string   `yaml:"consumerGroup" validate:"required"`
}

type ObservabilityConfig struct {
	JaegerEndpoint string `yaml:"jaegerEndpoint" validate:"omitempty,url"`
}

// SessionTTL is how long an uploaded dataset is kept for its session
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Dashboard.SessionTTLMinutes) * time.Minute
}

// MaxUploadBytes is the upload size cap in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Dashboard.MaxUploadMB) << 20
}

// Location resolves the timezone used for dates without an explicit zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Dashboard.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) RedisEnabled() bool    { return c.Redis.Addr != "" }
func (c *Config) KafkaEnabled() bool    { return len(c.Kafka.Brokers) > 0 }
func (c *Config) DatabaseEnabled() bool { return c.Database.URL != "" }

// Validate checks value ranges declared in struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Dashboard.Timezone); err != nil {
		return fmt.Errorf("invalid config: unknown timezone %q: %w", c.Dashboard.Timezone, err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Env:  "development",
		},
		Dashboard: DashboardConfig{
			DefaultThresholdDays: 60,
			MaxUploadMB:          20,
			MaxRows:              500000,
			SessionTTLMinutes:    60,
			Timezone:             "UTC",
			UploadRatePerSec:     2,
			UploadRateBurst:      5,
		},
		Kafka: KafkaConfig{
			TopicAnalysis: "analysis-events",
			ConsumerGroup: "analysis-audit-group",
		},
	}
}

// Load builds the config from defaults, an optional YAML file named by
// DASHBOARD_CONFIG, and environment variables, in that order.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded: env=%s, port=%s, redis=%t, kafka=%t, database=%t",
		cfg.Server.Env, cfg.Server.Port, cfg.RedisEnabled(), cfg.KafkaEnabled(), cfg.DatabaseEnabled())
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error

	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("ENV", c.Server.Env)

	if c.Dashboard.DefaultThresholdDays, err = getEnvInt("DEFAULT_THRESHOLD_DAYS", c.Dashboard.DefaultThresholdDays); err != nil {
		return err
	}
	if c.Dashboard.MaxUploadMB, err = getEnvInt("MAX_UPLOAD_MB", c.Dashboard.MaxUploadMB); err != nil {
		return err
	}
	if c.Dashboard.MaxRows, err = getEnvInt("MAX_ROWS", c.Dashboard.MaxRows); err != nil {
		return err
	}
	if c.Dashboard.SessionTTLMinutes, err = getEnvInt("SESSION_TTL_MINUTES", c.Dashboard.SessionTTLMinutes); err != nil {
		return err
	}
	if c.Dashboard.SkipInvalidRows, err = getEnvBool("INGEST_SKIP_INVALID_ROWS", c.Dashboard.SkipInvalidRows); err != nil {
		return err
	}
	c.Dashboard.Timezone = getEnv("TIMEZONE", c.Dashboard.Timezone)
	if c.Dashboard.UploadRatePerSec, err = getEnvFloat("UPLOAD_RATE_PER_SEC", c.Dashboard.UploadRatePerSec); err != nil {
		return err
	}
	if c.Dashboard.UploadRateBurst, err = getEnvInt("UPLOAD_RATE_BURST", c.Dashboard.UploadRateBurst); err != nil {
		return err
	}

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	c.Kafka.TopicAnalysis = getEnv("KAFKA_TOPIC_ANALYSIS_EVENTS", c.Kafka.TopicAnalysis)
	c.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)

	c.Observ.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", c.Observ.JaegerEndpoint)
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
