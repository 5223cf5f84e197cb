package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Port string `mapstructure:"PORT" yaml:"port" validate:"required"`

	DBDriver    string `mapstructure:"DB_DRIVER" yaml:"db_driver" validate:"oneof=sqlite postgres"`
	DBPath      string `mapstructure:"DB_PATH" yaml:"db_path" validate:"required_if=DBDriver sqlite"`
	PostgresURL string `mapstructure:"POSTGRES_URL" yaml:"postgres_url" validate:"required_if=DBDriver postgres"`
	CreateTable string `mapstructure:"CREATE_TABLE" yaml:"create_table"` // optional DDL file

	SegmentPolicy string `mapstructure:"SEGMENT_POLICY" yaml:"segment_policy" validate:"oneof=reset continuous"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD" yaml:"redis_password"`
	RedisChannel  string `mapstructure:"REDIS_CHANNEL" yaml:"redis_channel"`

	JWTSecret      string        `mapstructure:"JWT_SECRET" yaml:"jwt_secret"` // empty disables auth
	RateLimit      int           `mapstructure:"RATE_LIMIT" yaml:"rate_limit" validate:"gte=0"`
	RateWindow     time.Duration `mapstructure:"RATE_WINDOW" yaml:"rate_window" validate:"gt=0"`
	MaxUploadBytes int64         `mapstructure:"MAX_UPLOAD_BYTES" yaml:"max_upload_bytes" validate:"gt=0"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:           ":8080",
		DBDriver:       "sqlite",
		DBPath:         "./data/tracks/tracks.db",
		SegmentPolicy:  "reset",
		RedisChannel:   "gpx:tracks",
		RateLimit:      10,
		RateWindow:     time.Minute,
		MaxUploadBytes: 32 << 20,
	}
}

// Load 加载配置: defaults, then the optional YAML file at path, then
// environment variables. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	// AutomaticEnv only reaches keys viper already knows about
	for key, value := range map[string]any{
		"PORT":             cfg.Port,
		"DB_DRIVER":        cfg.DBDriver,
		"DB_PATH":          cfg.DBPath,
		"POSTGRES_URL":     cfg.PostgresURL,
		"CREATE_TABLE":     cfg.CreateTable,
		"SEGMENT_POLICY":   cfg.SegmentPolicy,
		"REDIS_ADDR":       cfg.RedisAddr,
		"REDIS_PASSWORD":   cfg.RedisPassword,
		"REDIS_CHANNEL":    cfg.RedisChannel,
		"JWT_SECRET":       cfg.JWTSecret,
		"RATE_LIMIT":       cfg.RateLimit,
		"RATE_WINDOW":      cfg.RateWindow,
		"MAX_UPLOAD_BYTES": cfg.MaxUploadBytes,
	} {
		v.SetDefault(key, value)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
