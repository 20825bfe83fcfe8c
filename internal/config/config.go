package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from FINAI_-prefixed
// environment variables or an optional local .env file.
type Config struct {
	Addr         string        `mapstructure:"ADDR"`
	GRPCAddr     string        `mapstructure:"GRPC_ADDR"` // empty disables the gRPC health endpoint
	PGDSN        string        `mapstructure:"PG_DSN"`    // empty selects the file store
	DataPath     string        `mapstructure:"DATA_PATH"` // file store directory
	AuthSecret   string        `mapstructure:"AUTH_SECRET"`
	TokenTTL     time.Duration `mapstructure:"TOKEN_TTL"`
	GeminiAPIKey string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string        `mapstructure:"GEMINI_MODEL"`
	RateBurst    int           `mapstructure:"RATE_BURST"`
	RatePerSec   int           `mapstructure:"RATE_PER_SEC"`
}

// Load reads configuration from the environment and an optional .env file.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FINAI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("PG_DSN", "")
	v.SetDefault("DATA_PATH", "./data")
	v.SetDefault("AUTH_SECRET", "")
	v.SetDefault("TOKEN_TTL", 30*24*time.Hour)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-3-flash-preview")
	v.SetDefault("RATE_BURST", 20)
	v.SetDefault("RATE_PER_SEC", 10)

	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
