package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the configuration for the cardprofile application.
type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// StoreBackend selects the document store: "pg", "redis", or "mem"
	// (mem is gated for tests).
	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	DBDSN         string `mapstructure:"DB_DSN"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// CardKey overrides the fixed document key. Mostly for tests; the
	// default is the one card every deployment manages.
	CardKey string `mapstructure:"CARD_KEY"`
	// LoadTimeout bounds the initial fetch; the load races against it.
	LoadTimeout time.Duration `mapstructure:"LOAD_TIMEOUT"`
	// PaymentDelay is the artificial processing time of the payment
	// simulator.
	PaymentDelay time.Duration `mapstructure:"PAYMENT_DELAY"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:     "localhost:9090",
		StoreBackend: "pg",
		RedisAddr:    "localhost:6379",
		LoadTimeout:  10 * time.Second,
		PaymentDelay: 2 * time.Second,
	}
}

// LoadConfig reads configuration from environment variables, with an
// optional .env file, layered over the defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	def := DefaultConfig()
	v.SetDefault("HTTP_ADDR", def.HTTPAddr)
	v.SetDefault("STORE_BACKEND", def.StoreBackend)
	v.SetDefault("REDIS_ADDR", def.RedisAddr)
	v.SetDefault("LOAD_TIMEOUT", def.LoadTimeout)
	v.SetDefault("PAYMENT_DELAY", def.PaymentDelay)
	for _, key := range []string{"DB_DSN", "REDIS_PASSWORD", "REDIS_DB", "CARD_KEY"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		// missing .env is fine, the environment still applies
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return config, nil
}
