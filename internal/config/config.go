package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

type Config struct {
	Env               string        `validate:"required"`
	ListenAddr        string        `validate:"required"`
	DatabaseURL       string        `validate:"required"`
	StoreBackend      string        `validate:"oneof=postgres supabase"`
	SupabaseURL       string        `validate:"required_if=StoreBackend supabase"`
	SupabaseKey       string        `validate:"required_if=StoreBackend supabase"`
	Timezone          string        `validate:"required"`
	LogLevel          string        `validate:"oneof=debug info warn error"`
	FeedSourceTimeout time.Duration `validate:"gt=0"`
	SweepInterval     time.Duration `validate:"gte=0"`
	SweepWorkers      int           `validate:"gte=0"`
	MigrateOnStart    bool

	// Location is the business time zone that "today" is computed in.
	Location *time.Location `validate:"-"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("store_backend", BackendPostgres)
	v.SetDefault("app_timezone", "America/Toronto")
	v.SetDefault("log_level", "info")
	v.SetDefault("feed_source_timeout", 5*time.Second)
	v.SetDefault("sweep_interval", 15*time.Minute)
	v.SetDefault("sweep_workers", 2)
	v.SetDefault("migrate_on_start", false)
}

// Load reads configuration from .env (if present), config.yaml (if present)
// and the process environment, in increasing order of precedence.
func Load() (Config, error) {
	// .env is optional in every environment
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:               v.GetString("app_env"),
		ListenAddr:        v.GetString("listen_addr"),
		DatabaseURL:       v.GetString("database_url"),
		StoreBackend:      strings.ToLower(v.GetString("store_backend")),
		SupabaseURL:       v.GetString("supabase_url"),
		SupabaseKey:       v.GetString("supabase_key"),
		Timezone:          v.GetString("app_timezone"),
		LogLevel:          strings.ToLower(v.GetString("log_level")),
		FeedSourceTimeout: v.GetDuration("feed_source_timeout"),
		SweepInterval:     v.GetDuration("sweep_interval"),
		SweepWorkers:      v.GetInt("sweep_workers"),
		MigrateOnStart:    v.GetBool("migrate_on_start"),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return cfg, nil
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}
