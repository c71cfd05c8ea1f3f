package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// CADENCE_ prefix with underscores for nesting (CADENCE_SERVER_PORT,
// CADENCE_DATABASE_URL, ...) and take precedence over file values.
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CADENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars alone can carry the
		// required settings.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the defaults for every setting that has one. The
// policy constants here are the documented defaults; deployments are
// expected to tune them rather than patch the code.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Required settings get empty-string defaults so that viper's Unmarshal
	// picks them up from the environment; validation rejects the empties.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("feedback.gemini_api_key", "")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("auth.token_lifetime_mins", 60)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("feedback.model_name", "gemini-2.0-flash")
	v.SetDefault("feedback.max_retries", 3)
	v.SetDefault("feedback.retry_base_delay_ms", 500)

	v.SetDefault("progression.xp_per_level", 100)
	v.SetDefault("progression.cefr_window", 20)
	v.SetDefault("progression.cefr_hysteresis", 0.05)

	v.SetDefault("analytics.on_time_weight", 0.4)
	v.SetDefault("analytics.overdue_weight", 0.4)
	v.SetDefault("analytics.streak_weight", 0.2)
	v.SetDefault("analytics.streak_target", 5)
	v.SetDefault("analytics.velocity_window_days", 14)
	v.SetDefault("analytics.velocity_half_life_days", 7)

	v.SetDefault("distributor.review_fraction", 0.7)

	v.SetDefault("cache.ttl_seconds", 300)
}
