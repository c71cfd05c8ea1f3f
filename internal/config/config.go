// Package config defines the application configuration and its loading.
package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth"        validate:"required"`
	Feedback    FeedbackConfig    `mapstructure:"feedback"    validate:"required"`
	SRS         SRSConfig         `mapstructure:"srs"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	Distributor DistributorConfig `mapstructure:"distributor"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication and authorization settings.
type AuthConfig struct {
	JWTSecret         string `mapstructure:"jwt_secret"           validate:"required,min=32"`
	TokenLifetimeMins int    `mapstructure:"token_lifetime_mins"  validate:"gte=0"`
	BcryptCost        int    `mapstructure:"bcrypt_cost"          validate:"gte=0,lte=31"`
}

// FeedbackConfig contains settings for the external feedback generator.
type FeedbackConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`

	// Retry policy for transient generator failures.
	MaxRetries       int `mapstructure:"max_retries"        validate:"gte=0"`
	RetryBaseDelayMS int `mapstructure:"retry_base_delay_ms" validate:"gte=0"`
}

// SRSConfig overrides spaced-repetition scheduling parameters. Zero values
// fall back to the algorithm defaults.
type SRSConfig struct {
	MinEaseFactor         float64 `mapstructure:"min_ease_factor"`
	MaxEaseFactor         float64 `mapstructure:"max_ease_factor"`
	LapseQualityThreshold float64 `mapstructure:"lapse_quality_threshold"`
	LapseEasePenalty      float64 `mapstructure:"lapse_ease_penalty"`
	LapseIntervalDays     int     `mapstructure:"lapse_interval_days"`
	ReviewStreakThreshold int     `mapstructure:"review_streak_threshold"`
}

// ProgressionConfig holds the XP/level/CEFR policy constants. These are
// policy, not algorithm, so they live in configuration.
type ProgressionConfig struct {
	// XPPerLevel scales the level curve: level = floor(sqrt(xp / XPPerLevel)).
	XPPerLevel int `mapstructure:"xp_per_level" validate:"gte=0"`

	// CEFRWindow is how many recent graded attempts feed the CEFR estimate.
	CEFRWindow int `mapstructure:"cefr_window" validate:"gte=0"`

	// CEFRHysteresis is the band around a CEFR boundary that the smoothed
	// score must clear before the level moves.
	CEFRHysteresis float64 `mapstructure:"cefr_hysteresis" validate:"gte=0,lte=0.5"`
}

// AnalyticsConfig holds the health and velocity metric parameters.
type AnalyticsConfig struct {
	// Health weights; must sum to 1 when all are set.
	OnTimeWeight  float64 `mapstructure:"on_time_weight"  validate:"gte=0,lte=1"`
	OverdueWeight float64 `mapstructure:"overdue_weight"  validate:"gte=0,lte=1"`
	StreakWeight  float64 `mapstructure:"streak_weight"   validate:"gte=0,lte=1"`

	// StreakTarget is the streak at which the streak factor saturates at 1.
	StreakTarget int `mapstructure:"streak_target" validate:"gte=0"`

	// Velocity EWMA parameters.
	VelocityWindowDays   int     `mapstructure:"velocity_window_days"    validate:"gte=0"`
	VelocityHalfLifeDays float64 `mapstructure:"velocity_half_life_days" validate:"gte=0"`
}

// DistributorConfig holds the activity selection policy.
type DistributorConfig struct {
	// ReviewFraction is the share of a distribution call reserved for due
	// SRS reviews before teacher assignments fill the rest.
	ReviewFraction float64 `mapstructure:"review_fraction" validate:"gte=0,lte=1"`
}

// CacheConfig contains optional Redis caching settings. An empty URL
// disables caching entirely.
type CacheConfig struct {
	RedisURL   string `mapstructure:"redis_url"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"gte=0"`
}
