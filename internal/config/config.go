// Package config defines the configuration for the GardenWatch service.
// Configuration is loaded once at process startup and immutable thereafter,
// following 12-Factor principles: values come from the OS environment, with a
// .env file as a development convenience.
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"time"

	"gardenwatch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Components receive only the
// subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server   ServerConfig
	Database DatabaseConfig
	Weather  WeatherConfig
	Alerts   AlertsConfig
	Push     PushConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds the database connection string.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`
}

// WeatherConfig holds the forecast provider credentials and cache tuning.
type WeatherConfig struct {
	APIKey   SecretString  `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL  string        `envconfig:"OPENWEATHER_BASE_URL"`
	Lang     string        `envconfig:"OPENWEATHER_LANG" default:"en"`
	CacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"6h"`
}

// AlertsConfig holds the hazard classification tuning.
type AlertsConfig struct {
	// FrostThreshold is the °C value at or below which the night minimum
	// counts as frost. Market-specific: protective deployments run it above
	// zero to warn before the actual freeze.
	FrostThreshold float64 `envconfig:"FROST_THRESHOLD" default:"0"`
}

// PushConfig holds the VAPID identity for web-push delivery and the
// notification radius.
type PushConfig struct {
	VAPIDSubject    string       `envconfig:"VAPID_SUBJECT" validate:"required"`
	VAPIDPublicKey  string       `envconfig:"VAPID_PUBLIC_KEY" validate:"required"`
	VAPIDPrivateKey SecretString `envconfig:"VAPID_PRIVATE_KEY" validate:"required"`
	RadiusKm        float64      `envconfig:"NOTIFY_RADIUS_KM" default:"2"`
}

// AuthConfig holds the token verification secret shared with the identity
// service that issues user tokens.
type AuthConfig struct {
	JWTSecret SecretString `envconfig:"JWT_SECRET" validate:"required,min=32"`
}
