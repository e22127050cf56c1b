/**
 * @description
 * Configuration management for the condominium backend.
 */
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const firebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// Config holds all configuration for the application.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	AppEnv                    string `mapstructure:"APP_ENV"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	AutoMigrate               bool   `mapstructure:"AUTO_MIGRATE"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	EventsExchange            string `mapstructure:"EVENTS_EXCHANGE"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	WebhookRateLimitPerMinute int    `mapstructure:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
	FirebaseProjectID         string `mapstructure:"FIREBASE_PROJECT_ID"`
	IdentityJWKSURL           string `mapstructure:"IDENTITY_JWKS_URL"`
	IdentityIssuer            string `mapstructure:"IDENTITY_ISSUER"`
	IdentityAudience          string `mapstructure:"IDENTITY_AUDIENCE"`
	CORSOrigins               string `mapstructure:"CORS_ORIGINS"`
	FlowAPIURL                string `mapstructure:"FLOW_API_URL"`
	FlowAPIKey                string `mapstructure:"FLOW_API_KEY"`
	FlowSecretKey             string `mapstructure:"FLOW_SECRET_KEY"`
	FlowConfirmationURL       string `mapstructure:"FLOW_CONFIRMATION_URL"`
	FlowReturnURL             string `mapstructure:"FLOW_RETURN_URL"`
	WebhookSecret             string `mapstructure:"WEBHOOK_SECRET"`
	BootstrapAdminEmails      string `mapstructure:"BOOTSTRAP_ADMIN_EMAILS"`
	LogLevel                  string `mapstructure:"LOG_LEVEL"`
	LogFormat                 string `mapstructure:"LOG_FORMAT"`
}

var envKeys = []string{
	"SERVER_PORT",
	"PORT",
	"APP_ENV",
	"DATABASE_URL",
	"AUTO_MIGRATE",
	"RABBITMQ_URL",
	"EVENTS_EXCHANGE",
	"REDIS_URL",
	"REDIS_RATE_LIMIT_PREFIX",
	"WEBHOOK_RATE_LIMIT_PER_MINUTE",
	"FIREBASE_PROJECT_ID",
	"IDENTITY_JWKS_URL",
	"IDENTITY_ISSUER",
	"IDENTITY_AUDIENCE",
	"CORS_ORIGINS",
	"FLOW_API_URL",
	"FLOW_API_KEY",
	"FLOW_SECRET_KEY",
	"FLOW_CONFIRMATION_URL",
	"FLOW_RETURN_URL",
	"WEBHOOK_SECRET",
	"BOOTSTRAP_ADMIN_EMAILS",
	"LOG_LEVEL",
	"LOG_FORMAT",
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("AUTO_MIGRATE", true)
	viper.SetDefault("EVENTS_EXCHANGE", "condominio.events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "condominio:ratelimit")
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	viper.SetDefault("FLOW_API_URL", "https://sandbox.flow.cl/api")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.AutomaticEnv()

	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}

	config.applyIdentityDefaults()
	err = config.validate()
	return
}

func (c *Config) applyIdentityDefaults() {
	project := strings.TrimSpace(c.FirebaseProjectID)
	if project == "" {
		return
	}
	if c.IdentityJWKSURL == "" {
		c.IdentityJWKSURL = firebaseJWKSURL
	}
	if c.IdentityIssuer == "" {
		c.IdentityIssuer = "https://securetoken.google.com/" + project
	}
	if c.IdentityAudience == "" {
		c.IdentityAudience = project
	}
}

func (c Config) validate() error {
	var problems []error
	if strings.TrimSpace(c.IdentityJWKSURL) == "" {
		problems = append(problems, errors.New("IDENTITY_JWKS_URL or FIREBASE_PROJECT_ID must be set"))
	}
	if strings.TrimSpace(c.IdentityIssuer) == "" {
		problems = append(problems, errors.New("IDENTITY_ISSUER or FIREBASE_PROJECT_ID must be set"))
	}
	if strings.TrimSpace(c.IdentityAudience) == "" {
		problems = append(problems, errors.New("IDENTITY_AUDIENCE or FIREBASE_PROJECT_ID must be set"))
	}
	if c.WebhookRateLimitPerMinute < 0 {
		problems = append(problems, fmt.Errorf("WEBHOOK_RATE_LIMIT_PER_MINUTE cannot be negative, got %d", c.WebhookRateLimitPerMinute))
	}
	if c.FlowAPIKey != "" && c.FlowSecretKey == "" {
		problems = append(problems, errors.New("FLOW_SECRET_KEY is required when FLOW_API_KEY is set"))
	}
	return errors.Join(problems...)
}

// GatewayEnabled reports whether checkout orders can be opened on the gateway.
func (c Config) GatewayEnabled() bool {
	return c.FlowAPIKey != "" && c.FlowSecretKey != ""
}

// AllowedOrigins returns the CORS origins as a list.
func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

// AdminEmails returns the addresses that register as administrators.
func (c Config) AdminEmails() []string {
	return splitList(c.BootstrapAdminEmails)
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
