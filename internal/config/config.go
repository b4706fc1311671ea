/**
 * @description
 * Configuration management for the reminder service, loaded from environment
 * variables with sensible defaults for the sweep cadence and dispatch limits.
 */
package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	MailProviderURL        string `mapstructure:"MAIL_PROVIDER_URL"`
	MailProviderAPIKey     string `mapstructure:"MAIL_PROVIDER_API_KEY"`
	MailFromAddress        string `mapstructure:"MAIL_FROM_ADDRESS"`
	SubscriptionServiceURL string `mapstructure:"SUBSCRIPTION_SERVICE_URL"`
	InternalAPIKey         string `mapstructure:"INTERNAL_API_KEY"`
	JWKSURL                string `mapstructure:"JWKS_URL"`
	QueueDispatchEnabled   bool   `mapstructure:"QUEUE_DISPATCH_ENABLED"`
	DispatchCallbackURL    string `mapstructure:"DISPATCH_CALLBACK_URL"`
	SweepSchedule          string `mapstructure:"SWEEP_SCHEDULE"`
	SweepConcurrency       int    `mapstructure:"SWEEP_CONCURRENCY"`
	MaxRemindersPerInvoice int    `mapstructure:"MAX_REMINDERS_PER_INVOICE"`
	SendRateLimitPerMin    int    `mapstructure:"SEND_RATE_LIMIT_PER_MIN"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SWEEP_SCHEDULE", "0 9 * * *") // Daily at 09:00.
	viper.SetDefault("SWEEP_CONCURRENCY", 4)
	viper.SetDefault("MAX_REMINDERS_PER_INVOICE", 3)
	viper.SetDefault("SEND_RATE_LIMIT_PER_MIN", 30)
	viper.SetDefault("QUEUE_DISPATCH_ENABLED", true)
	viper.SetDefault("MAIL_FROM_ADDRESS", "billing@invoiceflow.app")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("MAIL_PROVIDER_URL")
	_ = viper.BindEnv("MAIL_PROVIDER_API_KEY")
	_ = viper.BindEnv("MAIL_FROM_ADDRESS")
	_ = viper.BindEnv("SUBSCRIPTION_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("QUEUE_DISPATCH_ENABLED")
	_ = viper.BindEnv("DISPATCH_CALLBACK_URL")
	_ = viper.BindEnv("SWEEP_SCHEDULE")
	_ = viper.BindEnv("SWEEP_CONCURRENCY")
	_ = viper.BindEnv("MAX_REMINDERS_PER_INVOICE")
	_ = viper.BindEnv("SEND_RATE_LIMIT_PER_MIN")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, err
	}
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}

	if config.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if config.SweepConcurrency <= 0 {
		config.SweepConcurrency = 4
	}
	if config.MaxRemindersPerInvoice <= 0 {
		config.MaxRemindersPerInvoice = 3
	}

	return config, nil
}
