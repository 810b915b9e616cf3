/**
 * @description
 * This package handles the configuration management for the API server. It
 * uses the Viper library to read configuration from environment variables
 * (with an optional .env file), providing a centralized way to manage
 * application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the API server.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	CORSOrigin           string `mapstructure:"CORS_ORIGIN"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values. DATABASE_URL, REDIS_URL and RABBITMQ_URL have no
	// defaults; when absent the server falls back to the in-process store,
	// limiter and producer.
	viper.SetDefault("SERVER_PORT", "3000")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "be:rate_limit")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-this-in-production")
	viper.SetDefault("CORS_ORIGIN", "https://bitcoinefectivo.com")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("CORS_ORIGIN")

	// A missing .env file is fine; environment variables alone are enough.
	if readErr := viper.ReadInConfig(); readErr != nil {
		if _, notFound := readErr.(viper.ConfigFileNotFoundError); !notFound {
			return config, readErr
		}
	}

	err = viper.Unmarshal(&config)
	return config, err
}
