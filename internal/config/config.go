package config

import (
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	PostgresURL        string `mapstructure:"POSTGRES_URL"`
	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	ServerPort         string `mapstructure:"SERVER_PORT"`
	FetchTimeout       int    `mapstructure:"FETCH_TIMEOUT"`  // seconds
	RenderTimeout      int    `mapstructure:"RENDER_TIMEOUT"` // seconds
	MaxItemsPerSource  int    `mapstructure:"MAX_ITEMS_PER_SOURCE"`
	HealthyMaxItems    int    `mapstructure:"HEALTHY_MAX_ITEMS"`
	SourceDelaySeconds int    `mapstructure:"SOURCE_DELAY_SECONDS"`
	SchedulerEnabled   bool   `mapstructure:"SCHEDULER_ENABLED"`
	ScrapeIntervalMins int    `mapstructure:"SCRAPE_INTERVAL_MINUTES"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("FETCH_TIMEOUT", 30)
	viper.SetDefault("RENDER_TIMEOUT", 45)
	viper.SetDefault("MAX_ITEMS_PER_SOURCE", 100)
	viper.SetDefault("HEALTHY_MAX_ITEMS", 50)
	viper.SetDefault("SOURCE_DELAY_SECONDS", 5)
	viper.SetDefault("SCHEDULER_ENABLED", false)
	viper.SetDefault("SCRAPE_INTERVAL_MINUTES", 60)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
