package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Backend
	APIBaseURL     string        `env:"LIBRARIAN_API_URL" default:"http://localhost:8080"`
	RequestTimeout time.Duration `env:"LIBRARIAN_TIMEOUT" default:"10s"`

	// Pagination defaults
	BooksPageSize int `env:"LIBRARIAN_BOOKS_PAGE_SIZE" default:"20"`
	PanelPageSize int `env:"LIBRARIAN_PANEL_PAGE_SIZE" default:"10"`

	// Background refetch pacing
	RefetchPerSecond float64 `env:"LIBRARIAN_REFETCH_PER_SECOND" default:"5"`
	RefetchBurst     int     `env:"LIBRARIAN_REFETCH_BURST" default:"8"`

	// Loans
	ProlongDays int `env:"LIBRARIAN_PROLONG_DAYS" default:"30"`

	// Development
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables, reading an
// optional .env file first.
func LoadConfig() (*Config, error) {
	// Missing .env is fine, system env vars still apply.
	_ = godotenv.Load(".env")

	config := &Config{}

	if err := loadEnvString(&config.APIBaseURL, "LIBRARIAN_API_URL", "http://localhost:8080"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.RequestTimeout, "LIBRARIAN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if err := loadEnvInt(&config.BooksPageSize, "LIBRARIAN_BOOKS_PAGE_SIZE", 20); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.PanelPageSize, "LIBRARIAN_PANEL_PAGE_SIZE", 10); err != nil {
		return nil, err
	}

	if err := loadEnvFloat(&config.RefetchPerSecond, "LIBRARIAN_REFETCH_PER_SECOND", 5); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RefetchBurst, "LIBRARIAN_REFETCH_BURST", 8); err != nil {
		return nil, err
	}

	if err := loadEnvInt(&config.ProlongDays, "LIBRARIAN_PROLONG_DAYS", 30); err != nil {
		return nil, err
	}

	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}

	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.APIBaseURL == "" {
		errors = append(errors, "API base URL must not be empty")
	} else if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		errors = append(errors, "API base URL must start with http:// or https://")
	}
	if c.RequestTimeout <= 0 {
		errors = append(errors, "request timeout must be positive")
	}
	if c.BooksPageSize < 1 || c.PanelPageSize < 1 {
		errors = append(errors, "page sizes must be at least 1")
	}
	if c.RefetchPerSecond <= 0 {
		errors = append(errors, "refetch rate must be positive")
	}
	if c.RefetchBurst < 1 {
		errors = append(errors, "refetch burst must be at least 1")
	}
	if c.ProlongDays < 1 {
		errors = append(errors, "prolong days must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errors = append(errors, fmt.Sprintf("invalid log level: %s", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}
