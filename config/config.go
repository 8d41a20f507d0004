package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken string

	// Database configuration
	DatabaseURL string

	// Giveaway defaults
	DefaultClaimTimeoutSeconds int
	DefaultMaxRerollCount      int

	// Scheduler configuration
	SchedulerWorkers   int
	PollInterval       time.Duration
	JobLease           time.Duration
	MaxJobAttempts     int // retries per job after its first failure
	RetryBaseDelay     time.Duration
	SchedulerBatchSize int

	// Telemetry
	MetricsAddr string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		// Defaults
		DefaultClaimTimeoutSeconds: 300,
		DefaultMaxRerollCount:      5,
		SchedulerWorkers:           4,
		PollInterval:               time.Second,
		JobLease:                   30 * time.Second,
		MaxJobAttempts:             3,
		RetryBaseDelay:             time.Second,
		SchedulerBatchSize:         20,
		MetricsAddr:                ":9090",

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if v := os.Getenv("CLAIM_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			config.DefaultClaimTimeoutSeconds = parsed
		}
	}
	if v := os.Getenv("MAX_REROLL_COUNT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			config.DefaultMaxRerollCount = parsed
		}
	}
	if v := os.Getenv("SCHEDULER_WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			config.SchedulerWorkers = parsed
		}
	}
	if v := os.Getenv("SCHEDULER_POLL_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			config.PollInterval = parsed
		}
	}
	if v := os.Getenv("JOB_LEASE"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			config.JobLease = parsed
		}
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		config.MetricsAddr = v
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
