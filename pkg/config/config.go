// Package config loads server configuration from the environment and
// the governance profile from yaml.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Port         string
	LogLevel     string
	DatabasePath string
	DatabaseURL  string
	ProfilePath  string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "chainbridge.db"
	}

	// DATABASE_URL selects the postgres store; empty keeps sqlite.
	dbURL := os.Getenv("DATABASE_URL")

	profilePath := os.Getenv("GOVERNANCE_PROFILE")

	return &Config{
		Port:         port,
		LogLevel:     logLevel,
		DatabasePath: dbPath,
		DatabaseURL:  dbURL,
		ProfilePath:  profilePath,
	}
}
