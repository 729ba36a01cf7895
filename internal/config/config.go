// Package config loads application configuration from environment variables
// and .env files.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the application configuration.
type Config struct {
	Provider ProviderConfig
	Store    StoreConfig
	API      APIConfig
	Suggest  SuggestConfig
	Classify ClassifyConfig
	Debug    bool
}

// ProviderConfig configures the financial-data provider client.
type ProviderConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StoreConfig configures the local SQLite ledger store.
type StoreConfig struct {
	DBPath string
	// EncryptionKey is the 32-byte key used to encrypt transaction
	// descriptions at rest, base64-encoded in the environment.
	EncryptionKey []byte
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Port string
}

// SuggestConfig configures the Gemini-backed category suggester.
type SuggestConfig struct {
	Model   string
	Enabled bool
}

// ClassifyConfig configures the classification engine.
type ClassifyConfig struct {
	// KeywordsPath points to an optional YAML file extending the built-in
	// category keyword sets.
	KeywordsPath string
}

// Load loads configuration from environment variables. A .env file in the
// current directory is loaded first if present; a custom path can be given.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	timeout, err := parseDurationEnv("PROVIDER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}

	var key []byte
	if raw := os.Getenv("LEDGER_ENCRYPTION_KEY"); raw != "" {
		key, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LEDGER_ENCRYPTION_KEY: %w", err)
		}
	}

	cfg := &Config{
		Provider: ProviderConfig{
			BaseURL: getEnvOrDefault("PROVIDER_API_URL", "https://sandbox.provider.example"),
			Timeout: timeout,
		},
		Store: StoreConfig{
			DBPath:        getEnvOrDefault("LEDGER_DB_PATH", "./data/ledger.db"),
			EncryptionKey: key,
		},
		API: APIConfig{
			Port: getEnvOrDefault("API_PORT", "8080"),
		},
		Suggest: SuggestConfig{
			Model:   getEnvOrDefault("SUGGEST_MODEL", "gemini-2.0-flash"),
			Enabled: os.Getenv("SUGGEST_DISABLED") != "true",
		},
		Classify: ClassifyConfig{
			KeywordsPath: os.Getenv("CLASSIFY_KEYWORDS_PATH"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return cfg, nil
}

// Validate checks that the fields required for a sync run are present.
func (c *Config) Validate() error {
	var missing []string

	if c.Provider.BaseURL == "" {
		missing = append(missing, "PROVIDER_API_URL")
	}
	if c.Store.DBPath == "" {
		missing = append(missing, "LEDGER_DB_PATH")
	}
	if len(c.Store.EncryptionKey) == 0 {
		missing = append(missing, "LEDGER_ENCRYPTION_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}
	if n := len(c.Store.EncryptionKey); n != 32 {
		return fmt.Errorf("LEDGER_ENCRYPTION_KEY must decode to 32 bytes, got %d", n)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationEnv parses a duration from an environment variable holding
// either a Go duration string or a number of seconds.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}
	return d, nil
}
