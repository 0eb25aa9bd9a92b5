// Package config handles loading and validation of CLI configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Config holds all CLI configuration.
// Environment determines whether the store profile loads from env vars
// (development) or Secret Manager (production).
type Config struct {
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	ProfileID  string

	// Store-specific configuration (loaded from secrets)
	Store StoreConfig
}

// StoreConfig contains the target store's settings and credentials.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type StoreConfig struct {
	StoreURL string `json:"store_url"`
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`

	AuthNamespace    string `json:"auth_namespace,omitempty"`
	CatalogNamespace string `json:"catalog_namespace,omitempty"`

	// TokenDir enables file-backed session storage. Empty keeps tokens
	// in memory, which means a login per invocation.
	TokenDir string `json:"token_dir,omitempty"`

	ChromeFingerprint bool    `json:"chrome_fingerprint,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	MinPluginVersion string `json:"min_plugin_version,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) -> ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		ProfileID:   os.Getenv("PROFILE_ID"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.ProfileID == "" {
			return nil, fmt.Errorf("PROFILE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Environment string      `json:"environment"`
		LogLevel    string      `json:"log_level"`
		Store       StoreConfig `json:"store"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		Store:       fileConfig.Store,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches the store profile from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{profile_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.ProfileID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads the store profile from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		StoreURL:         os.Getenv("STORE_URL"),
		Login:            os.Getenv("STORE_LOGIN"),
		Password:         os.Getenv("STORE_PASSWORD"),
		AuthNamespace:    os.Getenv("STORE_AUTH_NAMESPACE"),
		CatalogNamespace: os.Getenv("STORE_CATALOG_NAMESPACE"),
		TokenDir:         os.Getenv("STORE_TOKEN_DIR"),
		MinPluginVersion: os.Getenv("STORE_MIN_PLUGIN_VERSION"),
	}

	if v := os.Getenv("STORE_CHROME_FINGERPRINT"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing STORE_CHROME_FINGERPRINT: %w", err)
		}
		c.Store.ChromeFingerprint = enabled
	}

	if v := os.Getenv("STORE_REQUESTS_PER_SECOND"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing STORE_REQUESTS_PER_SECOND: %w", err)
		}
		c.Store.RequestsPerSecond = rps
	}

	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Store.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if _, err := url.Parse(c.Store.StoreURL); err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}
	if c.Store.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
