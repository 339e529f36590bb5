// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopsight/shopsight-server/internal/validation"
)

// Engine names accepted by the storage configuration.
const (
	EngineSQLite = "sqlite"
	EngineBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Data   DataConfig
	Remote RemoteConfig
	Ingest IngestConfig
	Server ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

// DataConfig holds local data storage configuration.
type DataConfig struct {
	// BasePath is the directory holding per-catalog databases, search
	// indexes, and downloaded catalog files.
	BasePath string `validate:"required"`
	// Engine selects the storage backend: sqlite or badger.
	Engine string `validate:"required,oneof=sqlite badger"`
}

// RemoteConfig holds catalog source configuration.
type RemoteConfig struct {
	// Bucket is the cloud storage bucket holding catalog snapshots.
	Bucket string
	// Customer is the top-level prefix inside the bucket.
	Customer string
	// CredentialsFile optionally points at a service account key file.
	CredentialsFile string
	// LocalPath, when set, reads catalog files from a local directory
	// instead of cloud storage. Useful for development and tests.
	LocalPath string
}

// IngestConfig holds catalog loading configuration.
type IngestConfig struct {
	// MaxRetries is the number of attempts for a failing catalog load (default: 3)
	MaxRetries int `validate:"gte=1"`
	// DownloadConcurrency is the number of parallel snapshot file downloads (default: 4)
	DownloadConcurrency int `validate:"gte=1"`
	// SkipUnchanged skips downloading files whose size matches the local copy (default: true)
	SkipUnchanged bool
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        `validate:"required"` // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for catalog data storage")
	engine := flag.String("engine", "", "Storage engine (sqlite or badger)")

	// Remote source flags
	bucket := flag.String("bucket", "", "Cloud storage bucket holding catalog snapshots")
	customer := flag.String("customer", "", "Customer prefix inside the bucket")
	credentialsFile := flag.String("credentials-file", "", "Path to service account credentials")
	localPath := flag.String("local-path", "", "Read catalog files from a local directory instead of cloud storage")

	// Ingest flags
	maxRetries := flag.String("max-retries", "", "Max attempts for a failing catalog load (default: 3)")
	downloadConcurrency := flag.String("download-concurrency", "", "Parallel snapshot downloads (default: 4)")
	skipUnchanged := flag.String("skip-unchanged", "", "Skip downloads whose size matches the local copy (default: true)")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: strings.ToLower(getConfigValue(*logLevel, "LOG_LEVEL", "info")),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
			Engine:   getConfigValue(*engine, "STORAGE_ENGINE", EngineSQLite),
		},
		Remote: RemoteConfig{
			Bucket:          getConfigValue(*bucket, "CATALOG_BUCKET", ""),
			Customer:        getConfigValue(*customer, "CATALOG_CUSTOMER", ""),
			CredentialsFile: getConfigValue(*credentialsFile, "GOOGLE_APPLICATION_CREDENTIALS", ""),
			LocalPath:       getConfigValue(*localPath, "CATALOG_LOCAL_PATH", ""),
		},
		Ingest: IngestConfig{
			MaxRetries:          getIntConfigValue(*maxRetries, "INGEST_MAX_RETRIES", 3),
			DownloadConcurrency: getIntConfigValue(*downloadConcurrency, "INGEST_DOWNLOAD_CONCURRENCY", 4),
			SkipUnchanged:       getBoolConfigValue(*skipUnchanged, "INGEST_SKIP_UNCHANGED", true),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if err := validation.New().Validate(c); err != nil {
		return err
	}

	// Bucket and customer can be empty when reading from a local path.
	if c.Remote.LocalPath == "" && (c.Remote.Bucket == "") != (c.Remote.Customer == "") {
		return errors.New("CATALOG_BUCKET and CATALOG_CUSTOMER must be set together")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "ShopSight", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
