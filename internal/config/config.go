// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// KeyringService is the service name the vault registers entries under
	// in the platform secret store.
	KeyringService string
	// KeyringBackend selects the secret-store backend ("system" or "memory").
	// The memory backend exists for tests and CI environments without a keyring daemon.
	KeyringBackend string

	// CipherAlgorithm is the AEAD used for credential blobs
	// ("aes-gcm" or "chacha20-poly1305").
	CipherAlgorithm string

	// KMSKeyURI is an optional gocloud.dev secrets keeper URI. When set, master
	// key material is wrapped by the keeper before being placed in the keyring.
	KMSKeyURI string

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Secret store configuration
		KeyringService: env.GetString("KEYRING_SERVICE", "pgquerytool-credvault"),
		KeyringBackend: env.GetString("KEYRING_BACKEND", "system"),

		// Cipher configuration
		CipherAlgorithm: env.GetString("CIPHER_ALGORITHM", "aes-gcm"),

		// KMS configuration
		KMSKeyURI: env.GetString("KMS_KEY_URI", ""),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", false),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "credvault"),
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}
