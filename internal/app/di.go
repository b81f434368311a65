// Package app provides the dependency injection container for assembling
// vault components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pgquerytool/credvault/internal/config"
	"github.com/pgquerytool/credvault/internal/keyring"
	"github.com/pgquerytool/credvault/internal/metrics"
	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
	vaultService "github.com/pgquerytool/credvault/internal/vault/service"
	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

// Container holds all application dependencies and provides methods to access
// them. It follows the lazy initialization pattern - components are created on
// first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	secretStore     keyring.SecretStore
	kmsKeeper       vaultService.KMSKeeper
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Services
	aeadManager      vaultService.AEADManager
	credentialCipher vaultService.CredentialCipher
	masterKeyManager vaultService.MasterKeyManager

	// Use Cases
	vaultUseCase vaultUsecase.VaultUseCase

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	secretStoreInit      sync.Once
	kmsKeeperInit        sync.Once
	metricsProviderInit  sync.Once
	businessMetricsInit  sync.Once
	aeadManagerInit      sync.Once
	credentialCipherInit sync.Once
	masterKeyManagerInit sync.Once
	vaultUseCaseInit     sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided
// configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// SecretStore returns the platform secret store backend.
func (c *Container) SecretStore() (keyring.SecretStore, error) {
	c.secretStoreInit.Do(func() {
		store, err := c.initSecretStore()
		if err != nil {
			c.initErrors["secretStore"] = err
			return
		}
		c.secretStore = store
	})
	if storedErr, exists := c.initErrors["secretStore"]; exists {
		return nil, storedErr
	}
	return c.secretStore, nil
}

// KMSKeeper returns the keeper wrapping master key material, or nil when no
// KMS is configured.
func (c *Container) KMSKeeper(ctx context.Context) (vaultService.KMSKeeper, error) {
	c.kmsKeeperInit.Do(func() {
		if c.config.KMSKeyURI == "" {
			return
		}
		keeper, err := vaultService.NewKMSService().OpenKeeper(ctx, c.config.KMSKeyURI)
		if err != nil {
			c.initErrors["kmsKeeper"] = fmt.Errorf("failed to open KMS keeper: %w", err)
			return
		}
		c.kmsKeeper = keeper
	})
	if storedErr, exists := c.initErrors["kmsKeeper"]; exists {
		return nil, storedErr
	}
	return c.kmsKeeper, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		provider, err := metrics.NewProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. When metrics are
// disabled it returns a no-op implementation.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		if !c.config.MetricsEnabled {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}
		c.businessMetrics = bm
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// AEADManager returns the AEAD manager service.
func (c *Container) AEADManager() vaultService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = vaultService.NewAEADManager()
	})
	return c.aeadManager
}

// CredentialCipher returns the credential cipher service.
func (c *Container) CredentialCipher() (vaultService.CredentialCipher, error) {
	c.credentialCipherInit.Do(func() {
		alg := vaultDomain.Algorithm(c.config.CipherAlgorithm)
		switch alg {
		case vaultDomain.AESGCM, vaultDomain.ChaCha20:
		default:
			c.initErrors["credentialCipher"] = fmt.Errorf(
				"%w: %q", vaultDomain.ErrUnsupportedAlgorithm, c.config.CipherAlgorithm)
			return
		}
		c.credentialCipher = vaultService.NewCredentialCipher(c.AEADManager(), alg)
	})
	if storedErr, exists := c.initErrors["credentialCipher"]; exists {
		return nil, storedErr
	}
	return c.credentialCipher, nil
}

// MasterKeyManager returns the master key manager service.
func (c *Container) MasterKeyManager(ctx context.Context) (vaultService.MasterKeyManager, error) {
	c.masterKeyManagerInit.Do(func() {
		store, err := c.SecretStore()
		if err != nil {
			c.initErrors["masterKeyManager"] = err
			return
		}
		keeper, err := c.KMSKeeper(ctx)
		if err != nil {
			c.initErrors["masterKeyManager"] = err
			return
		}
		c.masterKeyManager = vaultService.NewMasterKeyManager(store, keeper)
	})
	if storedErr, exists := c.initErrors["masterKeyManager"]; exists {
		return nil, storedErr
	}
	return c.masterKeyManager, nil
}

// VaultUseCase returns the vault use case instance.
func (c *Container) VaultUseCase(ctx context.Context) (vaultUsecase.VaultUseCase, error) {
	c.vaultUseCaseInit.Do(func() {
		useCase, err := c.initVaultUseCase(ctx)
		if err != nil {
			c.initErrors["vaultUseCase"] = err
			return
		}
		c.vaultUseCase = useCase
	})
	if storedErr, exists := c.initErrors["vaultUseCase"]; exists {
		return nil, storedErr
	}
	return c.vaultUseCase, nil
}

// initVaultUseCase assembles the vault use case from its dependencies.
func (c *Container) initVaultUseCase(ctx context.Context) (vaultUsecase.VaultUseCase, error) {
	store, err := c.SecretStore()
	if err != nil {
		return nil, err
	}
	keyManager, err := c.MasterKeyManager(ctx)
	if err != nil {
		return nil, err
	}
	cipher, err := c.CredentialCipher()
	if err != nil {
		return nil, err
	}

	baseUseCase := vaultUsecase.NewVaultUseCase(store, keyManager, cipher)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for vault use case: %w", err)
		}
		return vaultUsecase.NewVaultUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Zeroize cached key material first.
	if c.vaultUseCase != nil {
		c.vaultUseCase.Close()
	} else if c.masterKeyManager != nil {
		c.masterKeyManager.Close()
	}

	if c.kmsKeeper != nil {
		if err := c.kmsKeeper.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kms keeper close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initSecretStore creates the configured secret store backend.
func (c *Container) initSecretStore() (keyring.SecretStore, error) {
	switch c.config.KeyringBackend {
	case "system":
		return keyring.NewSystemStore(c.config.KeyringService), nil
	case "memory":
		return keyring.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported keyring backend: %s", c.config.KeyringBackend)
	}
}
