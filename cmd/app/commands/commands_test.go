package commands

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgquerytool/credvault/internal/config"
	"github.com/pgquerytool/credvault/internal/keyring"
	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
	vaultService "github.com/pgquerytool/credvault/internal/vault/service"
	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

func newTestUseCase(t *testing.T) vaultUsecase.VaultUseCase {
	t.Helper()

	store := keyring.NewMemoryStore()
	keyManager := vaultService.NewMasterKeyManager(store, nil)
	cipher := vaultService.NewCredentialCipher(vaultService.NewAEADManager(), vaultDomain.AESGCM)
	useCase := vaultUsecase.NewVaultUseCase(store, keyManager, cipher)
	t.Cleanup(useCase.Close)
	return useCase
}

func TestRunStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success-password-flag", func(t *testing.T) {
		useCase := newTestUseCase(t)
		var out bytes.Buffer

		err := RunStore(ctx, useCase, logger, strings.NewReader(""), &out, "prod-db", "admin", "s3cret")

		require.NoError(t, err)
		assert.Contains(t, out.String(), `Credentials stored for profile "prod-db"`)
		assert.True(t, useCase.HasCredentials(ctx, "prod-db"))
	})

	t.Run("success-password-prompt", func(t *testing.T) {
		useCase := newTestUseCase(t)
		var out bytes.Buffer

		err := RunStore(ctx, useCase, logger, strings.NewReader("prompted-pw\n"), &out, "prod-db", "admin", "")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Password: ")

		creds, err := useCase.RetrieveCredentials(ctx, "prod-db")
		require.NoError(t, err)
		defer creds.Zeroize()
		assert.Equal(t, []byte("prompted-pw"), creds.Password)
	})

	t.Run("error-empty-profile-id", func(t *testing.T) {
		useCase := newTestUseCase(t)
		var out bytes.Buffer

		err := RunStore(ctx, useCase, logger, strings.NewReader(""), &out, "", "admin", "pw")

		require.Error(t, err)
	})

	t.Run("error-no-password", func(t *testing.T) {
		useCase := newTestUseCase(t)
		var out bytes.Buffer

		err := RunStore(ctx, useCase, logger, strings.NewReader(""), &out, "prod-db", "admin", "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no password provided")
	})
}

func TestRunUpdate(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		useCase := newTestUseCase(t)
		var out bytes.Buffer

		require.NoError(t, RunStore(ctx, useCase, logger, strings.NewReader(""), &out, "prod-db", "admin", "old"))
		require.NoError(t, RunUpdate(ctx, useCase, logger, strings.NewReader(""), &out, "prod-db", "admin", "new"))

		creds, err := useCase.RetrieveCredentials(ctx, "prod-db")
		require.NoError(t, err)
		defer creds.Zeroize()
		assert.Equal(t, []byte("new"), creds.Password)
	})

	t.Run("error-missing-profile", func(t *testing.T) {
		useCase := newTestUseCase(t)
		var out bytes.Buffer

		err := RunUpdate(ctx, useCase, logger, strings.NewReader(""), &out, "missing", "admin", "pw")

		require.ErrorIs(t, err, vaultDomain.ErrProfileNotFound)
	})
}

func TestRunRetrieve(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success-masked-password", func(t *testing.T) {
		useCase := newTestUseCase(t)
		require.NoError(t, useCase.StoreCredentials(ctx, "prod-db", "admin", []byte("s3cret")))

		var out bytes.Buffer
		err := RunRetrieve(ctx, useCase, logger, &out, "prod-db", false)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Username:     admin")
		assert.Contains(t, out.String(), "********")
		assert.NotContains(t, out.String(), "s3cret")
	})

	t.Run("success-show-password", func(t *testing.T) {
		useCase := newTestUseCase(t)
		require.NoError(t, useCase.StoreCredentials(ctx, "prod-db", "admin", []byte("s3cret")))

		var out bytes.Buffer
		err := RunRetrieve(ctx, useCase, logger, &out, "prod-db", true)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "s3cret")
	})

	t.Run("error-missing-profile", func(t *testing.T) {
		useCase := newTestUseCase(t)

		var out bytes.Buffer
		err := RunRetrieve(ctx, useCase, logger, &out, "missing", false)

		require.ErrorIs(t, err, vaultDomain.ErrProfileNotFound)
	})
}

func TestRunDelete(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		useCase := newTestUseCase(t)
		require.NoError(t, useCase.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))

		var out bytes.Buffer
		err := RunDelete(ctx, useCase, logger, &out, "prod-db")

		require.NoError(t, err)
		assert.False(t, useCase.HasCredentials(ctx, "prod-db"))
	})

	t.Run("error-missing-profile", func(t *testing.T) {
		useCase := newTestUseCase(t)

		var out bytes.Buffer
		err := RunDelete(ctx, useCase, logger, &out, "missing")

		require.ErrorIs(t, err, vaultDomain.ErrProfileNotFound)
	})
}

func TestRunHas(t *testing.T) {
	ctx := context.Background()
	useCase := newTestUseCase(t)
	require.NoError(t, useCase.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))

	var out bytes.Buffer
	require.NoError(t, RunHas(ctx, useCase, &out, "prod-db"))
	assert.Contains(t, out.String(), "has stored credentials")

	out.Reset()
	require.NoError(t, RunHas(ctx, useCase, &out, "missing"))
	assert.Contains(t, out.String(), "has no stored credentials")
}

func TestRunList(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		useCase := newTestUseCase(t)

		var out bytes.Buffer
		require.NoError(t, RunList(ctx, useCase, &out))
		assert.Contains(t, out.String(), "No stored profiles")
	})

	t.Run("sorted", func(t *testing.T) {
		useCase := newTestUseCase(t)
		require.NoError(t, useCase.StoreCredentials(ctx, "staging", "admin", []byte("pw")))
		require.NoError(t, useCase.StoreCredentials(ctx, "analytics", "admin", []byte("pw")))

		var out bytes.Buffer
		require.NoError(t, RunList(ctx, useCase, &out))
		assert.Equal(t, "analytics\nstaging\n", out.String())
	})
}

func TestRunStatus(t *testing.T) {
	ctx := context.Background()
	useCase := newTestUseCase(t)
	require.NoError(t, useCase.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))

	cfg := &config.Config{
		KeyringService:  "credvault-test",
		KeyringBackend:  "memory",
		CipherAlgorithm: "aes-gcm",
	}

	var out bytes.Buffer
	require.NoError(t, RunStatus(ctx, useCase, cfg, &out))

	assert.Contains(t, out.String(), "Keyring backend: memory")
	assert.Contains(t, out.String(), "KMS wrapping:    disabled")
	assert.Contains(t, out.String(), "Stored profiles: 1")
}

func TestRunRotateMasterKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("success", func(t *testing.T) {
		useCase := newTestUseCase(t)
		require.NoError(t, useCase.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))

		var out bytes.Buffer
		err := RunRotateMasterKey(ctx, useCase, logger, &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "New master key: ")
		assert.Contains(t, out.String(), "Migrated profiles: 1")
		assert.Contains(t, out.String(), "Rotation complete")

		creds, err := useCase.RetrieveCredentials(ctx, "prod-db")
		require.NoError(t, err)
		defer creds.Zeroize()
		assert.Equal(t, []byte("pw"), creds.Password)
	})

	t.Run("empty-vault", func(t *testing.T) {
		useCase := newTestUseCase(t)

		var out bytes.Buffer
		err := RunRotateMasterKey(ctx, useCase, logger, &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Migrated profiles: 0")
		assert.Contains(t, out.String(), "Rotation complete")
	})
}
