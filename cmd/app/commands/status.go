package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/pgquerytool/credvault/internal/config"
	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

// RunStatus prints the vault configuration and how many profiles it holds.
func RunStatus(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	cfg *config.Config,
	out io.Writer,
) error {
	profiles, err := useCase.ListStoredProfiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	_, _ = fmt.Fprintf(out, "Keyring service: %s\n", cfg.KeyringService)
	_, _ = fmt.Fprintf(out, "Keyring backend: %s\n", cfg.KeyringBackend)
	_, _ = fmt.Fprintf(out, "Cipher:          %s\n", cfg.CipherAlgorithm)
	if cfg.KMSKeyURI != "" {
		_, _ = fmt.Fprintln(out, "KMS wrapping:    enabled")
	} else {
		_, _ = fmt.Fprintln(out, "KMS wrapping:    disabled")
	}
	_, _ = fmt.Fprintf(out, "Stored profiles: %d\n", len(profiles))

	return nil
}
