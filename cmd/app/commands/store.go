package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

// RunStore encrypts and saves credentials for a connection profile.
func RunStore(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	logger *slog.Logger,
	in io.Reader,
	out io.Writer,
	profileID, username, passwordFlag string,
) error {
	password, err := readPassword(passwordFlag, in, out)
	if err != nil {
		return err
	}

	if err := useCase.StoreCredentials(ctx, profileID, username, password); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	logger.Info("credentials stored", slog.String("profile_id", profileID))
	_, _ = fmt.Fprintf(out, "Credentials stored for profile %q\n", profileID)

	return nil
}

// RunUpdate replaces the credentials of an existing connection profile.
func RunUpdate(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	logger *slog.Logger,
	in io.Reader,
	out io.Writer,
	profileID, username, passwordFlag string,
) error {
	password, err := readPassword(passwordFlag, in, out)
	if err != nil {
		return err
	}

	if err := useCase.UpdateCredentials(ctx, profileID, username, password); err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}

	logger.Info("credentials updated", slog.String("profile_id", profileID))
	_, _ = fmt.Fprintf(out, "Credentials updated for profile %q\n", profileID)

	return nil
}
