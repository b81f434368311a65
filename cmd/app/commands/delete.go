package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

// RunDelete removes the stored credentials for a profile.
func RunDelete(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	logger *slog.Logger,
	out io.Writer,
	profileID string,
) error {
	if err := useCase.DeleteCredentials(ctx, profileID); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	logger.Info("credentials deleted", slog.String("profile_id", profileID))
	_, _ = fmt.Fprintf(out, "Credentials deleted for profile %q\n", profileID)

	return nil
}
