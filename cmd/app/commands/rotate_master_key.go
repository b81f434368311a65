package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

// RunRotateMasterKey generates a new master key and rewraps every stored
// profile under it. On a partial rotation the previous key is retained and the
// report names the profiles that still need migration; rerunning the command
// retries them.
func RunRotateMasterKey(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	logger *slog.Logger,
	out io.Writer,
) error {
	logger.Info("rotating master key")

	report, err := useCase.RotateMasterKey(ctx)
	if err != nil && !errors.Is(err, vaultDomain.ErrRotationIncomplete) {
		return fmt.Errorf("failed to rotate master key: %w", err)
	}

	if report.NewKeyID != "" {
		_, _ = fmt.Fprintf(out, "New master key: %s\n", report.NewKeyID)
	}
	_, _ = fmt.Fprintf(out, "Migrated profiles: %d\n", len(report.Migrated))
	for _, id := range report.Migrated {
		_, _ = fmt.Fprintf(out, "  %s\n", id)
	}

	if report.Ok() && err == nil {
		logger.Info("master key rotated",
			slog.String("new_key_id", report.NewKeyID),
			slog.Int("migrated", len(report.Migrated)),
		)
		_, _ = fmt.Fprintln(out, "Rotation complete")
		return nil
	}

	_, _ = fmt.Fprintf(out, "Failed profiles: %d\n", len(report.Failed))
	for _, failure := range report.Failed {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", failure.ProfileID, failure.Reason)
	}
	_, _ = fmt.Fprintln(out, "Rotation incomplete, the previous key was retained. Rerun after fixing the failed profiles.")

	logger.Error("master key rotation incomplete",
		slog.Int("migrated", len(report.Migrated)),
		slog.Int("failed", len(report.Failed)),
	)

	return err
}
