package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

// RunRetrieve decrypts and prints the credentials stored for a profile.
// The password is masked unless showPassword is set.
func RunRetrieve(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	logger *slog.Logger,
	out io.Writer,
	profileID string,
	showPassword bool,
) error {
	creds, err := useCase.RetrieveCredentials(ctx, profileID)
	if err != nil {
		return fmt.Errorf("failed to retrieve credentials: %w", err)
	}
	defer creds.Zeroize()

	logger.Info("credentials retrieved", slog.String("profile_id", profileID))

	_, _ = fmt.Fprintf(out, "Profile:      %s\n", profileID)
	_, _ = fmt.Fprintf(out, "Username:     %s\n", creds.Username)
	if showPassword {
		_, _ = fmt.Fprintf(out, "Password:     %s\n", creds.Password)
	} else {
		_, _ = fmt.Fprintln(out, "Password:     ******** (use --show-password to reveal)")
	}
	_, _ = fmt.Fprintf(out, "Encrypted at: %s\n", creds.EncryptedAt.Format("2006-01-02 15:04:05 MST"))

	return nil
}

// RunHas reports whether a profile has stored credentials.
func RunHas(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	out io.Writer,
	profileID string,
) error {
	if useCase.HasCredentials(ctx, profileID) {
		_, _ = fmt.Fprintf(out, "Profile %q has stored credentials\n", profileID)
	} else {
		_, _ = fmt.Fprintf(out, "Profile %q has no stored credentials\n", profileID)
	}
	return nil
}

// RunList prints every profile with stored credentials.
func RunList(
	ctx context.Context,
	useCase vaultUsecase.VaultUseCase,
	out io.Writer,
) error {
	profiles, err := useCase.ListStoredProfiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(profiles) == 0 {
		_, _ = fmt.Fprintln(out, "No stored profiles")
		return nil
	}

	for _, id := range profiles {
		_, _ = fmt.Fprintln(out, id)
	}
	return nil
}
