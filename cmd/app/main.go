// Package main provides the entry point for the vault CLI.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/pgquerytool/credvault/cmd/app/commands"
	"github.com/pgquerytool/credvault/internal/app"
	"github.com/pgquerytool/credvault/internal/config"
	vaultUsecase "github.com/pgquerytool/credvault/internal/vault/usecase"
)

// withVault builds the container, resolves the vault use case, and runs fn
// with it, shutting the container down afterwards.
func withVault(ctx context.Context, fn func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	defer func() { _ = container.Shutdown(ctx) }()

	useCase, err := container.VaultUseCase(ctx)
	if err != nil {
		return err
	}
	return fn(useCase, container.Logger(), cfg)
}

func main() {
	cmd := &cli.Command{
		Name:    "credvault",
		Usage:   "Encrypted storage for database connection credentials",
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "store",
				Usage: "Encrypt and save credentials for a connection profile",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "profile",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Connection profile identifier",
					},
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Required: true,
						Usage:    "Database username",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Database password (omit to be prompted)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						io := commands.DefaultIO()
						return commands.RunStore(
							ctx, useCase, logger, io.Reader, io.Writer,
							cmd.String("profile"), cmd.String("username"), cmd.String("password"),
						)
					})
				},
			},
			{
				Name:  "get",
				Usage: "Decrypt and print the credentials stored for a profile",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "profile",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Connection profile identifier",
					},
					&cli.BoolFlag{
						Name:  "show-password",
						Usage: "Print the plaintext password instead of a mask",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						return commands.RunRetrieve(
							ctx, useCase, logger, commands.DefaultIO().Writer,
							cmd.String("profile"), cmd.Bool("show-password"),
						)
					})
				},
			},
			{
				Name:  "update",
				Usage: "Replace the credentials of an existing profile",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "profile",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Connection profile identifier",
					},
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Required: true,
						Usage:    "Database username",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Database password (omit to be prompted)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						io := commands.DefaultIO()
						return commands.RunUpdate(
							ctx, useCase, logger, io.Reader, io.Writer,
							cmd.String("profile"), cmd.String("username"), cmd.String("password"),
						)
					})
				},
			},
			{
				Name:  "delete",
				Usage: "Remove the stored credentials for a profile",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "profile",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Connection profile identifier",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						return commands.RunDelete(
							ctx, useCase, logger, commands.DefaultIO().Writer, cmd.String("profile"),
						)
					})
				},
			},
			{
				Name:  "has",
				Usage: "Check whether a profile has stored credentials",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "profile",
						Aliases:  []string{"p"},
						Required: true,
						Usage:    "Connection profile identifier",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						return commands.RunHas(ctx, useCase, commands.DefaultIO().Writer, cmd.String("profile"))
					})
				},
			},
			{
				Name:  "list",
				Usage: "List every profile with stored credentials",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						return commands.RunList(ctx, useCase, commands.DefaultIO().Writer)
					})
				},
			},
			{
				Name:  "status",
				Usage: "Show vault configuration and stored profile count",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						return commands.RunStatus(ctx, useCase, cfg, commands.DefaultIO().Writer)
					})
				},
			},
			{
				Name:  "rotate-master-key",
				Usage: "Generate a new master key and rewrap every stored profile",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withVault(ctx, func(useCase vaultUsecase.VaultUseCase, logger *slog.Logger, cfg *config.Config) error {
						return commands.RunRotateMasterKey(ctx, useCase, logger, commands.DefaultIO().Writer)
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}
