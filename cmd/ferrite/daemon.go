package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/ferrite-sync/ferrite/internal/daemon"
	"github.com/ferrite-sync/ferrite/internal/secrets"
	"github.com/ferrite-sync/ferrite/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Start the Ferrite sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			color.New(color.FgHiCyan, color.Bold).Fprintln(cmd.OutOrStdout(), version.ShortWithApp())
			slog.Info("ferrite", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			store := secrets.NewFileStore(filepath.Join(cfg.StateDir, "credentials.json"))
			d, err := daemon.New(cfg, store)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := d.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon start", "error", err)
				return err
			}
			return nil
		},
	}
}
