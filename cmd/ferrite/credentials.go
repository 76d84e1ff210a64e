package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/ferrite-sync/ferrite/internal/secrets"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newCredentialsCmd())
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage stored connection credentials",
	}
	cmd.AddCommand(newCredentialsSetCmd(), newCredentialsDeleteCmd())
	return cmd
}

func newCredentialsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <connection>",
		Short: "Store a password or private key for a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			conn, ok := cfg.Connection(args[0])
			if !ok {
				return fmt.Errorf("no connection named %q in config", args[0])
			}

			password, _ := cmd.Flags().GetString("password")
			keyFile, _ := cmd.Flags().GetString("key-file")
			passphrase, _ := cmd.Flags().GetString("passphrase")
			if password == "" && keyFile == "" {
				return fmt.Errorf("one of --password or --key-file is required")
			}

			cred := &secrets.Credential{Password: password}
			if keyFile != "" {
				key, err := os.ReadFile(keyFile)
				if err != nil {
					return fmt.Errorf("read key file: %w", err)
				}
				cred.PrivateKey = key
				cred.Passphrase = []byte(passphrase)
			}

			store := secrets.NewFileStore(filepath.Join(cfg.StateDir, "credentials.json"))
			if err := store.Set(conn.ID, cred); err != nil {
				return fmt.Errorf("store credential: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Stored credential for %s\n", conn.Name)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password for the connection")
	cmd.Flags().String("key-file", "", "Path to an SSH private key file")
	cmd.Flags().String("passphrase", "", "Passphrase for the private key")
	return cmd
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <connection>",
		Short: "Remove the stored credential for a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			conn, ok := cfg.Connection(args[0])
			if !ok {
				return fmt.Errorf("no connection named %q in config", args[0])
			}

			store := secrets.NewFileStore(filepath.Join(cfg.StateDir, "credentials.json"))
			if err := store.Delete(conn.ID); err != nil {
				return fmt.Errorf("delete credential: %w", err)
			}

			color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "Removed credential for %s\n", conn.Name)
			return nil
		},
	}
}
