package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/ferrite-sync/ferrite/internal/config"
	"github.com/ferrite-sync/ferrite/internal/db"
	"github.com/ferrite-sync/ferrite/internal/remote"
	"github.com/ferrite-sync/ferrite/internal/secrets"
	"github.com/ferrite-sync/ferrite/internal/sync"
	"github.com/spf13/cobra"
)

var (
	addedMark    = color.New(color.FgGreen).SprintFunc()
	modifiedMark = color.New(color.FgYellow).SprintFunc()
	removedMark  = color.New(color.FgRed).SprintFunc()
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <connection> [scope...]",
		Short: "Run one reconcile pass and print the detected changes",
		Long: "Runs a single reconcile pass against the named connection without starting the daemon.\n" +
			"Scopes default to all scopes configured for the connection.",
		Args: cobra.MinimumNArgs(1),
		RunE: runSync,
	}
	cmd.Flags().Bool("dry-run", false, "Diff against the stored anchor without updating it")
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	conn, ok := cfg.Connection(args[0])
	if !ok {
		return fmt.Errorf("no connection named %q in config", args[0])
	}
	scopes := args[1:]
	if len(scopes) == 0 {
		scopes = conn.Scopes
	}

	store := secrets.NewFileStore(filepath.Join(cfg.StateDir, "credentials.json"))
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	statedb, err := db.NewSqliteDB(
		db.WithPath(filepath.Join(cfg.StateDir, "state.db")),
		db.WithMaxOpenConns(1),
	)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer statedb.Close()

	var anchors sync.AnchorPersistence
	persisted, err := sync.NewAnchorStore(statedb)
	if err != nil {
		return err
	}
	anchors = persisted
	if dryRun {
		// Diff against the real anchors, but write the result to a
		// throwaway store so the daemon's baseline is untouched.
		anchors = shadowAnchors{read: persisted, write: sync.NewMemoryAnchorStore()}
	}

	var codec sync.Codec = sync.PathCodec{}
	if cfg.IdentifierScheme == config.IdentifierDigest {
		codec, err = sync.NewDigestCodec(statedb)
		if err != nil {
			return err
		}
	}

	fs := remote.NewSFTPClient(remote.SFTPConfig{
		Host: conn.Host,
		Port: conn.Port,
		AuthFunc: func(ctx context.Context) (remote.Auth, error) {
			return connAuth(conn, store)
		},
	})
	defer fs.Close()

	recon := sync.NewReconciler(sync.NewListingAdapter(fs, codec), anchors)

	out := cmd.OutOrStdout()
	for _, scope := range scopes {
		changes, _, err := recon.Reconcile(cmd.Context(), scope, nil)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", scope, err)
		}
		printChanges(out, scope, changes)
	}
	return nil
}

// connAuth resolves the connection's stored credential into an SSH auth
// bundle, mirroring what the daemon does on every dial.
func connAuth(conn *config.Connection, store secrets.Store) (remote.Auth, error) {
	cred, err := store.Get(conn.ID)
	if err != nil {
		return remote.Auth{}, fmt.Errorf("credential for %s: %w", conn.Name, err)
	}
	auth := remote.Auth{Username: conn.Username}
	if conn.Auth == config.AuthPrivateKey {
		auth.PrivateKey = cred.PrivateKey
		auth.Passphrase = cred.Passphrase
	} else {
		auth.Password = cred.Password
	}
	return auth, nil
}

func printChanges(w io.Writer, scope string, changes *sync.ChangeSet) {
	if changes.IsEmpty() {
		fmt.Fprintf(w, "%s: no changes\n", scope)
		return
	}

	fmt.Fprintf(w, "%s: %d added, %d modified, %d removed\n",
		scope, len(changes.Added), len(changes.Modified), len(changes.Removed))

	for _, e := range changes.Added {
		fmt.Fprintf(w, "  %s %s\n", addedMark("+"), describeEntry(e))
	}
	for _, e := range changes.Modified {
		fmt.Fprintf(w, "  %s %s\n", modifiedMark("~"), describeEntry(e))
	}
	for _, id := range changes.Removed {
		fmt.Fprintf(w, "  %s %s\n", removedMark("-"), id)
	}
}

func describeEntry(e *sync.Entry) string {
	if e.IsDir {
		return fmt.Sprintf("%s/ (modified %s)", e.AbsolutePath, humanize.Time(e.ModifiedAt))
	}
	return fmt.Sprintf("%s (%s, modified %s)", e.AbsolutePath, humanize.IBytes(e.Size), humanize.Time(e.ModifiedAt))
}

// shadowAnchors reads from the persisted store and diverts writes, so a
// dry run sees real baselines without advancing them.
type shadowAnchors struct {
	read  sync.AnchorPersistence
	write sync.AnchorPersistence
}

func (s shadowAnchors) Get(scope string) ([]byte, error) { return s.read.Get(scope) }
func (s shadowAnchors) Set(scope string, b []byte) error { return s.write.Set(scope, b) }
func (s shadowAnchors) Delete(scope string) error        { return s.write.Delete(scope) }
