// Package daemon wires the configured connections into running pollers:
// config -> secret store -> SFTP clients -> reconcilers -> poll loops,
// with a shared SQLite state database and an event bus for observers.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ferrite-sync/ferrite/internal/bus"
	"github.com/ferrite-sync/ferrite/internal/config"
	"github.com/ferrite-sync/ferrite/internal/db"
	"github.com/ferrite-sync/ferrite/internal/notify"
	"github.com/ferrite-sync/ferrite/internal/remote"
	"github.com/ferrite-sync/ferrite/internal/secrets"
	"github.com/ferrite-sync/ferrite/internal/sync"
	"github.com/ferrite-sync/ferrite/internal/utils"
	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
)

type Daemon struct {
	cfg     *config.Config
	store   secrets.Store
	events  *bus.Bus
	lock    *flock.Flock
	statedb *sqlx.DB
	remotes []remote.Filesystem
	pollers []*sync.Poller
}

func New(cfg *config.Config, store secrets.Store) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Daemon{
		cfg:    cfg,
		store:  store,
		events: bus.New(),
	}, nil
}

// Events is the bus reconcile outcomes are published on.
func (d *Daemon) Events() *bus.Bus {
	return d.events
}

// Start brings up all pollers and blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if err := utils.EnsureDir(d.cfg.StateDir); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	// One daemon per state dir: concurrent anchor writers would violate
	// the per-scope read-modify-write ordering.
	d.lock = flock.New(filepath.Join(d.cfg.StateDir, "ferrite.lock"))
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance is already running against %s", d.cfg.StateDir)
	}

	// A startup failure past this point must not leave the instance lock
	// or half-opened resources behind.
	ready := false
	defer func() {
		if ready {
			return
		}
		for _, fs := range d.remotes {
			fs.Close()
		}
		if d.statedb != nil {
			d.statedb.Close()
		}
		d.lock.Unlock()
	}()

	d.statedb, err = db.NewSqliteDB(
		db.WithPath(filepath.Join(d.cfg.StateDir, "state.db")),
		db.WithMaxOpenConns(1),
	)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}

	anchors, err := sync.NewAnchorStore(d.statedb)
	if err != nil {
		return err
	}

	codec, err := d.codec()
	if err != nil {
		return err
	}

	for _, conn := range d.cfg.Connections {
		fs := remote.NewSFTPClient(remote.SFTPConfig{
			Host:     conn.Host,
			Port:     conn.Port,
			AuthFunc: d.authFunc(conn),
		})
		d.remotes = append(d.remotes, fs)

		adapter := sync.NewListingAdapter(fs, codec)
		recon := sync.NewReconciler(adapter, anchors, sync.WithNotifier(notify.LogNotifier{}))
		poller := sync.NewPoller(conn.ID, recon, conn.Scopes, d.cfg.PollInterval.Duration(), d.events)
		d.pollers = append(d.pollers, poller)
	}

	slog.Info("daemon start", "connections", len(d.pollers), "interval", d.cfg.PollInterval.Duration())
	for _, poller := range d.pollers {
		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
	}

	ready = true
	<-ctx.Done()
	return d.shutdown()
}

func (d *Daemon) codec() (sync.Codec, error) {
	switch d.cfg.IdentifierScheme {
	case config.IdentifierDigest:
		return sync.NewDigestCodec(d.statedb)
	default:
		return sync.PathCodec{}, nil
	}
}

// authFunc fetches the connection's credential on every dial so rotations
// are picked up without a restart.
func (d *Daemon) authFunc(conn config.Connection) remote.AuthFunc {
	return func(ctx context.Context) (remote.Auth, error) {
		cred, err := d.store.Get(conn.ID)
		if err != nil {
			return remote.Auth{}, err
		}
		auth := remote.Auth{Username: conn.Username}
		switch conn.Auth {
		case config.AuthPrivateKey:
			auth.PrivateKey = cred.PrivateKey
			auth.Passphrase = cred.Passphrase
		default:
			auth.Password = cred.Password
		}
		return auth, nil
	}
}

func (d *Daemon) shutdown() error {
	slog.Info("daemon stop")

	for _, poller := range d.pollers {
		poller.Stop()
	}
	for _, fs := range d.remotes {
		if err := fs.Close(); err != nil {
			slog.Warn("close remote", "error", err)
		}
	}
	d.events.Close()

	var firstErr error
	if d.statedb != nil {
		if err := d.statedb.Close(); err != nil {
			firstErr = err
		}
	}
	if d.lock != nil {
		if err := d.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
