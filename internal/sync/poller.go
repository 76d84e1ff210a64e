package sync

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/ferrite-sync/ferrite/internal/bus"
	"golang.org/x/sync/errgroup"
)

// scopeConcurrency bounds how many scopes of one connection reconcile at
// once. Scopes share the transport connection, so unbounded fan-out just
// queues on the wire.
const scopeConcurrency = 4

// Poller periodically reconciles every scope of one connection and
// publishes the outcome of each pass on the event bus.
type Poller struct {
	connectionID string
	recon        *Reconciler
	scopes       []string
	interval     time.Duration
	events       *bus.Bus
	wg           stdsync.WaitGroup
}

func NewPoller(connectionID string, recon *Reconciler, scopes []string, interval time.Duration, events *bus.Bus) *Poller {
	return &Poller{
		connectionID: connectionID,
		recon:        recon,
		scopes:       scopes,
		interval:     interval,
		events:       events,
	}
}

// Start runs an initial pass synchronously, then polls until ctx is
// cancelled.
func (p *Poller) Start(ctx context.Context) error {
	slog.Info("poller start", "connection", p.connectionID, "scopes", len(p.scopes), "interval", p.interval)

	if err := p.runPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial reconcile pass", "connection", p.connectionID, "error", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// using a timer and not a ticker to avoid queued ticks when a
		// pass takes longer than the interval
		timer := time.NewTimer(p.interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if err := p.runPass(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("reconcile pass", "connection", p.connectionID, "error", err)
				}
				timer.Reset(p.interval)
			}
		}
	}()

	return nil
}

// Stop waits for the poll loop to exit. Cancel the Start context first.
func (p *Poller) Stop() {
	p.wg.Wait()
	slog.Info("poller stop", "connection", p.connectionID)
}

// runPass reconciles all scopes. A failing scope is logged and does not
// abort its siblings.
func (p *Poller) runPass(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scopeConcurrency)

	for _, scope := range p.scopes {
		g.Go(func() error {
			changes, _, err := p.recon.Reconcile(ctx, scope, nil)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				slog.Warn("scope reconcile failed", "connection", p.connectionID, "scope", scope, "error", err)
				return nil
			}

			p.events.Publish(&bus.Event{
				ConnectionID: p.connectionID,
				Scope:        NormalizePath(scope),
				Added:        len(changes.Added),
				Modified:     len(changes.Modified),
				Removed:      len(changes.Removed),
				At:           time.Now(),
			})
			return nil
		})
	}

	return g.Wait()
}
