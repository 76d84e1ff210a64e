package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/ferrite-sync/ferrite/internal/notify"
	"github.com/ferrite-sync/ferrite/internal/remote"
)

const (
	defaultMaxRetries   = 2
	defaultRetryBackoff = 500 * time.Millisecond
)

// DeliverFunc receives the change set before the new anchor is persisted.
// Returning an error aborts the cycle with the stored anchor untouched,
// so the changes are re-reported next time instead of silently lost.
type DeliverFunc func(*ChangeSet) error

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithNotifier sets the hook fired after a pass with a non-empty change set.
func WithNotifier(n notify.Notifier) ReconcilerOption {
	return func(r *Reconciler) {
		r.notifier = n
	}
}

// WithRetries bounds the retry count for unreachable-class failures.
func WithRetries(n int) ReconcilerOption {
	return func(r *Reconciler) {
		r.maxRetries = n
	}
}

// WithRetryBackoff sets the base delay between retries. The delay grows
// linearly with the attempt number.
func WithRetryBackoff(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.backoff = d
	}
}

// Reconciler drives the per-scope sync cycle: load the previous anchor,
// fetch a fresh listing, diff, deliver the change set, persist the new
// anchor. Reconciliations for the same scope are serialized through a
// per-scope lock; distinct scopes run fully in parallel.
type Reconciler struct {
	adapter    *ListingAdapter
	anchors    AnchorPersistence
	notifier   notify.Notifier
	maxRetries int
	backoff    time.Duration

	mu         stdsync.Mutex
	scopeLocks map[string]*stdsync.Mutex
}

func NewReconciler(adapter *ListingAdapter, anchors AnchorPersistence, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		adapter:    adapter,
		anchors:    anchors,
		notifier:   notify.Discard{},
		maxRetries: defaultMaxRetries,
		backoff:    defaultRetryBackoff,
		scopeLocks: make(map[string]*stdsync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile runs one sync cycle for scope and returns the change set plus
// the new anchor bytes. deliver may be nil, in which case returning the
// change set is the delivery.
//
// Failure policy: unreachable-class listing errors are retried with
// backoff up to the configured bound; auth and permission failures
// surface immediately so the caller can prompt for re-authentication
// instead of spinning. A scope that no longer exists remotely is not an
// error: it yields a removed-all change set. Cancellation mid-listing
// leaves the stored anchor untouched.
func (r *Reconciler) Reconcile(ctx context.Context, scope string, deliver DeliverFunc) (*ChangeSet, []byte, error) {
	scope = NormalizePath(scope)

	lock := r.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	tStart := time.Now()

	prevBytes, err := r.anchors.Get(scope)
	if err != nil {
		return nil, nil, fmt.Errorf("load anchor for %s: %w", scope, err)
	}
	// Corrupt or mismatched anchors decode to nil: first observation.
	previous := DecodeAnchor(prevBytes, scope)

	tList := time.Now()
	entries, err := r.listWithRetry(ctx, scope)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			// The scope itself is gone. The caller's view must reflect the
			// deletion, so this becomes a removed-all change set rather
			// than an error.
			slog.Info("scope no longer exists remotely", "scope", scope)
			entries = nil
		} else {
			return nil, nil, err
		}
	}
	listDuration := time.Since(tList)

	current := snapshotFromEntries(scope, entries)

	tDiff := time.Now()
	changes := Diff(previous, current)
	diffDuration := time.Since(tDiff)

	anchorBytes, err := EncodeAnchor(current)
	if err != nil {
		// In-memory encode failure is a defect, not an operational state.
		return nil, nil, fmt.Errorf("encode anchor for %s: %w", scope, err)
	}

	if deliver != nil {
		if err := deliver(changes); err != nil {
			return nil, nil, fmt.Errorf("deliver change set for %s: %w", scope, err)
		}
	}

	// Persist only after delivery: an anchor written for an undelivered
	// change set would silently drop those changes on the next cycle.
	if err := r.anchors.Set(scope, anchorBytes); err != nil {
		return nil, nil, fmt.Errorf("persist anchor for %s: %w", scope, err)
	}

	if !changes.IsEmpty() {
		r.notifier.Signal(scope)
		slog.Info("reconciled scope",
			"scope", scope,
			"added", len(changes.Added),
			"modified", len(changes.Modified),
			"removed", len(changes.Removed),
			"entries", current.Len(),
			"tsList", listDuration,
			"tsDiff", diffDuration,
			"tsTotal", time.Since(tStart),
		)
	} else {
		slog.Debug("reconciled scope, no changes", "scope", scope, "entries", current.Len(), "tsTotal", time.Since(tStart))
	}

	return changes, anchorBytes, nil
}

// ListScope returns the full current listing of a scope without touching
// anchors. Used for first-time population and full refresh.
func (r *Reconciler) ListScope(ctx context.Context, scope string) ([]*Entry, error) {
	return r.listWithRetry(ctx, NormalizePath(scope))
}

func (r *Reconciler) listWithRetry(ctx context.Context, scope string) ([]*Entry, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := r.waitBackoff(ctx, attempt); err != nil {
				return nil, err
			}
			slog.Debug("retrying listing", "scope", scope, "attempt", attempt)
		}

		entries, err := r.adapter.List(ctx, scope)
		if err == nil {
			return entries, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !remote.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// waitBackoff sleeps for attempt*backoff, honoring cancellation.
func (r *Reconciler) waitBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * r.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Reconciler) scopeLock(scope string) *stdsync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.scopeLocks[scope]
	if !ok {
		lock = &stdsync.Mutex{}
		r.scopeLocks[scope] = lock
	}
	return lock
}
