// Package notify defines the change-notification hook the reconciliation
// driver fires after a pass that produced a non-empty change set. The host
// (a file-provider shim, a CLI, a test) decides what a signal means.
package notify

import "log/slog"

// Notifier receives the scope path of a directory whose contents changed.
type Notifier interface {
	Signal(scope string)
}

// Func adapts a plain function to the Notifier interface.
type Func func(scope string)

func (f Func) Signal(scope string) {
	f(scope)
}

// LogNotifier logs each signal. Useful as a default when no host hook is
// wired.
type LogNotifier struct{}

func (LogNotifier) Signal(scope string) {
	slog.Info("scope changed", "scope", scope)
}

// Multi fans a signal out to several notifiers.
type Multi []Notifier

func (m Multi) Signal(scope string) {
	for _, n := range m {
		n.Signal(scope)
	}
}

// Discard drops all signals.
type Discard struct{}

func (Discard) Signal(string) {}
