package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"

	"github.com/pkg/sftp"
)

// Kind partitions transport failures into the classes downstream callers
// use to decide retry vs. fatal.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthFailed
	KindPermissionDenied
	KindNotFound
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindAuthFailed:
		return "auth_failed"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

var (
	ErrAuthFailed       = errors.New("remote: authentication failed")
	ErrPermissionDenied = errors.New("remote: permission denied")
	ErrNotFound         = errors.New("remote: not found")
	ErrUnreachable      = errors.New("remote: unreachable")
)

// OpError is a classified transport failure. It wraps the underlying error
// and matches the taxonomy sentinels through errors.Is.
type OpError struct {
	Op   string
	Path string
	Kind Kind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("remote %s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Kind == KindAuthFailed
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	}
	return false
}

// KindOf returns the classification of err, or KindUnknown for errors that
// did not pass through Classify.
func KindOf(err error) Kind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth retrying. Only transient
// reachability failures qualify; auth and permission failures need operator
// intervention and not-found is a definitive answer.
func IsRetryable(err error) bool {
	return KindOf(err) == KindUnreachable
}

// Classify wraps a raw transport error into an OpError with the matching
// Kind. Context cancellation is passed through unwrapped so callers can
// distinguish "caller gave up" from "server unreachable".
func Classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &OpError{Op: op, Path: path, Kind: classifyKind(err), Err: err}
}

func classifyKind(err error) Kind {
	// pkg/sftp surfaces server status responses as *StatusError; the code
	// is the authoritative classification for those.
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.FxCode() {
		case sftp.ErrSSHFxNoSuchFile:
			return KindNotFound
		case sftp.ErrSSHFxPermissionDenied:
			return KindPermissionDenied
		case sftp.ErrSSHFxConnectionLost, sftp.ErrSSHFxNoConnection:
			return KindUnreachable
		}
		return KindUnknown
	}

	switch {
	case errors.Is(err, fs.ErrNotExist), os.IsNotExist(err):
		return KindNotFound

	case errors.Is(err, fs.ErrPermission), os.IsPermission(err):
		return KindPermissionDenied

	case errors.Is(err, sftp.ErrSSHFxConnectionLost),
		errors.Is(err, sftp.ErrSSHFxNoConnection),
		isNetworkError(err):
		return KindUnreachable

	case isAuthError(err):
		return KindAuthFailed
	}
	return KindUnknown
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// isAuthError sniffs the ssh handshake failure message. x/crypto/ssh does
// not export a typed auth error, so string matching is the only handle.
func isAuthError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied (publickey") ||
		strings.Contains(msg, "handshake failed")
}
