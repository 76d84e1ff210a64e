package remote

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Taxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
	}{
		{
			name: "not exist maps to not found",
			err:  fs.ErrNotExist,
			kind: KindNotFound,
		},
		{
			name: "permission maps to permission denied",
			err:  fs.ErrPermission,
			kind: KindPermissionDenied,
		},
		{
			name: "net op error maps to unreachable",
			err:  &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			kind: KindUnreachable,
		},
		{
			name: "ssh auth failure maps to auth failed",
			err:  errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"),
			kind: KindAuthFailed,
		},
		{
			name: "anything else maps to unknown",
			err:  errors.New("weird server reply"),
			kind: KindUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify("list", "/docs", tc.err)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestClassify_SentinelMatching(t *testing.T) {
	err := Classify("list", "/docs", fs.ErrNotExist)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnreachable)

	err = Classify("dial", "host:22", &net.OpError{Op: "dial", Err: errors.New("timeout")})
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.True(t, IsRetryable(err))
}

func TestClassify_PassesThroughCancellation(t *testing.T) {
	// Cancellation is not a transport failure and must not be absorbed
	// into the retryable taxonomy.
	err := Classify("list", "/docs", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.False(t, IsRetryable(err))
}

func TestClassify_NilIsNil(t *testing.T) {
	assert.NoError(t, Classify("list", "/docs", nil))
}

func TestAuthMethods_RequiresCredentials(t *testing.T) {
	_, err := authMethods(Auth{Username: "deploy"})
	assert.ErrorIs(t, err, ErrAuthFailed)

	methods, err := authMethods(Auth{Username: "deploy", Password: "hunter2"})
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}
