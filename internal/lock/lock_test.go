package lock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/simpletext/internal/errors"
)

func newLocker(t *testing.T, mirror string) *Locker {
	t.Helper()
	l, err := New(mirror)
	require.NoError(t, err)
	return l
}

func lockOwner(t *testing.T, l *Locker) int {
	t.Helper()
	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data))
	require.NoError(t, err)
	return pid
}

func TestLockPathIsPerMirror(t *testing.T) {
	a := newLocker(t, "/srv/notes/mirror")
	assert.True(t, filepath.IsAbs(a.Path()))
	assert.False(t, a.Held())
	assert.Equal(t, os.Getpid(), a.pid)

	assert.Equal(t, a.Path(), newLocker(t, "/srv/notes/mirror/").Path(), "trailing slash names the same mirror")
	assert.NotEqual(t, a.Path(), newLocker(t, "/srv/notes/other").Path())
}

func TestAcquireRecordsOwnerAndReleaseRemovesFile(t *testing.T) {
	mirror := t.TempDir()
	first := newLocker(t, mirror)

	require.NoError(t, first.Acquire())
	assert.True(t, first.Held())
	assert.Equal(t, os.Getpid(), lockOwner(t, first))
	require.NoError(t, first.Acquire(), "re-acquiring a held lock is a no-op")

	second := newLocker(t, mirror)
	assert.ErrorIs(t, second.Acquire(), errors.ErrAlreadyRunning)

	require.NoError(t, first.Release())
	assert.False(t, first.Held())
	assert.NoFileExists(t, first.Path())

	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestStaleLockIsTakenOver(t *testing.T) {
	l := newLocker(t, t.TempDir())
	// Well above the default pid_max, so no process owns it.
	require.NoError(t, os.WriteFile(l.Path(), []byte("999999"), 0o600))

	require.NoError(t, l.Acquire())
	assert.Equal(t, os.Getpid(), lockOwner(t, l))
	assert.NoError(t, l.Release())
}

func TestAcquireContext(t *testing.T) {
	tests := map[string]struct {
		releaseAfter time.Duration
		timeout      time.Duration
		wantErr      bool
	}{
		"holder releases in time": {releaseAfter: 100 * time.Millisecond, timeout: 5 * time.Second},
		"deadline passes first":   {releaseAfter: time.Second, timeout: 50 * time.Millisecond, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			mirror := t.TempDir()
			holder := newLocker(t, mirror)
			require.NoError(t, holder.Acquire())

			released := make(chan struct{})
			go func() {
				defer close(released)
				time.Sleep(tt.releaseAfter)
				_ = holder.Release()
			}()
			t.Cleanup(func() { <-released })

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			waiter := newLocker(t, mirror)
			err := waiter.AcquireContext(ctx, 10*time.Millisecond)
			if tt.wantErr {
				var lockErr *errors.LockError
				assert.True(t, errors.As(err, &lockErr))
				assert.ErrorIs(t, err, errors.ErrAlreadyRunning, "contention stays visible after the deadline")
				assert.False(t, waiter.Held())
				return
			}
			require.NoError(t, err)
			assert.True(t, waiter.Held())
			assert.NoError(t, waiter.Release())
		})
	}
}

func TestReleaseWithoutAcquire(t *testing.T) {
	assert.NoError(t, newLocker(t, t.TempDir()).Release())
}
