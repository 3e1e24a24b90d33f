package lock

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	stErrors "github.com/bashhack/simpletext/internal/errors"
)

// DefaultPollInterval is how often AcquireContext retries a held lock.
const DefaultPollInterval = 50 * time.Millisecond

// Locker is the cross-process half of the mirror's single-writer gate. It
// holds an exclusive flock on a file derived from the mirror path so that a
// CLI invocation and a running server never mutate the same mirror at once.
type Locker struct {
	lockFile string
	lockFd   *os.File
	pid      int
	acquired bool
}

// New creates a Locker for the mirror rooted at mirrorPath. The mirror does
// not need to exist yet.
func New(mirrorPath string) (*Locker, error) {
	if runtime.GOOS == "windows" {
		return nil, stErrors.NewLockError("", 0,
			stErrors.Wrap(stErrors.ErrLockAcquisitionFailure,
				"mirror locking is only supported on Unix-like operating systems"))
	}

	abs, err := filepath.Abs(mirrorPath)
	if err != nil {
		return nil, stErrors.NewLockError("", 0, stErrors.Wrap(err, "failed to resolve mirror path"))
	}

	mirrorHash := fmt.Sprintf("%x", sha256.Sum256([]byte(abs)))[:16]
	lockFile := filepath.Join(os.TempDir(), fmt.Sprintf("simpletext-%s.lock", mirrorHash))

	return &Locker{
		lockFile: lockFile,
		pid:      os.Getpid(),
	}, nil
}

// Path returns the lock file location.
func (l *Locker) Path() string {
	return l.lockFile
}

// Held reports whether this Locker currently owns the lock.
func (l *Locker) Held() bool {
	return l.acquired
}

// Acquire tries once to take the lock. It fails with ErrAlreadyRunning while
// another open file holds the flock. A file left behind by a dead process
// carries no flock and is taken over.
func (l *Locker) Acquire() error {
	if l.acquired {
		return nil
	}

	err := l.lockFresh()
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return l.lockExisting()
	}
	return err
}

// AcquireContext polls Acquire until it succeeds, a non-contention error
// occurs, or ctx is done.
func (l *Locker) AcquireContext(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := l.Acquire()
		if err == nil || !stErrors.Is(err, stErrors.ErrAlreadyRunning) {
			return err
		}

		select {
		case <-ctx.Done():
			return stErrors.NewLockError(l.lockFile, 0, stErrors.Wrap(err, ctx.Err().Error()))
		case <-ticker.C:
		}
	}
}

// lockFresh creates the lock file exclusively and locks it. os.IsExist on
// the returned error means someone else created the file first.
func (l *Locker) lockFresh() error {
	fd, err := os.OpenFile(l.lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0666)
	if err != nil {
		if os.IsExist(err) {
			return err
		}
		return stErrors.NewLockError(l.lockFile, 0, stErrors.Wrap(err, "failed to create lock file"))
	}
	l.lockFd = fd

	if err := l.flock(); err != nil {
		l.closeFd()
		if isWouldBlock(err) {
			return stErrors.NewLockError(l.lockFile, 0,
				stErrors.Wrap(stErrors.ErrAlreadyRunning, "lock file was taken before it could be locked"))
		}
		return stErrors.NewLockError(l.lockFile, 0,
			stErrors.Wrap(err, "failed to lock newly created lock file"))
	}
	if !l.stillLinked() {
		l.closeFd()
		return stErrors.NewLockError(l.lockFile, 0,
			stErrors.Wrap(stErrors.ErrAlreadyRunning, "lock file was replaced while locking it"))
	}

	return l.claim()
}

// lockExisting locks a lock file that is already on disk, taking over stale
// ones whose owner is no longer running.
func (l *Locker) lockExisting() error {
	fd, err := os.OpenFile(l.lockFile, os.O_RDWR, 0666)
	if err != nil {
		if os.IsNotExist(err) {
			// Released between our two opens.
			return l.Acquire()
		}
		return stErrors.NewLockError(l.lockFile, 0, stErrors.Wrap(err, "failed to open existing lock file"))
	}
	l.lockFd = fd

	if err := l.flock(); err != nil {
		l.closeFd()

		if isWouldBlock(err) {
			return l.handleBlocked()
		}
		return stErrors.NewLockError(l.lockFile, 0, stErrors.Wrap(err, "failed to acquire lock"))
	}
	if !l.stillLinked() {
		// The previous owner released between our open and flock.
		l.closeFd()
		return stErrors.NewLockError(l.lockFile, 0,
			stErrors.Wrap(stErrors.ErrAlreadyRunning, "lock file was released while locking it"))
	}

	if err := l.lockFd.Truncate(0); err != nil {
		_ = l.Release()
		return stErrors.NewLockError(l.lockFile, l.pid, stErrors.Wrap(err, "failed to truncate lock file"))
	}
	return l.claim()
}

// handleBlocked reports a lock whose flock is held elsewhere. The flock is
// authoritative: the PID in the file is only for the message, since the
// holder may live in another PID namespace.
func (l *Locker) handleBlocked() error {
	otherPid, err := l.readPid()
	if err != nil {
		return stErrors.NewLockError(l.lockFile, 0,
			stErrors.Wrap(stErrors.ErrAlreadyRunning, fmt.Sprintf("lock is held but its owner is unknown: %v", err)))
	}
	return stErrors.NewLockError(l.lockFile, otherPid, stErrors.ErrAlreadyRunning)
}

// claim writes our PID into the locked file and marks the lock as held.
func (l *Locker) claim() error {
	if _, err := l.lockFd.WriteAt([]byte(strconv.Itoa(l.pid)), 0); err != nil {
		lockErr := stErrors.NewLockError(l.lockFile, l.pid, stErrors.Wrap(err, "failed to write PID to lock file"))
		if releaseErr := l.Release(); releaseErr != nil {
			return stErrors.Join(lockErr, releaseErr)
		}
		return lockErr
	}

	l.acquired = true
	return nil
}

func (l *Locker) flock() error {
	return syscall.Flock(int(l.lockFd.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

// stillLinked reports whether the locked descriptor is still the file at the
// lock path. A lock on an unlinked inode excludes nobody.
func (l *Locker) stillLinked() bool {
	held, err := l.lockFd.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(l.lockFile)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}

// isWouldBlock matches a non-blocking flock on a held lock. EWOULDBLOCK and
// EAGAIN are distinct on some older systems.
func isWouldBlock(err error) bool {
	return stErrors.Is(err, syscall.EWOULDBLOCK) || stErrors.Is(err, syscall.EAGAIN)
}

func (l *Locker) closeFd() {
	if l.lockFd != nil {
		_ = l.lockFd.Close()
		l.lockFd = nil
	}
}

func (l *Locker) readPid() (int, error) {
	data, err := os.ReadFile(l.lockFile)
	if err != nil {
		return 0, stErrors.Wrap(err, "failed to read lock file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, stErrors.Wrap(err, "invalid PID in lock file")
	}
	return pid, nil
}

// Release removes and unlocks the lock file. It is safe to call on a Locker
// that never acquired the lock.
func (l *Locker) Release() error {
	if l.lockFd == nil {
		return nil
	}

	var err error

	// The file is unlinked while still locked, so a waiter can never lock an
	// inode that is about to disappear (see stillLinked).
	if removeErr := os.Remove(l.lockFile); removeErr != nil && !os.IsNotExist(removeErr) {
		err = stErrors.NewLockError(l.lockFile, l.pid, stErrors.Wrap(removeErr, "failed to remove lock file"))
	}

	// Stat first so a broken descriptor is reported instead of flock'd.
	fd := l.lockFd.Fd()
	var stat syscall.Stat_t
	if statErr := syscall.Fstat(int(fd), &stat); statErr != nil {
		if err == nil {
			err = stErrors.NewLockError(l.lockFile, l.pid,
				stErrors.Wrap(statErr, "failed to stat lock file - file descriptor is invalid"))
		}
	} else if flockErr := syscall.Flock(int(fd), syscall.LOCK_UN); flockErr != nil && err == nil {
		err = stErrors.NewLockError(l.lockFile, l.pid, stErrors.Wrap(flockErr, "failed to release lock"))
	}

	if closeErr := l.lockFd.Close(); closeErr != nil && err == nil {
		err = stErrors.NewLockError(l.lockFile, l.pid, stErrors.Wrap(closeErr, "failed to close lock file"))
	}

	l.lockFd = nil
	l.acquired = false

	return err
}
