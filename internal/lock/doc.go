// Package lock keeps two simpletext processes from writing to the same
// mirror at once.
//
// Inside one process the engine already serialises syncs with a mutex. A
// Locker extends that across processes, so a running server and a one-shot
// `simpletext append` against the same local_dir take turns:
//
//	l, err := lock.New(cfg.LocalDir)
//	if err != nil {
//	    return err
//	}
//	if err := l.AcquireContext(ctx, lock.DefaultPollInterval); err != nil {
//	    return err
//	}
//	defer l.Release()
//
// The lock is a flock(2) on /tmp/simpletext-<hash>.lock, where the hash is
// taken over the mirror's absolute path. The file holds the owner's PID; a
// file left behind by a dead owner is taken over.
//
// Release unlinks the file before dropping the flock. A waiter that locked
// the old inode notices it is no longer linked and retries, so at most one
// process holds the live file.
//
// A Locker is not safe for concurrent use. Create one per acquisition.
package lock
