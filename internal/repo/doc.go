// Package repo manages the local git mirror that buffers are written into.
//
// EnsureReady opens the mirror, cloning it with github.com/go-git/go-git/v5
// when the directory is missing or empty, and makes sure HEAD names the
// configured branch. Switching branches creates the local branch from
// origin's remote-tracking ref, or fast-forwards it, records upstream
// tracking and checks it out. No fetch is performed; the remote-tracking ref
// is whatever the last clone or push left behind.
//
// Failures are *errors.RepoError values matching one of ErrCloneFailed,
// ErrBranchNotFound or ErrCheckoutFailed. A missing branch is never created
// on the remote.
package repo
