// Package git turns a modified buffer into a pushed commit.
//
// The Pipeline has three steps, each of which can fail on its own:
//
//	Stage   add one mirror-relative path to the index
//	Commit  write the index as a tree and commit it on top of HEAD
//	Push    push refs/heads/<branch> to the same ref on origin
//
// History stays linear: every commit has exactly one parent, the HEAD it was
// made on, and nothing is merged or amended. A rejected push is not retried
// and leaves the commit in the mirror, so a later Push can deliver it.
//
// Failures are *errors.GitError values matching ErrStageFailed,
// ErrCommitFailed or ErrPushFailed.
package git
