package repo

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/logger"
)

// RemoteName is the only remote the mirror talks to.
const RemoteName = "origin"

// Mirror is an open local mirror with the configured branch checked out.
type Mirror struct {
	Repo   *git.Repository
	Path   string
	Branch plumbing.ReferenceName
}

// Manager opens, clones and reconciles local mirrors.
type Manager struct {
	logger logger.Logger
}

// NewManager creates a Manager that reports progress to log.
func NewManager(log logger.Logger) *Manager {
	return &Manager{logger: log}
}

// EnsureReady returns the mirror at cfg.LocalDir, cloning it from
// cfg.RemoteURL when it is missing, with cfg.Branch checked out.
func (m *Manager) EnsureReady(ctx context.Context, cfg config.Config) (*Mirror, error) {
	branch := plumbing.NewBranchReferenceName(cfg.Branch)

	r, err := git.PlainOpen(cfg.LocalDir)
	if err != nil {
		m.logger.Info("No usable mirror at %s (%v), cloning %s", cfg.LocalDir, err, cfg.RemoteURL)
		r, err = m.clone(ctx, cfg, branch)
		if err != nil {
			return nil, err
		}
	}

	mirror := &Mirror{Repo: r, Path: cfg.LocalDir, Branch: branch}
	if err := m.reconcile(mirror); err != nil {
		return nil, err
	}
	return mirror, nil
}

func (m *Manager) clone(ctx context.Context, cfg config.Config, branch plumbing.ReferenceName) (*git.Repository, error) {
	if err := requireEmptyDir(cfg.LocalDir); err != nil {
		return nil, errors.NewRepoError("clone", cfg.LocalDir, fmt.Errorf("%w: %w", errors.ErrCloneFailed, err))
	}

	auth, err := Auth(cfg)
	if err != nil {
		return nil, errors.NewRepoError("clone", cfg.LocalDir, fmt.Errorf("%w: %w", errors.ErrCloneFailed, err))
	}

	if err := m.checkRemoteBranch(ctx, cfg, branch, auth); err != nil {
		return nil, err
	}

	// go-git removes directories it created, or emptied, when the clone fails.
	r, err := git.PlainCloneContext(ctx, cfg.LocalDir, false, &git.CloneOptions{
		URL:           cfg.RemoteURL,
		Auth:          auth,
		RemoteName:    RemoteName,
		ReferenceName: branch,
	})
	if err != nil {
		m.logger.Warning("Clone of %s failed: %v", cfg.RemoteURL, err)
		return nil, errors.NewRepoError("clone", cfg.LocalDir, fmt.Errorf("%w: %w", errors.ErrCloneFailed, err))
	}

	m.logger.Info("Cloned %s into %s", cfg.RemoteURL, cfg.LocalDir)
	return r, nil
}

// checkRemoteBranch lists the remote's refs so a missing branch is reported
// as such rather than as a generic clone failure.
func (m *Manager) checkRemoteBranch(ctx context.Context, cfg config.Config, branch plumbing.ReferenceName, auth transport.AuthMethod) error {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: RemoteName,
		URLs: []string{cfg.RemoteURL},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return errors.NewRepoError("clone", cfg.LocalDir, fmt.Errorf("%w: %s (remote is empty)", errors.ErrBranchNotFound, cfg.Branch))
		}
		return errors.NewRepoError("clone", cfg.LocalDir, fmt.Errorf("%w: %w", errors.ErrCloneFailed, err))
	}

	for _, ref := range refs {
		if ref.Name() == branch {
			return nil
		}
	}
	return errors.NewRepoError("clone", cfg.LocalDir, fmt.Errorf("%w: %s", errors.ErrBranchNotFound, cfg.Branch))
}

// reconcile puts HEAD on the configured branch. It is a no-op when HEAD
// already names it.
func (m *Manager) reconcile(mirror *Mirror) error {
	r := mirror.Repo

	head, err := r.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return errors.NewRepoError("open", mirror.Path, fmt.Errorf("%w: cannot read HEAD: %w", errors.ErrCheckoutFailed, err))
	}
	if head.Type() == plumbing.SymbolicReference && head.Target() == mirror.Branch {
		return nil
	}

	shortName := mirror.Branch.Short()
	m.logger.Info("HEAD is %s, switching mirror to %s", head.Target(), shortName)

	remoteRef, err := r.Reference(plumbing.NewRemoteReferenceName(RemoteName, shortName), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %s", errors.ErrBranchNotFound, shortName))
		}
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	}

	if err := m.advanceLocalBranch(mirror, remoteRef.Hash()); err != nil {
		return err
	}

	err = r.CreateBranch(&gitconfig.Branch{
		Name:   shortName,
		Remote: RemoteName,
		Merge:  mirror.Branch,
	})
	if err != nil && !errors.Is(err, git.ErrBranchExists) {
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: cannot record upstream: %w", errors.ErrCheckoutFailed, err))
	}

	wt, err := r.Worktree()
	if err != nil {
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: mirror.Branch}); err != nil {
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	}

	m.logger.Info("Checked out %s", shortName)
	return nil
}

// advanceLocalBranch creates the local branch at remote, or fast-forwards it
// when it is a strict ancestor of remote. A local branch that is ahead, for
// example after a rejected push, is left where it is.
func (m *Manager) advanceLocalBranch(mirror *Mirror, remote plumbing.Hash) error {
	r := mirror.Repo

	local, err := r.Reference(mirror.Branch, true)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return m.setBranch(mirror, remote)
	case err != nil:
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	case local.Hash() == remote:
		return nil
	}

	localCommit, err := r.CommitObject(local.Hash())
	if err != nil {
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	}
	remoteCommit, err := r.CommitObject(remote)
	if err != nil {
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	}

	behind, err := localCommit.IsAncestor(remoteCommit)
	if err != nil {
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	}
	if !behind {
		m.logger.Warning("Local %s (%s) is not behind %s/%s, keeping it", mirror.Branch.Short(), local.Hash(), RemoteName, mirror.Branch.Short())
		return nil
	}

	m.logger.Info("Fast-forwarding %s from %s to %s", mirror.Branch.Short(), local.Hash(), remote)
	return m.setBranch(mirror, remote)
}

func (m *Manager) setBranch(mirror *Mirror, hash plumbing.Hash) error {
	ref := plumbing.NewHashReference(mirror.Branch, hash)
	if err := mirror.Repo.Storer.SetReference(ref); err != nil {
		return errors.NewRepoError("checkout", mirror.Path, fmt.Errorf("%w: %w", errors.ErrCheckoutFailed, err))
	}
	return nil
}

// requireEmptyDir refuses to clone over existing files. A missing directory
// is fine.
func requireEmptyDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(entries) > 0 {
		return fmt.Errorf("%s exists, is not a git repository and is not empty", path)
	}
	return nil
}
