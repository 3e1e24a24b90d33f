package git

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/logger"
	"github.com/bashhack/simpletext/internal/repo"
)

// CommitLayout formats commit messages, e.g. 07_Mar_25-14_05.
const CommitLayout = "02_Jan_06-15_04"

// Pipeline stages, commits and pushes buffer changes in a mirror.
type Pipeline struct {
	logger logger.Logger
}

// NewPipeline creates a Pipeline that logs to log.
func NewPipeline(log logger.Logger) *Pipeline {
	return &Pipeline{logger: log}
}

// Stage adds relPath, relative to the mirror root and slash separated, to the
// index and writes the index to disk.
func (p *Pipeline) Stage(mirror *repo.Mirror, relPath string) error {
	args := []string{relPath}

	wt, err := mirror.Repo.Worktree()
	if err != nil {
		return errors.NewGitError("add", args, fmt.Errorf("%w: %w", errors.ErrStageFailed, err), "")
	}

	if _, err := wt.Add(relPath); err != nil {
		p.logger.Warning("Failed to stage %s: %v", relPath, err)
		return errors.NewGitError("add", args, fmt.Errorf("%w: %w", errors.ErrStageFailed, err), "")
	}

	p.logger.Info("Staged %s", relPath)
	return nil
}

// Commit records the index as a new commit whose only parent is the current
// HEAD. The message is now formatted with CommitLayout and the identity comes
// from the repository's user.name and user.email.
func (p *Pipeline) Commit(mirror *repo.Mirror, now time.Time) (plumbing.Hash, error) {
	message := now.Format(CommitLayout)
	args := []string{"-m", message}

	sig, err := identity(mirror.Repo, now)
	if err != nil {
		return plumbing.ZeroHash, errors.NewGitError("commit", args, fmt.Errorf("%w: %w", errors.ErrCommitFailed, err), "")
	}

	head, err := mirror.Repo.Head()
	if err != nil {
		return plumbing.ZeroHash, errors.NewGitError("commit", args,
			fmt.Errorf("%w: cannot resolve HEAD: %w", errors.ErrCommitFailed, err), "")
	}

	wt, err := mirror.Repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, errors.NewGitError("commit", args, fmt.Errorf("%w: %w", errors.ErrCommitFailed, err), "")
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
		Parents:   []plumbing.Hash{head.Hash()},
	})
	if err != nil {
		p.logger.Warning("Failed to create commit: %v", err)
		return plumbing.ZeroHash, errors.NewGitError("commit", args, fmt.Errorf("%w: %w", errors.ErrCommitFailed, err), "")
	}

	p.logger.Info("Created commit %s (%s) on %s", hash, message, mirror.Branch.Short())
	return hash, nil
}

// Push sends the mirror's branch to the identically named branch on origin.
// An up-to-date remote is not an error. A rejected push leaves the local
// commit in place.
func (p *Pipeline) Push(ctx context.Context, mirror *repo.Mirror, cfg config.Config) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", mirror.Branch, mirror.Branch))
	args := []string{repo.RemoteName, spec.String()}

	auth, err := repo.Auth(cfg)
	if err != nil {
		return errors.NewGitError("push", args, fmt.Errorf("%w: %w", errors.ErrPushFailed, err), "")
	}

	err = mirror.Repo.PushContext(ctx, &git.PushOptions{
		RemoteName: repo.RemoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       auth,
	})
	switch {
	case err == nil:
		p.logger.Info("Pushed %s to %s", mirror.Branch.Short(), repo.RemoteName)
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		p.logger.Info("%s/%s is already up to date", repo.RemoteName, mirror.Branch.Short())
		return nil
	}

	p.logger.Warning("Push of %s failed: %v", mirror.Branch.Short(), err)
	return errors.NewGitError("push", args, fmt.Errorf("%w: %w", errors.ErrPushFailed, err), "")
}

// identity reads user.name and user.email, local config first, then global.
func identity(r *git.Repository, when time.Time) (*object.Signature, error) {
	cfg, err := r.ConfigScoped(gitconfig.GlobalScope)
	if err != nil {
		return nil, fmt.Errorf("cannot read git config: %w", err)
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		return nil, fmt.Errorf("user.name and user.email must be configured for the mirror")
	}
	return &object.Signature{Name: cfg.User.Name, Email: cfg.User.Email, When: when}, nil
}
