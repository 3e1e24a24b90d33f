// Package repotest builds throwaway git remotes for tests. A Remote is a bare
// repository on local disk, reachable through its path as the remote URL.
package repotest

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Identity used for every fixture commit and by SetIdentity.
const (
	UserName  = "Simple Text"
	UserEmail = "notes@example.com"
)

// Remote is a bare repository standing in for the git server.
type Remote struct {
	Path string
	Repo *git.Repository
}

// NewRemote creates a bare remote whose HEAD points at branch and seeds that
// branch with one commit holding files (path -> content).
func NewRemote(t testing.TB, branch string, files map[string]string) *Remote {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "remote.git")
	bare, err := git.PlainInit(dir, true)
	if err != nil {
		t.Fatalf("failed to init bare remote %q: %v", dir, err)
	}
	setHead(t, bare, branch)

	r := &Remote{Path: dir, Repo: bare}
	if len(files) == 0 {
		files = map[string]string{"README": "notes\n"}
	}
	r.Commit(t, branch, "seed", files)
	return r
}

// Commit pushes a commit to branch from a scratch clone. The branch is created
// on the remote if it does not exist yet.
func (r *Remote) Commit(t testing.TB, branch, message string, files map[string]string) plumbing.Hash {
	t.Helper()

	scratchDir := t.TempDir()
	scratch, err := git.PlainInit(scratchDir, false)
	if err != nil {
		t.Fatalf("failed to init scratch repo: %v", err)
	}
	if _, err := scratch.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{r.Path}}); err != nil {
		t.Fatalf("failed to add origin: %v", err)
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	var parents []plumbing.Hash
	if head, err := r.Repo.Reference(branchRef, true); err == nil {
		if err := scratch.Fetch(&git.FetchOptions{
			RemoteName: "origin",
			RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("+%s:%s", branchRef, branchRef))},
		}); err != nil && err != git.NoErrAlreadyUpToDate {
			t.Fatalf("failed to fetch %s: %v", branch, err)
		}
		parents = []plumbing.Hash{head.Hash()}
	}
	setHead(t, scratch, branch)

	wt, err := scratch.Worktree()
	if err != nil {
		t.Fatalf("failed to open scratch worktree: %v", err)
	}
	if len(parents) > 0 {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
			t.Fatalf("failed to check out %s: %v", branch, err)
		}
	}

	for name, content := range files {
		full := filepath.Join(scratchDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:  Signature(),
		Parents: parents,
	})
	if err != nil {
		t.Fatalf("failed to commit to scratch repo: %v", err)
	}

	if err := scratch.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", branchRef, branchRef))},
	}); err != nil {
		t.Fatalf("failed to push %s to remote: %v", branch, err)
	}
	return hash
}

// Head returns the commit the remote branch points at.
func (r *Remote) Head(t testing.TB, branch string) plumbing.Hash {
	t.Helper()

	ref, err := r.Repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("failed to resolve remote branch %s: %v", branch, err)
	}
	return ref.Hash()
}

// SetBranch force-moves a remote branch, e.g. to undo a competing push.
func (r *Remote) SetBranch(t testing.TB, branch string, hash plumbing.Hash) {
	t.Helper()

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)
	if err := r.Repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("failed to move remote branch %s: %v", branch, err)
	}
}

// FileAt reads a file from the tree of a commit in the remote.
func (r *Remote) FileAt(t testing.TB, hash plumbing.Hash, path string) string {
	t.Helper()

	commit, err := r.Repo.CommitObject(hash)
	if err != nil {
		t.Fatalf("failed to load commit %s: %v", hash, err)
	}
	f, err := commit.File(path)
	if err != nil {
		t.Fatalf("failed to find %s in %s: %v", path, hash, err)
	}
	content, err := f.Contents()
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return content
}

// SetIdentity writes user.name and user.email into the repository's local
// config so that commits can be authored.
func SetIdentity(t testing.TB, repo *git.Repository) {
	t.Helper()

	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("failed to read repo config: %v", err)
	}
	cfg.User.Name = UserName
	cfg.User.Email = UserEmail
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("failed to write repo config: %v", err)
	}
}

// IsolateGlobalConfig points HOME and XDG_CONFIG_HOME at an empty directory so
// the developer's ~/.gitconfig cannot leak into a test.
func IsolateGlobalConfig(t *testing.T) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

// SetGlobalIdentity isolates the global git config and writes the fixture
// identity into it, for mirrors cloned by the code under test.
func SetGlobalIdentity(t *testing.T) {
	t.Helper()

	IsolateGlobalConfig(t)
	gitconfig := fmt.Sprintf("[user]\n\tname = %s\n\temail = %s\n", UserName, UserEmail)
	if err := os.WriteFile(filepath.Join(os.Getenv("HOME"), ".gitconfig"), []byte(gitconfig), 0o644); err != nil {
		t.Fatalf("failed to write global git config: %v", err)
	}
}

// Signature returns the fixture author.
func Signature() *object.Signature {
	return &object.Signature{Name: UserName, Email: UserEmail, When: time.Now()}
}

func setHead(t testing.TB, repo *git.Repository, branch string) {
	t.Helper()

	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(head); err != nil {
		t.Fatalf("failed to point HEAD at %s: %v", branch, err)
	}
}
