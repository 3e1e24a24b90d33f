package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/logger"
	"github.com/bashhack/simpletext/internal/repo"
	"github.com/bashhack/simpletext/internal/repo/repotest"
)

var commitTime = time.Date(2025, time.March, 7, 14, 5, 0, 0, time.Local)

type fixture struct {
	remote *repotest.Remote
	cfg    config.Config
	mirror *repo.Mirror
}

func setupMirror(t *testing.T) *fixture {
	t.Helper()

	remote := repotest.NewRemote(t, "main", nil)
	cfg := config.Config{
		RemoteURL:      remote.Path,
		LocalDir:       filepath.Join(t.TempDir(), "mirror"),
		Branch:         "main",
		BufferDirRel:   "notes",
		EncryptCmd:     config.DefaultEncryptCmd,
		DecryptCmd:     config.DefaultDecryptCmd,
		EncryptRetries: config.DefaultEncryptRetries,
	}
	require.NoError(t, cfg.Finalize())

	mirror, err := repo.NewManager(logger.Discard()).EnsureReady(context.Background(), cfg)
	require.NoError(t, err)
	repotest.SetIdentity(t, mirror.Repo)

	return &fixture{remote: remote, cfg: cfg, mirror: mirror}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(f.cfg.LocalDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o600))
}

func (f *fixture) head(t *testing.T) plumbing.Hash {
	t.Helper()
	ref, err := f.mirror.Repo.Head()
	require.NoError(t, err)
	return ref.Hash()
}

func TestStageCommitPush(t *testing.T) {
	f := setupMirror(t)
	p := NewPipeline(logger.Discard())
	before := f.head(t)

	f.write(t, "notes/places.txt", "cipher-1")
	require.NoError(t, p.Stage(f.mirror, "notes/places.txt"))

	wt, err := f.mirror.Repo.Worktree()
	require.NoError(t, err)
	status, err := wt.Status()
	require.NoError(t, err)
	assert.Len(t, status, 1, "only the buffer is staged")
	assert.Equal(t, gogit.Added, status.File("notes/places.txt").Staging)

	hash, err := p.Commit(f.mirror, commitTime)
	require.NoError(t, err)
	assert.Equal(t, hash, f.head(t), "HEAD advances to the new commit")

	commit, err := f.mirror.Repo.CommitObject(hash)
	require.NoError(t, err)
	assert.Equal(t, "07_Mar_25-14_05", commit.Message)
	assert.Equal(t, []plumbing.Hash{before}, commit.ParentHashes)
	assert.Equal(t, repotest.UserName, commit.Author.Name)
	assert.Equal(t, repotest.UserEmail, commit.Author.Email)

	require.NoError(t, p.Push(context.Background(), f.mirror, f.cfg))
	assert.Equal(t, hash, f.remote.Head(t, "main"))
	assert.Equal(t, "cipher-1", f.remote.FileAt(t, hash, "notes/places.txt"))
}

func TestCommitsStayLinear(t *testing.T) {
	f := setupMirror(t)
	p := NewPipeline(logger.Discard())

	for i, content := range []string{"one", "two", "three"} {
		parent := f.head(t)

		f.write(t, "notes/todo.txt", content)
		require.NoError(t, p.Stage(f.mirror, "notes/todo.txt"))
		hash, err := p.Commit(f.mirror, commitTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)

		commit, err := f.mirror.Repo.CommitObject(hash)
		require.NoError(t, err)
		assert.Equal(t, []plumbing.Hash{parent}, commit.ParentHashes)
	}
}

func TestCommitRequiresIdentity(t *testing.T) {
	repotest.IsolateGlobalConfig(t)
	f := setupMirror(t)

	repoCfg, err := f.mirror.Repo.Config()
	require.NoError(t, err)
	repoCfg.User.Name = ""
	repoCfg.User.Email = ""
	// Marshal skips empty user fields, so the raw section has to go too.
	repoCfg.Raw.RemoveSection("user")
	require.NoError(t, f.mirror.Repo.SetConfig(repoCfg))

	scoped, err := f.mirror.Repo.ConfigScoped(gitconfig.GlobalScope)
	require.NoError(t, err)
	require.Empty(t, scoped.User.Name, "no identity is left in any scope")

	p := NewPipeline(logger.Discard())
	before := f.head(t)

	f.write(t, "notes/ideas.txt", "cipher")
	require.NoError(t, p.Stage(f.mirror, "notes/ideas.txt"))

	_, err = p.Commit(f.mirror, commitTime)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCommitFailed))

	var gitErr *errors.GitError
	require.True(t, errors.As(err, &gitErr))
	assert.Equal(t, "commit", gitErr.Operation)
	assert.Equal(t, before, f.head(t))
}

func TestStageMissingFile(t *testing.T) {
	f := setupMirror(t)

	err := NewPipeline(logger.Discard()).Stage(f.mirror, "notes/absent.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStageFailed))
}

func TestPushAlreadyUpToDate(t *testing.T) {
	f := setupMirror(t)
	assert.NoError(t, NewPipeline(logger.Discard()).Push(context.Background(), f.mirror, f.cfg))
}

func TestPushRejectedThenRetried(t *testing.T) {
	f := setupMirror(t)
	p := NewPipeline(logger.Discard())
	base := f.head(t)

	f.write(t, "notes/journal.txt", "ours")
	require.NoError(t, p.Stage(f.mirror, "notes/journal.txt"))
	ours, err := p.Commit(f.mirror, commitTime)
	require.NoError(t, err)

	theirs := f.remote.Commit(t, "main", "competing", map[string]string{"notes/journal.txt": "theirs"})

	err = p.Push(context.Background(), f.mirror, f.cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPushFailed))

	var gitErr *errors.GitError
	require.True(t, errors.As(err, &gitErr))
	assert.Equal(t, "push", gitErr.Operation)

	assert.Equal(t, ours, f.head(t), "the local commit is kept after a rejected push")
	assert.Equal(t, theirs, f.remote.Head(t, "main"))

	f.remote.SetBranch(t, "main", base)

	require.NoError(t, p.Push(context.Background(), f.mirror, f.cfg))
	assert.Equal(t, ours, f.remote.Head(t, "main"))
}

func TestPushUnsupportedRemote(t *testing.T) {
	f := setupMirror(t)
	cfg := f.cfg
	cfg.RemoteURL = "https://example.com/notes.git"

	err := NewPipeline(logger.Discard()).Push(context.Background(), f.mirror, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPushFailed))
}
