package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/bashhack/simpletext/internal/buffer"
	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/crypto"
	"github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/git"
	"github.com/bashhack/simpletext/internal/lock"
	"github.com/bashhack/simpletext/internal/logger"
	"github.com/bashhack/simpletext/internal/repo"
)

// Stage is a step of one sync request.
type Stage int

const (
	StageIdle Stage = iota
	StageRepoReady
	StageBufferModified
	StageStaged
	StageCommitted
	StagePushed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageRepoReady:
		return "repo-ready"
	case StageBufferModified:
		return "buffer-modified"
	case StageStaged:
		return "staged"
	case StageCommitted:
		return "committed"
	case StagePushed:
		return "pushed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// PipelineError reports the stage a request failed to reach.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("sync failed before %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Result describes how far a SyncBuffer request got. On failure it still
// reports the buffer and commit that were produced, e.g. a commit that was
// made but not pushed.
type Result struct {
	Stage  Stage
	Buffer string
	Commit plumbing.Hash
}

// Options configures an Engine. Provider is required.
type Options struct {
	Provider config.Provider
	Logger   logger.Logger

	// Shim overrides the command shim built from encrypt_cmd/decrypt_cmd.
	Shim crypto.Shim

	// Now is the clock for commit messages and unsorted buffer names.
	Now func() time.Time
}

// Engine runs sync requests against one mirror at a time. Requests are
// serialized by an in-process mutex and, across processes, by a lock file
// keyed on the mirror path.
type Engine struct {
	provider config.Provider
	logger   logger.Logger
	shim     crypto.Shim
	now      func() time.Time
	repos    *repo.Manager
	pipeline *git.Pipeline

	mu sync.Mutex
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Provider == nil {
		return nil, errors.New("engine: config provider cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		provider: opts.Provider,
		logger:   opts.Logger,
		shim:     opts.Shim,
		now:      opts.Now,
		repos:    repo.NewManager(opts.Logger),
		pipeline: git.NewPipeline(opts.Logger),
	}, nil
}

// OpenOrReconcileRepo makes sure the mirror exists and has the configured
// branch checked out.
func (e *Engine) OpenOrReconcileRepo(ctx context.Context) (*repo.Mirror, error) {
	var mirror *repo.Mirror
	err := e.withGate(ctx, func(cfg config.Config) error {
		m, err := e.repos.EnsureReady(ctx, cfg)
		if err != nil {
			return &PipelineError{Stage: StageRepoReady, Err: err}
		}
		mirror = m
		return nil
	})
	return mirror, err
}

// SyncBuffer appends text to the buffer called name, commits the change and
// pushes it. The first failing step aborts the rest.
func (e *Engine) SyncBuffer(ctx context.Context, name, text string) (Result, error) {
	var res Result
	err := e.withGate(ctx, func(cfg config.Config) error {
		advance := func(to Stage) {
			e.logger.Info("sync %q: %s -> %s", name, res.Stage, to)
			res.Stage = to
		}
		fail := func(at Stage, err error) error {
			e.logger.Error("sync %q failed before %s: %v", name, at, err)
			return &PipelineError{Stage: at, Err: err}
		}

		mirror, err := e.repos.EnsureReady(ctx, cfg)
		if err != nil {
			return fail(StageRepoReady, err)
		}
		advance(StageRepoReady)

		store := buffer.NewStoreWithClock(cfg, e.shimFor(cfg), e.logger, e.now)
		rel, err := store.Append(ctx, name, text)
		if err != nil {
			return fail(StageBufferModified, err)
		}
		res.Buffer = rel
		advance(StageBufferModified)

		if err := e.pipeline.Stage(mirror, rel); err != nil {
			return fail(StageStaged, err)
		}
		advance(StageStaged)

		hash, err := e.pipeline.Commit(mirror, e.now())
		if err != nil {
			return fail(StageCommitted, err)
		}
		res.Commit = hash
		advance(StageCommitted)

		if err := e.pipeline.Push(ctx, mirror, cfg); err != nil {
			return fail(StagePushed, err)
		}
		advance(StagePushed)
		return nil
	})
	return res, err
}

// RetryPush pushes the mirror's branch without making a new commit, e.g.
// after SyncBuffer failed at the push step.
func (e *Engine) RetryPush(ctx context.Context) error {
	return e.withGate(ctx, func(cfg config.Config) error {
		mirror, err := e.repos.EnsureReady(ctx, cfg)
		if err != nil {
			return &PipelineError{Stage: StageRepoReady, Err: err}
		}
		if err := e.pipeline.Push(ctx, mirror, cfg); err != nil {
			return &PipelineError{Stage: StagePushed, Err: err}
		}
		return nil
	})
}

// Resolve returns the mirror-relative path name would be written to now.
func (e *Engine) Resolve(name string) (string, error) {
	cfg, err := e.provider.Load()
	if err != nil {
		return "", err
	}
	return buffer.NewStoreWithClock(cfg, nil, e.logger, e.now).Resolve(name), nil
}

func (e *Engine) shimFor(cfg config.Config) crypto.Shim {
	if e.shim != nil {
		return e.shim
	}
	return crypto.NewCommandShim(cfg.EncryptCmd, cfg.DecryptCmd, e.logger)
}

// withGate loads a fresh configuration and runs fn while holding both halves
// of the single-writer gate.
func (e *Engine) withGate(ctx context.Context, fn func(cfg config.Config) error) error {
	cfg, err := e.provider.Load()
	if err != nil {
		return &PipelineError{Stage: StageRepoReady, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	locker, err := lock.New(cfg.LocalDir)
	if err != nil {
		return &PipelineError{Stage: StageRepoReady, Err: err}
	}
	if err := locker.AcquireContext(ctx, lock.DefaultPollInterval); err != nil {
		return &PipelineError{Stage: StageRepoReady, Err: err}
	}
	defer func() {
		if err := locker.Release(); err != nil {
			e.logger.Warning("Failed to release mirror lock: %v", err)
		}
	}()

	return fn(cfg)
}
