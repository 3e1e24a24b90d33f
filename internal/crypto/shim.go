package crypto

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/logger"
)

// Shim transforms a single file in place.
type Shim interface {
	Encrypt(ctx context.Context, path string) error
	Decrypt(ctx context.Context, path string) error
}

// CommandShim runs an external program for each transform, passing the
// absolute file path as the final argument. The process environment,
// including PATH, is inherited.
type CommandShim struct {
	encryptCmd []string
	decryptCmd []string
	executor   CommandExecutor
	logger     logger.Logger
}

// NewCommandShim creates a shim that runs encryptCmd and decryptCmd. Each
// command may carry leading arguments, e.g. "age-inplace -e".
func NewCommandShim(encryptCmd, decryptCmd string, log logger.Logger) *CommandShim {
	return NewCommandShimWithExecutor(encryptCmd, decryptCmd, log, NewExecExecutor())
}

// NewCommandShimWithExecutor creates a shim with a custom executor
func NewCommandShimWithExecutor(encryptCmd, decryptCmd string, log logger.Logger, executor CommandExecutor) *CommandShim {
	return &CommandShim{
		encryptCmd: strings.Fields(encryptCmd),
		decryptCmd: strings.Fields(decryptCmd),
		executor:   executor,
		logger:     log,
	}
}

// Encrypt implements Shim.
func (s *CommandShim) Encrypt(ctx context.Context, path string) error {
	return s.run(ctx, s.encryptCmd, path)
}

// Decrypt implements Shim.
func (s *CommandShim) Decrypt(ctx context.Context, path string) error {
	return s.run(ctx, s.decryptCmd, path)
}

func (s *CommandShim) run(ctx context.Context, command []string, path string) error {
	if len(command) == 0 {
		return errors.NewCryptoError("<unset>", path, errors.Wrap(errors.ErrCryptoFailed, "no transform command configured"), "")
	}
	name := command[0]

	if !filepath.IsAbs(path) {
		return errors.NewCryptoError(name, path, errors.Wrap(errors.ErrCryptoFailed, "path must be absolute"), "")
	}

	args := append(append([]string{}, command[1:]...), path)
	cmd := exec.CommandContext(ctx, name, args...)

	s.logger.Info("Running %s %s", name, path)
	output, err := s.executor.ExecuteWithOutput(cmd)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		s.logger.Warning("%s %s failed: %v", name, path, err)
		return errors.NewCryptoError(name, path, fmt.Errorf("%w: %w", errors.ErrCryptoFailed, err), output)
	}

	return nil
}
