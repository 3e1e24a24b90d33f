package errors

import (
	"errors"
	"fmt"
)

// Sentinels for Is. Each names the step of a sync that failed.
var (
	// ErrInvalidConfiguration indicates missing or malformed settings
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrCloneFailed indicates the mirror could not be cloned from the remote
	ErrCloneFailed = errors.New("clone failed")

	// ErrBranchNotFound indicates the configured branch does not exist on the remote
	ErrBranchNotFound = errors.New("branch not found on remote")

	// ErrCheckoutFailed indicates the configured branch could not be checked out
	ErrCheckoutFailed = errors.New("checkout failed")

	// ErrCryptoFailed indicates an encrypt or decrypt transform did not succeed
	ErrCryptoFailed = errors.New("crypto transform failed")

	// ErrPlaintextExposed indicates a buffer was left decrypted on disk
	ErrPlaintextExposed = errors.New("buffer left as plaintext on disk")

	// ErrIOFailed indicates a buffer file could not be opened or written
	ErrIOFailed = errors.New("buffer io failed")

	// ErrStageFailed indicates the buffer could not be added to the index
	ErrStageFailed = errors.New("stage failed")

	// ErrCommitFailed indicates the commit object could not be created
	ErrCommitFailed = errors.New("commit failed")

	// ErrPushFailed indicates the remote did not accept the push
	ErrPushFailed = errors.New("push failed")

	// ErrLockAcquisitionFailure indicates a lock file could not be acquired
	ErrLockAcquisitionFailure = errors.New("failed to acquire lock")

	// ErrAlreadyRunning indicates another process is writing to the same mirror
	ErrAlreadyRunning = errors.New("another simpletext process is already writing to this mirror")
)

// New, Is, As and Join forward to the standard library so callers
// need only this package.
func New(message string) error {
	return errors.New(message)
}

// Wrap prefixes err with message, keeping err matchable with Is.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted prefix.
func Wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}

// GitError represents an error that occurred during an index, commit or push
// operation against the mirror.
type GitError struct {
	Operation string
	Args      []string
	Err       error
	Output    string
}

func (e *GitError) Error() string {
	msg := fmt.Sprintf("git %s failed", e.Operation)
	if e.Output != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Output)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *GitError) Unwrap() error {
	return e.Err
}

func NewGitError(operation string, args []string, err error, output string) *GitError {
	return &GitError{
		Operation: operation,
		Args:      args,
		Err:       err,
		Output:    output,
	}
}

// RepoError represents a failure to open, clone or check out the local mirror.
type RepoError struct {
	Op   string
	Path string
	Err  error
}

func (e *RepoError) Error() string {
	return fmt.Sprintf("repository %s at %s: %v", e.Op, e.Path, e.Err)
}

func (e *RepoError) Unwrap() error {
	return e.Err
}

func NewRepoError(op, path string, err error) *RepoError {
	return &RepoError{Op: op, Path: path, Err: err}
}

// CryptoError represents a failed invocation of an external encrypt or
// decrypt transform. PlaintextExposed is set when the failure left the file
// decrypted on disk.
type CryptoError struct {
	Transform        string
	Path             string
	Output           string
	PlaintextExposed bool
	Err              error
}

func (e *CryptoError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Transform, e.Path)
	if e.PlaintextExposed {
		msg += " (file left as plaintext)"
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Output)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrPlaintextExposed on exposed failures.
func (e *CryptoError) Is(target error) bool {
	return e.PlaintextExposed && target == ErrPlaintextExposed
}

func NewCryptoError(transform, path string, err error, output string) *CryptoError {
	return &CryptoError{
		Transform: transform,
		Path:      path,
		Output:    output,
		Err:       err,
	}
}

// IOError represents a filesystem failure while mutating a buffer.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError. The returned error always matches ErrIOFailed.
func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", ErrIOFailed, err)}
}

// LockError reports a failure on a mirror's lock file. PID names the holder
// when it is known.
type LockError struct {
	LockFile string
	PID      int
	Err      error
}

func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("lock error with file %s (PID: %d): %v", e.LockFile, e.PID, e.Err)
	}
	return fmt.Sprintf("lock error with file %s: %v", e.LockFile, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

func NewLockError(lockFile string, pid int, err error) *LockError {
	return &LockError{
		LockFile: lockFile,
		PID:      pid,
		Err:      err,
	}
}

// ConfigError names the configuration key that failed validation.
type ConfigError struct {
	Parameter string
	Value     interface{}
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("configuration error for %s = %v: %v", e.Parameter, e.Value, e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %v", e.Parameter, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(parameter string, value interface{}, err error) *ConfigError {
	return &ConfigError{
		Parameter: parameter,
		Value:     value,
		Err:       err,
	}
}
