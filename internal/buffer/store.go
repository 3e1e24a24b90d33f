package buffer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/crypto"
	"github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/logger"
)

// Store appends text to encrypted buffers inside a mirror.
type Store struct {
	root         string
	bufferDirRel string
	retries      int
	shim         crypto.Shim
	logger       logger.Logger
	now          func() time.Time
}

// NewStore creates a Store for the mirror described by cfg.
func NewStore(cfg config.Config, shim crypto.Shim, log logger.Logger) *Store {
	return NewStoreWithClock(cfg, shim, log, time.Now)
}

// NewStoreWithClock creates a Store that names unsorted buffers with now.
func NewStoreWithClock(cfg config.Config, shim crypto.Shim, log logger.Logger, now func() time.Time) *Store {
	return &Store{
		root:         cfg.LocalDir,
		bufferDirRel: filepath.ToSlash(cfg.BufferDirRel),
		retries:      cfg.EncryptRetries,
		shim:         shim,
		logger:       log,
		now:          now,
	}
}

// Resolve returns the mirror-relative, slash-separated path for name.
func (s *Store) Resolve(name string) string {
	return path.Join(s.bufferDirRel, ResolveName(name, s.now()))
}

// Append decrypts the buffer for name, appends text on its own line
// surrounded by newlines and encrypts it again. It returns the
// mirror-relative path of the buffer.
//
// Encryption is attempted even when the write fails and survives
// cancellation of ctx. If it still fails the buffer is plaintext on disk, the
// returned error matches errors.ErrPlaintextExposed, and the buffer is marked
// so the next append skips decryption and encrypts the whole file again.
func (s *Store) Append(ctx context.Context, name, text string) (string, error) {
	rel := s.Resolve(name)
	abs := filepath.Join(s.root, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if info.IsDir() {
			return "", errors.NewIOError("open", abs, fmt.Errorf("is a directory"))
		}
		canonical, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", errors.NewIOError("resolve", abs, err)
		}
		abs = canonical
		if s.exposed(rel) {
			s.logger.WarningToUser("Buffer %s was left as plaintext by an earlier append, re-encrypting it with this entry", rel)
		} else if err := s.shim.Decrypt(ctx, abs); err != nil {
			s.logger.Error("Failed to decrypt %s: %v", rel, err)
			return "", err
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return "", errors.NewIOError("mkdir", filepath.Dir(abs), err)
		}
		s.logger.Info("Creating buffer %s", rel)
	default:
		return "", errors.NewIOError("stat", abs, err)
	}

	writeErr := appendEntry(abs, text)
	if writeErr != nil {
		s.logger.Error("Failed to append to %s: %v", rel, writeErr)
	}

	if _, err := os.Stat(abs); err == nil {
		if encErr := s.encrypt(context.WithoutCancel(ctx), abs); encErr != nil {
			s.logger.Error("Buffer %s is plaintext on disk: %v", rel, encErr)
			s.logger.WarningToUser("Buffer %s could not be re-encrypted and is plaintext on disk", abs)
			errs := []error{encErr, writeErr}
			if err := s.markExposed(rel); err != nil {
				s.logger.Error("Failed to record that %s is plaintext: %v", rel, err)
				errs = append(errs, err)
			}
			return "", errors.Join(errs...)
		}
		if err := s.clearExposed(rel); err != nil {
			s.logger.Warning("Failed to clear plaintext marker for %s: %v", rel, err)
		}
	}

	if writeErr != nil {
		return "", writeErr
	}
	return rel, nil
}

// exposedMarker is the file recording that the buffer at rel was left
// decrypted. It lives under .git so it is never staged.
func (s *Store) exposedMarker(rel string) string {
	return filepath.Join(s.root, ".git", "simpletext", "exposed", filepath.FromSlash(rel))
}

// exposed reports whether an earlier append left rel as plaintext. The next
// append must not decrypt it again.
func (s *Store) exposed(rel string) bool {
	_, err := os.Stat(s.exposedMarker(rel))
	return err == nil
}

func (s *Store) markExposed(rel string) error {
	marker := s.exposedMarker(rel)
	if err := os.MkdirAll(filepath.Dir(marker), 0o700); err != nil {
		return errors.NewIOError("mkdir", filepath.Dir(marker), err)
	}
	stamp := s.now().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(marker, []byte(stamp), 0o600); err != nil {
		return errors.NewIOError("write", marker, err)
	}
	return nil
}

func (s *Store) clearExposed(rel string) error {
	if err := os.Remove(s.exposedMarker(rel)); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("remove", s.exposedMarker(rel), err)
	}
	return nil
}

// encrypt runs the encrypt transform up to 1+retries times.
func (s *Store) encrypt(ctx context.Context, abs string) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err = s.shim.Encrypt(ctx, abs); err == nil {
			return nil
		}
		s.logger.Warning("Encrypt attempt %d/%d for %s failed: %v", attempt+1, s.retries+1, abs, err)
	}

	var cryptoErr *errors.CryptoError
	if !errors.As(err, &cryptoErr) {
		cryptoErr = errors.NewCryptoError("encrypt", abs, fmt.Errorf("%w: %w", errors.ErrCryptoFailed, err), "")
	}
	cryptoErr.PlaintextExposed = true
	return cryptoErr
}

func appendEntry(abs, text string) error {
	f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.NewIOError("open", abs, err)
	}

	if _, err := f.WriteString("\n" + text + "\n"); err != nil {
		_ = f.Close()
		return errors.NewIOError("write", abs, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewIOError("close", abs, err)
	}
	return nil
}
