// Package cryptotest provides an in-process Shim for tests. Fake applies
// rot13 so ciphertext is easy to recognise and always differs from the
// plaintext.
package cryptotest

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/bashhack/simpletext/internal/errors"
)

// Fake is a crypto.Shim with failure injection. The zero value works.
type Fake struct {
	mu sync.Mutex

	// FailEncrypt makes the next n Encrypt calls fail; -1 fails forever.
	FailEncrypt int
	// FailDecrypt makes the next n Decrypt calls fail; -1 fails forever.
	FailDecrypt int

	Encrypted []string
	Decrypted []string
}

// Encrypt implements crypto.Shim.
func (f *Fake) Encrypt(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Encrypted = append(f.Encrypted, path)
	if consume(&f.FailEncrypt) {
		return errors.NewCryptoError("scramble", path, errors.Wrap(errors.ErrCryptoFailed, "injected failure"), "")
	}
	return rot13File(path)
}

// Decrypt implements crypto.Shim.
func (f *Fake) Decrypt(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Decrypted = append(f.Decrypted, path)
	if consume(&f.FailDecrypt) {
		return errors.NewCryptoError("unscramble", path, errors.Wrap(errors.ErrCryptoFailed, "injected failure"), "")
	}
	return rot13File(path)
}

// Calls returns how many times each transform ran.
func (f *Fake) Calls() (encrypt, decrypt int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Encrypted), len(f.Decrypted)
}

// Seal returns the ciphertext Fake would produce for plain.
func Seal(plain string) string {
	return string(Rot13([]byte(plain)))
}

// Rot13 rotates ASCII letters by 13 places.
func Rot13(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		switch {
		case b >= 'a' && b <= 'z':
			out[i] = 'a' + (b-'a'+13)%26
		case b >= 'A' && b <= 'Z':
			out[i] = 'A' + (b-'A'+13)%26
		default:
			out[i] = b
		}
	}
	return out
}

func consume(n *int) bool {
	switch {
	case *n < 0:
		return true
	case *n > 0:
		*n--
		return true
	}
	return false
}

func rot13File(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewCryptoError("rot13", path, fmt.Errorf("%w: %w", errors.ErrCryptoFailed, err), "")
	}
	if err := os.WriteFile(path, Rot13(data), 0o600); err != nil {
		return errors.NewCryptoError("rot13", path, fmt.Errorf("%w: %w", errors.ErrCryptoFailed, err), "")
	}
	return nil
}
