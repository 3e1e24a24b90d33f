// Package crypto invokes the external encrypt and decrypt transforms that keep
// buffers as ciphertext at rest.
//
// The transforms are opaque programs (scramble and unscramble by default)
// that rewrite one file in place. Exit status zero is success; anything else,
// including a failure to spawn, is a *errors.CryptoError matching
// errors.ErrCryptoFailed with the program's stderr attached.
package crypto
