// Package simpletext keeps short notes in encrypted text buffers inside a git
// repository.
//
// Each note names a buffer ("todo", "places", ...) and carries a line of
// text. simpletext makes sure a local mirror of the remote repository exists
// on the configured branch, decrypts the buffer in place, appends the text,
// encrypts it again, then commits and pushes the change. Buffers are only
// plaintext on disk for the duration of one append.
//
// # Quick Start
//
//	# Describe the remote and the mirror
//	cat > conf.toml <<EOF
//	url            = "git@github.com:me/notes.git"
//	local_dir      = "~/.local/share/simpletext/notes"
//	branch         = "main"
//	buffer_dir_rel = "buffers"
//	ssh_file       = "~/.ssh/id_ed25519"
//	EOF
//
//	# Append a note from the shell
//	simpletext append todo "renew passport"
//
//	# Or accept notes over HTTP
//	simpletext serve --listen 127.0.0.1:8080
//	curl -d '{"buffer":"places","text":"Porto"}' http://127.0.0.1:8080/api/simple-text
//
// # Buffers
//
// Twelve names map to fixed files under buffer_dir_rel: places, todo, ideas,
// journal, books, movies, music, quotes, links, recipes, shopping and work.
// Any other name is written to unsorted/<timestamp>.txt, one file per minute.
//
// # Encryption
//
// simpletext never sees key material. It runs encrypt_cmd and decrypt_cmd
// (default "scramble" and "unscramble") with the absolute buffer path as the
// last argument and expects them to rewrite the file in place. If encryption
// keeps failing after an append the buffer stays plaintext on disk, the
// request fails, and nothing is committed.
//
// # Module Structure
//
//   - cmd/simpletext: Command-line interface and HTTP server entry point
//   - internal/engine: Sync state machine and single-writer gate
//   - internal/repo: Clone, open and branch reconciliation of the mirror
//   - internal/buffer: Buffer naming and the decrypt/append/encrypt cycle
//   - internal/git: Stage, commit and push
//   - internal/crypto: External encrypt/decrypt commands
//   - internal/server: HTTP surface
//   - internal/config: TOML configuration, environment overrides, providers
//   - internal/lock: Cross-process lock file per mirror
//   - internal/logger: Structured debug log and user messages
//   - internal/errors: Error types and sentinels
//
// # Implementation Notes
//
// Git operations use go-git rather than the git executable, so a mirror can
// be managed on hosts without git installed. History is kept linear: every
// commit has one parent and a rejected push is never merged or forced. Run
// "simpletext push" once the remote accepts the branch again.
package simpletext
