// Package config provides configuration handling for the simpletext application.
//
// Settings come from a TOML file (conf.toml by default), decoded with
// github.com/pelletier/go-toml/v2, and may be overridden by environment
// variables. A Provider hands a validated Config to each sync run.
//
// # Core Components
//
// - Config: Main configuration type that holds all simpletext settings
// - Provider: Source of a fresh Config per operation
// - FileProvider: Re-reads the file on every Load
// - WatchingProvider: Caches the file until fsnotify reports a change
// - Static: Fixed configuration for tests and one-shot commands
//
// # Configuration File
//
//	url            = "git@github.com:someone/notes.git"
//	local_dir      = "~/notes-mirror"
//	branch         = "main"
//	buffer_dir_rel = "buffers"
//	ssh_file       = "~/.ssh/id_ed25519"
//
//	# optional
//	encrypt_cmd     = "scramble"
//	decrypt_cmd     = "unscramble"
//	encrypt_retries = 2
//	known_hosts     = "~/.ssh/known_hosts"
//	listen_addr     = "127.0.0.1:8080"
//	debug           = false
//	log_file        = ""
//
// # Environment Variables
//
// Every key can be overridden by SIMPLETEXT_<KEY>, for example
// SIMPLETEXT_BRANCH or SIMPLETEXT_ENCRYPT_RETRIES. Values that cannot be
// parsed are ignored.
//
// # Validation
//
// Finalize rejects missing required keys, relative mirror paths, buffer
// directories that escape the mirror and remotes other than ssh or local
// paths. Every failure is a *errors.ConfigError matching
// errors.ErrInvalidConfiguration.
package config
