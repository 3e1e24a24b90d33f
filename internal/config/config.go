package config

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/pelletier/go-toml/v2"

	"github.com/bashhack/simpletext/internal/errors"
)

const (
	// DefaultPath is read when no --config flag is given.
	DefaultPath = "conf.toml"

	// DefaultEncryptCmd is run on a buffer after every write.
	DefaultEncryptCmd = "scramble"

	// DefaultDecryptCmd is run on an existing buffer before a write.
	DefaultDecryptCmd = "unscramble"

	// DefaultEncryptRetries is the number of extra encrypt attempts after a failure.
	DefaultEncryptRetries = 2

	// DefaultListenAddr for the HTTP surface
	DefaultListenAddr = "127.0.0.1:8080"

	envPrefix = "SIMPLETEXT_"
)

// Config holds every simpletext setting. The first block mirrors the keys of
// the original conf.toml; the rest are optional.
type Config struct {
	// Sync target
	RemoteURL    string `toml:"url"`
	LocalDir     string `toml:"local_dir"`
	Branch       string `toml:"branch"`
	BufferDirRel string `toml:"buffer_dir_rel"`
	SSHKeyPath   string `toml:"ssh_file"`

	// Transforms
	EncryptCmd     string `toml:"encrypt_cmd"`
	DecryptCmd     string `toml:"decrypt_cmd"`
	EncryptRetries int    `toml:"encrypt_retries"`

	KnownHosts string `toml:"known_hosts"`
	ListenAddr string `toml:"listen_addr"`

	// Debugging
	Debug   bool   `toml:"debug"`
	LogFile string `toml:"log_file"`
}

// VersionInfo contains build-time version metadata
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// New creates a new Config with default values
func New() *Config {
	return &Config{
		EncryptCmd:     DefaultEncryptCmd,
		DecryptCmd:     DefaultDecryptCmd,
		EncryptRetries: DefaultEncryptRetries,
		ListenAddr:     DefaultListenAddr,
	}
}

// Parse decodes TOML data on top of the defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	c := New()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, errors.NewConfigError("toml", nil,
			errors.Wrap(errors.ErrInvalidConfiguration, fmt.Sprintf("failed to parse config: %v", err)))
	}
	return c, nil
}

// LoadFile reads path, applies environment overrides and finalizes the result.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.NewConfigError("path", path,
			errors.Wrap(errors.ErrInvalidConfiguration, fmt.Sprintf("failed to read config file: %v", err)))
	}

	c, err := Parse(data)
	if err != nil {
		return Config{}, err
	}

	c.LoadFromEnvironment()

	if err := c.Finalize(); err != nil {
		return Config{}, err
	}
	return *c, nil
}

// LoadFromEnvironment updates config from SIMPLETEXT_* environment variables
func (c *Config) LoadFromEnvironment() {
	c.RemoteURL = getEnvString("URL", c.RemoteURL)
	c.LocalDir = getEnvString("LOCAL_DIR", c.LocalDir)
	c.Branch = getEnvString("BRANCH", c.Branch)
	c.BufferDirRel = getEnvString("BUFFER_DIR_REL", c.BufferDirRel)
	c.SSHKeyPath = getEnvString("SSH_FILE", c.SSHKeyPath)
	c.EncryptCmd = getEnvString("ENCRYPT_CMD", c.EncryptCmd)
	c.DecryptCmd = getEnvString("DECRYPT_CMD", c.DecryptCmd)
	c.EncryptRetries = getEnvInt("ENCRYPT_RETRIES", c.EncryptRetries)
	c.KnownHosts = getEnvString("KNOWN_HOSTS", c.KnownHosts)
	c.ListenAddr = getEnvString("LISTEN_ADDR", c.ListenAddr)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogFile = getEnvString("LOG_FILE", c.LogFile)
}

// Finalize validates and normalizes the configuration
func (c *Config) Finalize() error {
	for _, req := range []struct{ key, value string }{
		{"url", c.RemoteURL},
		{"local_dir", c.LocalDir},
		{"branch", c.Branch},
	} {
		if strings.TrimSpace(req.value) == "" {
			return invalid(req.key, req.value, "is required")
		}
	}

	localDir, err := expandHome(c.LocalDir)
	if err != nil {
		return invalid("local_dir", c.LocalDir, err.Error())
	}
	if !filepath.IsAbs(localDir) {
		return invalid("local_dir", c.LocalDir, "must be an absolute path or start with ~/")
	}
	c.LocalDir = filepath.Clean(localDir)

	if c.BufferDirRel != "" {
		if filepath.IsAbs(c.BufferDirRel) {
			return invalid("buffer_dir_rel", c.BufferDirRel, "must be relative to local_dir")
		}
		rel := filepath.Clean(c.BufferDirRel)
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return invalid("buffer_dir_rel", c.BufferDirRel, "must stay inside local_dir")
		}
		c.BufferDirRel = rel
	}

	if strings.ContainsAny(c.Branch, " \t\n~^:?*[\\") || strings.HasPrefix(c.Branch, "-") || strings.Contains(c.Branch, "..") {
		return invalid("branch", c.Branch, "is not a valid branch name")
	}

	ep, err := c.Endpoint()
	if err != nil {
		return invalid("url", c.RemoteURL, err.Error())
	}
	switch ep.Protocol {
	case "ssh":
		if c.SSHKeyPath == "" {
			return invalid("ssh_file", c.SSHKeyPath, "is required for ssh remotes")
		}
	case "file":
	default:
		return invalid("url", c.RemoteURL, fmt.Sprintf("unsupported protocol %q (only ssh and local paths)", ep.Protocol))
	}

	if c.SSHKeyPath != "" {
		if c.SSHKeyPath, err = expandHome(c.SSHKeyPath); err != nil {
			return invalid("ssh_file", c.SSHKeyPath, err.Error())
		}
	}
	if c.KnownHosts != "" {
		if c.KnownHosts, err = expandHome(c.KnownHosts); err != nil {
			return invalid("known_hosts", c.KnownHosts, err.Error())
		}
	}

	if strings.TrimSpace(c.EncryptCmd) == "" {
		return invalid("encrypt_cmd", c.EncryptCmd, "must not be empty")
	}
	if strings.TrimSpace(c.DecryptCmd) == "" {
		return invalid("decrypt_cmd", c.DecryptCmd, "must not be empty")
	}
	if c.EncryptRetries < 0 {
		return errors.NewConfigError("encrypt_retries", c.EncryptRetries,
			errors.Wrap(errors.ErrInvalidConfiguration, fmt.Sprintf("invalid encrypt_retries: %d (must be at least 0)", c.EncryptRetries)))
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.Debug && c.LogFile == "" {
		c.LogFile = DefaultLogFile(c.LocalDir)
	}

	return nil
}

// Endpoint parses the remote URL. scp-style addresses report the "ssh"
// protocol and bare paths report "file".
func (c Config) Endpoint() (*transport.Endpoint, error) {
	return transport.NewEndpoint(c.RemoteURL)
}

// BufferDir is the absolute directory that holds the buffers.
func (c Config) BufferDir() string {
	return filepath.Join(c.LocalDir, c.BufferDirRel)
}

func invalid(key, value, reason string) error {
	return errors.NewConfigError(key, value,
		errors.Wrap(errors.ErrInvalidConfiguration, fmt.Sprintf("%s %s", key, reason)))
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// DefaultLogFile is the debug log used when none is configured. It follows
// the XDG Base Directory Specification and is keyed by mirror.
func DefaultLogFile(localDir string) string {
	logDir := os.Getenv("XDG_DATA_HOME")
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			logDir = filepath.Join(homeDir, ".local", "share")
		} else {
			logDir = os.TempDir()
		}
	}

	mirrorHash := fmt.Sprintf("%x", sha256OfString(localDir)[:8])
	return filepath.Join(logDir, "simpletext", "logs", fmt.Sprintf("simpletext-%s.log", mirrorHash))
}

// getEnvString returns an environment variable string or a default value
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as int or a default value
func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvBool returns an environment variable as bool or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		valueLower := strings.ToLower(valueStr)
		if valueLower == "true" || valueLower == "1" || valueLower == "yes" {
			return true
		}
		if valueLower == "false" || valueLower == "0" || valueLower == "no" {
			return false
		}
	}
	return defaultValue
}

// sha256OfString returns the SHA256 hash of a string
func sha256OfString(input string) []byte {
	hash := sha256.Sum256([]byte(input))
	return hash[:]
}
