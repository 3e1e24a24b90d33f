package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/simpletext/internal/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		RemoteURL:      filepath.Join(dir, "remote.git"),
		LocalDir:       filepath.Join(dir, "mirror"),
		Branch:         "main",
		BufferDirRel:   "notes",
		EncryptCmd:     DefaultEncryptCmd,
		DecryptCmd:     DefaultDecryptCmd,
		EncryptRetries: DefaultEncryptRetries,
	}
}

func TestNewConfig(t *testing.T) {
	c := New()

	assert.Equal(t, DefaultEncryptCmd, c.EncryptCmd)
	assert.Equal(t, DefaultDecryptCmd, c.DecryptCmd)
	assert.Equal(t, DefaultEncryptRetries, c.EncryptRetries)
	assert.Equal(t, DefaultListenAddr, c.ListenAddr)
	assert.False(t, c.Debug)
	assert.Empty(t, c.RemoteURL)
}

func TestParseKeepsOriginalKeys(t *testing.T) {
	c, err := Parse([]byte(`
url = "git@github.com:someone/notes.git"
local_dir = "/srv/notes"
branch = "main"
buffer_dir_rel = "buffers"
ssh_file = "/home/someone/.ssh/id_ed25519"
`))
	require.NoError(t, err)

	want := &Config{
		RemoteURL:      "git@github.com:someone/notes.git",
		LocalDir:       "/srv/notes",
		Branch:         "main",
		BufferDirRel:   "buffers",
		SSHKeyPath:     "/home/someone/.ssh/id_ed25519",
		EncryptCmd:     DefaultEncryptCmd,
		DecryptCmd:     DefaultDecryptCmd,
		EncryptRetries: DefaultEncryptRetries,
		ListenAddr:     DefaultListenAddr,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	_, err := Parse([]byte(`url = `))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))

	var cfgErr *errors.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SIMPLETEXT_URL", "/tmp/remote.git")
	t.Setenv("SIMPLETEXT_BRANCH", "notes")
	t.Setenv("SIMPLETEXT_ENCRYPT_CMD", "age-wrap")
	t.Setenv("SIMPLETEXT_ENCRYPT_RETRIES", "5")
	t.Setenv("SIMPLETEXT_DEBUG", "yes")
	t.Setenv("SIMPLETEXT_LISTEN_ADDR", ":9000")

	c := New()
	c.LoadFromEnvironment()

	assert.Equal(t, "/tmp/remote.git", c.RemoteURL)
	assert.Equal(t, "notes", c.Branch)
	assert.Equal(t, "age-wrap", c.EncryptCmd)
	assert.Equal(t, 5, c.EncryptRetries)
	assert.True(t, c.Debug)
	assert.Equal(t, ":9000", c.ListenAddr)
}

func TestEnvironmentIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("SIMPLETEXT_ENCRYPT_RETRIES", "many")
	t.Setenv("SIMPLETEXT_DEBUG", "maybe")

	c := New()
	c.LoadFromEnvironment()

	assert.Equal(t, DefaultEncryptRetries, c.EncryptRetries)
	assert.False(t, c.Debug)
}

func TestFinalize(t *testing.T) {
	t.Run("accepts a local remote", func(t *testing.T) {
		c := validConfig(t)
		require.NoError(t, c.Finalize())
		assert.Equal(t, filepath.Join(c.LocalDir, "notes"), c.BufferDir())
	})

	t.Run("expands home in local_dir", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)

		c := validConfig(t)
		c.LocalDir = "~/mirror"
		require.NoError(t, c.Finalize())
		assert.Equal(t, filepath.Join(home, "mirror"), c.LocalDir)
	})

	t.Run("requires ssh key for ssh remotes", func(t *testing.T) {
		c := validConfig(t)
		c.RemoteURL = "git@github.com:someone/notes.git"
		err := c.Finalize()
		require.Error(t, err)

		var cfgErr *errors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "ssh_file", cfgErr.Parameter)

		c.SSHKeyPath = "/keys/id_ed25519"
		assert.NoError(t, c.Finalize())
	})

	t.Run("sets a default log file in debug mode", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		c := validConfig(t)
		c.Debug = true
		require.NoError(t, c.Finalize())
		assert.Contains(t, c.LogFile, filepath.Join("simpletext", "logs", "simpletext-"))
	})

	invalidCases := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"missing url", func(c *Config) { c.RemoteURL = "" }, "url"},
		{"missing branch", func(c *Config) { c.Branch = " " }, "branch"},
		{"missing local_dir", func(c *Config) { c.LocalDir = "" }, "local_dir"},
		{"relative local_dir", func(c *Config) { c.LocalDir = "mirror" }, "local_dir"},
		{"absolute buffer_dir_rel", func(c *Config) { c.BufferDirRel = "/etc" }, "buffer_dir_rel"},
		{"escaping buffer_dir_rel", func(c *Config) { c.BufferDirRel = "notes/../../x" }, "buffer_dir_rel"},
		{"bad branch", func(c *Config) { c.Branch = "feature..x" }, "branch"},
		{"https remote", func(c *Config) { c.RemoteURL = "https://github.com/someone/notes.git" }, "url"},
		{"git protocol remote", func(c *Config) { c.RemoteURL = "git://example.com/notes.git" }, "url"},
		{"empty encrypt_cmd", func(c *Config) { c.EncryptCmd = "" }, "encrypt_cmd"},
		{"negative retries", func(c *Config) { c.EncryptRetries = -1 }, "encrypt_retries"},
	}

	for _, tc := range invalidCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig(t)
			tc.mutate(&c)

			err := c.Finalize()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))

			var cfgErr *errors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tc.param, cfgErr.Parameter)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
url = "`+filepath.Join(dir, "remote.git")+`"
local_dir = "`+filepath.Join(dir, "mirror")+`"
branch = "main"
buffer_dir_rel = "notes"
encrypt_retries = 0
`)

	t.Setenv("SIMPLETEXT_BRANCH", "journal")

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "journal", c.Branch, "environment overrides the file")
	assert.Equal(t, 0, c.EncryptRetries)
	assert.Equal(t, DefaultDecryptCmd, c.DecryptCmd)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfiguration))
}
