package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/engine"
	"github.com/bashhack/simpletext/internal/logger"
	"github.com/bashhack/simpletext/internal/repo"
	"github.com/bashhack/simpletext/internal/server"
)

// MockEngine implements Syncer for testing
type MockEngine struct {
	SyncCalls   [][2]string
	EnsureCalls int
	PushCalls   int

	SyncResult engine.Result
	SyncErr    error
	EnsureErr  error
	PushErr    error
	Resolved   string
}

func (m *MockEngine) OpenOrReconcileRepo(ctx context.Context) (*repo.Mirror, error) {
	m.EnsureCalls++
	if m.EnsureErr != nil {
		return nil, m.EnsureErr
	}
	return &repo.Mirror{Path: "/tmp/mirror", Branch: plumbing.NewBranchReferenceName("main")}, nil
}

func (m *MockEngine) SyncBuffer(ctx context.Context, name, text string) (engine.Result, error) {
	m.SyncCalls = append(m.SyncCalls, [2]string{name, text})
	return m.SyncResult, m.SyncErr
}

func (m *MockEngine) RetryPush(ctx context.Context) error {
	m.PushCalls++
	return m.PushErr
}

func (m *MockEngine) Resolve(name string) (string, error) {
	return m.Resolved, nil
}

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	Messages    []string
	CloseCalled bool
	CloseErr    error
}

func (m *MockLogger) record(level, format string, args ...interface{}) {
	m.Messages = append(m.Messages, level+": "+fmt.Sprintf(format, args...))
}

func (m *MockLogger) Info(format string, args ...interface{})    { m.record("info", format, args...) }
func (m *MockLogger) Warning(format string, args ...interface{}) { m.record("warning", format, args...) }
func (m *MockLogger) Error(format string, args ...interface{})   { m.record("error", format, args...) }
func (m *MockLogger) InfoToUser(format string, args ...interface{}) {
	m.record("user-info", format, args...)
}
func (m *MockLogger) WarningToUser(format string, args ...interface{}) {
	m.record("user-warning", format, args...)
}
func (m *MockLogger) Success(format string, args ...interface{}) { m.record("success", format, args...) }
func (m *MockLogger) StatusMessage(format string, args ...interface{}) {
	m.record("status", format, args...)
}

func (m *MockLogger) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// testApp bundles an App with its captured streams and mocks.
type testApp struct {
	*App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	engine *MockEngine
	logger *MockLogger

	serveAddr string
	exitCode  int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := config.New()
	cfg.RemoteURL = filepath.Join(t.TempDir(), "remote.git")
	cfg.LocalDir = filepath.Join(t.TempDir(), "mirror")
	cfg.Branch = "main"
	cfg.BufferDirRel = "notes"
	provider, err := config.NewStatic(*cfg)
	require.NoError(t, err)

	ta := &testApp{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		engine:   &MockEngine{},
		logger:   &MockLogger{},
		exitCode: -1,
	}
	ta.App = NewApp(AppOptions{
		VersionInfo: config.VersionInfo{Version: "1.2.3", Commit: "abc1234", Date: "2025-03-07"},
		Provider:    provider,
		Logger:      ta.logger,
		Engine:      ta.engine,
		Stdout:      ta.stdout,
		Stderr:      ta.stderr,
		Exit:        func(code int) { ta.exitCode = code },
		Serve: func(ctx context.Context, addr string, syncer server.Syncer, log logger.Logger) error {
			ta.serveAddr = addr
			return nil
		},
	})
	return ta
}
