package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/engine"
	internalErrors "github.com/bashhack/simpletext/internal/errors"
	"github.com/bashhack/simpletext/internal/logger"
	"github.com/bashhack/simpletext/internal/repo"
	"github.com/bashhack/simpletext/internal/server"
)

// Syncer runs sync requests against the mirror
type Syncer interface {
	OpenOrReconcileRepo(ctx context.Context) (*repo.Mirror, error)
	SyncBuffer(ctx context.Context, name, text string) (engine.Result, error)
	RetryPush(ctx context.Context) error
	Resolve(name string) (string, error)
}

// ServeFunc runs the HTTP surface until ctx is done
type ServeFunc func(ctx context.Context, addr string, syncer server.Syncer, log logger.Logger) error

// AppOptions contains app configuration and dependencies
type AppOptions struct {
	VersionInfo config.VersionInfo

	// Optional components
	Provider config.Provider
	Logger   logger.Logger
	Engine   Syncer

	// I/O dependencies
	Stdout io.Writer
	Stderr io.Writer

	// System dependencies
	Exit  func(code int)
	Serve ServeFunc
}

// App is the main simpletext application
type App struct {
	VersionInfo config.VersionInfo
	Provider    config.Provider
	Logger      logger.Logger
	Engine      Syncer

	// I/O streams
	Stdout io.Writer
	Stderr io.Writer

	// System dependencies
	exit  func(code int)
	serve ServeFunc

	flags globalFlags
}

type globalFlags struct {
	configPath string
	debug      bool
	logFile    string
	quiet      bool
	listen     string
}

// NewDefaultApp creates an App with standard dependencies
func NewDefaultApp(versionInfo config.VersionInfo) *App {
	return NewApp(AppOptions{
		VersionInfo: versionInfo,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Exit:        os.Exit,
	})
}

// NewApp creates an App with custom dependencies
func NewApp(opts AppOptions) *App {
	app := &App{
		VersionInfo: opts.VersionInfo,
		Provider:    opts.Provider,
		Logger:      opts.Logger,
		Engine:      opts.Engine,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
		exit:        opts.Exit,
		serve:       opts.Serve,
		flags:       globalFlags{configPath: config.DefaultPath},
	}

	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.exit == nil {
		app.exit = os.Exit
	}
	if app.serve == nil {
		app.serve = defaultServe
	}

	return app
}

func defaultServe(ctx context.Context, addr string, syncer server.Syncer, log logger.Logger) error {
	return server.New(addr, syncer, log).ListenAndServe(ctx)
}

// Initialize sets up components not provided during construction. A
// long-running process watches the config file instead of re-reading it on
// every request.
func (a *App) Initialize(watch bool) error {
	if a.Provider == nil {
		if watch {
			p, err := config.NewWatchingProvider(a.flags.configPath)
			if err != nil {
				return internalErrors.Wrap(internalErrors.ErrInvalidConfiguration, err.Error())
			}
			a.Provider = p
		} else {
			a.Provider = config.NewFileProvider(a.flags.configPath)
		}
	}

	// Configuration errors are fatal before anything touches the mirror.
	cfg, err := a.Provider.Load()
	if err != nil {
		return err
	}

	if a.Logger == nil {
		debug := a.flags.debug || cfg.Debug
		logFile := cfg.LogFile
		if a.flags.logFile != "" {
			logFile = a.flags.logFile
		}
		if debug && logFile == "" {
			logFile = config.DefaultLogFile(cfg.LocalDir)
		}
		a.Logger = logger.NewWithOutput(debug, logFile, !a.flags.quiet, a.Stdout, a.Stderr)
	}

	if a.Engine == nil {
		e, err := engine.New(engine.Options{Provider: a.Provider, Logger: a.Logger})
		if err != nil {
			return fmt.Errorf("failed to create engine: %w", err)
		}
		a.Engine = e
	}

	return nil
}

// Run parses args and executes the matching subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.RootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// RootCmd builds the cobra command tree bound to this App.
func (a *App) RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simpletext",
		Short: "Append notes to encrypted buffers in a git repository",
		Long: `simpletext appends short notes to encrypted text buffers kept in a git
repository, then commits and pushes each change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.Initialize(false)
		},
	}
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", config.DefaultPath, "path to the TOML configuration file")
	pf.BoolVar(&a.flags.debug, "debug", false, "write a structured debug log")
	pf.StringVar(&a.flags.logFile, "log-file", "", "debug log location (default under $XDG_DATA_HOME/simpletext/logs)")
	pf.BoolVarP(&a.flags.quiet, "quiet", "q", false, "hide non-fatal warnings")

	root.AddCommand(
		a.serveCmd(),
		a.appendCmd(),
		a.pushCmd(),
		a.ensureCmd(),
		a.resolveCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *App) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept notes over HTTP",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.Initialize(true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.Provider.Load()
			if err != nil {
				return err
			}
			addr := cfg.ListenAddr
			if a.flags.listen != "" {
				addr = a.flags.listen
			}

			ctx := cmd.Context()
			if _, err := a.Engine.OpenOrReconcileRepo(ctx); err != nil {
				a.Logger.WarningToUser("Mirror is not ready yet, requests will retry: %v", err)
			}
			return a.serve(ctx, addr, a.Engine, a.Logger)
		},
	}
	cmd.Flags().StringVar(&a.flags.listen, "listen", "", "address to listen on (overrides listen_addr)")
	return cmd
}

func (a *App) appendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append <buffer> <text...>",
		Short: "Append one note, then commit and push it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.Engine.SyncBuffer(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				var pipeErr *engine.PipelineError
				if internalErrors.As(err, &pipeErr) && pipeErr.Stage == engine.StagePushed {
					a.Logger.WarningToUser("Commit %s was kept locally, run 'simpletext push' to retry", res.Commit)
				}
				return err
			}
			a.Logger.Success("Appended to %s (%s)", res.Buffer, shortHash(res.Commit.String()))
			return nil
		},
	}
}

func (a *App) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push local commits that a previous append could not deliver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Engine.RetryPush(cmd.Context()); err != nil {
				return err
			}
			a.Logger.Success("Remote is up to date")
			return nil
		},
	}
}

func (a *App) ensureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Clone or reconcile the mirror and print the checked out branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mirror, err := a.Engine.OpenOrReconcileRepo(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.Stdout, mirror.Branch.Short())
			return nil
		},
	}
}

func (a *App) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <buffer>",
		Short: "Print the mirror-relative file a buffer name maps to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := a.Engine.Resolve(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.Stdout, rel)
			return nil
		},
	}
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// No configuration is needed to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			a.ShowVersion()
		},
	}
}

// ShowVersion displays version information
func (a *App) ShowVersion() {
	_, _ = fmt.Fprintf(a.Stdout, "simpletext %s (%s) built on %s\n",
		a.VersionInfo.Version,
		a.VersionInfo.Commit,
		a.VersionInfo.Date)
}

// Close releases resources held by the App
func (a *App) Close() error {
	var errs []error

	if c, ok := a.Provider.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop config watcher: %w", err))
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	return internalErrors.Join(errs...)
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
