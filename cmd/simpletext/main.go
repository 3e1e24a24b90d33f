package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bashhack/simpletext/internal/config"
	"github.com/bashhack/simpletext/internal/errors"
)

// Version information - injected at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// forceExitAfter bounds how long a signalled process may take to wind down.
const forceExitAfter = 10 * time.Second

func main() {
	versionInfo := config.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	app := NewDefaultApp(versionInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-c
		_, _ = fmt.Fprintf(app.Stderr, "\nReceived signal %v, stopping simpletext...\n", sig)
		cancel()

		// A second signal, or a shutdown that hangs, ends the process.
		select {
		case <-c:
		case <-time.After(forceExitAfter):
		}
		_ = app.Close()
		app.exit(1)
	}()

	err := app.Run(ctx, os.Args[1:])
	closeErr := app.Close()

	// Cancellation is the normal signal shutdown path.
	if err != nil && !errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(app.Stderr, "❌ Error: %v\n", err)
		app.exit(1)
	}
	if closeErr != nil {
		app.exit(1)
	}
}
