package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals are the signals that request a graceful triggerd stop.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler returns a context cancelled on the first SIGINT or
// SIGTERM. The stop function unregisters the handler, restoring default
// signal behavior so a second signal can still kill a hung shutdown.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), shutdownSignals...)
}

// WaitForShutdown blocks until a shutdown signal arrives and returns it.
func WaitForShutdown() os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)
	defer signal.Stop(ch)
	return <-ch
}
