package cli

import (
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals are the signals that trigger graceful shutdown of the
// run command.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// WaitForShutdown returns a channel that receives shutdown signals
// (SIGINT, SIGTERM). The run command selects on it against the server's
// error channel and reports which signal arrived.
func WaitForShutdown() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, shutdownSignals...)
	return sigChan
}
