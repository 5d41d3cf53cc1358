package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandler returns a channel that is closed on SIGINT, SIGTERM or
// SIGPIPE. The run finishes the files in flight and stops.
func setupSignalHandler() <-chan struct{} {
	shutdown := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGPIPE)

	go func() {
		sig := <-sigChan
		signal.Stop(sigChan)
		if sig != syscall.SIGPIPE {
			fmt.Fprintf(os.Stderr, "\nReceived signal: %v, stopping after current files\n", sig)
		}
		close(shutdown)
	}()

	return shutdown
}
