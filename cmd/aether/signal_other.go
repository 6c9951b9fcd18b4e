//go:build !unix

package main

import (
	"os"
	"os/signal"
	"time"
)

const shutdownTimeout = 5 * time.Second

func notifySignals() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	return sigCh
}
