//go:build !windows

package main

import (
	"os"
	"syscall"
)

var restartSignals = []os.Signal{syscall.SIGHUP}
