package main

import "os"

// Windows has no SIGHUP; restart is not bound to a signal there.
var restartSignals []os.Signal
