// Package debug provides opt-in diagnostic logging for mi.
//
// Logging is off unless MI_DEBUG is set. Output goes to stderr, or to a
// size-rotated file when configured via SetLogFile, so long-running batch
// mining runs cannot fill the disk with diagnostics.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	enabled           = os.Getenv("MI_DEBUG") != ""
)

// Enabled reports whether debug logging is on.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled overrides the MI_DEBUG default.
func SetEnabled(on bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
}

// SetLogFile routes debug output to path with size-based rotation.
// maxSizeMB <= 0 uses a 10MB default.
func SetLogFile(path string, maxSizeMB, maxBackups int) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	mu.Lock()
	defer mu.Unlock()
	out = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
}

// Logf writes a formatted debug line when debug logging is enabled.
func Logf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	fmt.Fprintf(out, "[mi] "+format+"\n", args...)
}
