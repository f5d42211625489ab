// Package monitoring holds the process-wide diagnostic log seam shared by
// the fusion and encoding packages. Hot-path code logs through Logf so a
// deployment can redirect or mute diagnostics without threading a logger
// through every constructor.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// and may be swapped with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Silence mutes the package logger and returns a function that restores
// the previous one. Intended for tests that exercise noisy failure paths.
func Silence() func() {
	prev := Logf
	SetLogger(nil)
	return func() { Logf = prev }
}
