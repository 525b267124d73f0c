// Package monitoring holds the diagnostic logger shared by the processing
// packages. Processing code never writes to stdout directly.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Component tags diagnostic lines with a subsystem name, e.g. "[dealias] ...".
type Component string

// Logf forwards to the package logger with the component prefix. The package
// logger is looked up on every call so SetLogger takes effect immediately.
func (c Component) Logf(format string, v ...interface{}) {
	Logf("["+string(c)+"] "+format, v...)
}
