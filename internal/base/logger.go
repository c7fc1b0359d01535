// Package base holds the logging collaborator the limiter needs but does
// not own, kept in its own leaf package the way larger storage engines
// split out a small "base" package rather than letting every internal
// package import the root one just for a logging type.
package base

import (
	"fmt"
	"log"
	"os"
)

// Logger is the sink for the limiter's non-contractual diagnostics: the
// periodic per-tenant call-count dump (spec §9) and anything fatal enough
// to abort the process outright. An embedder that already routes logs
// elsewhere supplies its own implementation via Options.Logger instead of
// taking DefaultLogger's stderr default.
type Logger interface {
	// Infof logs a diagnostic line; it must not block the caller for long,
	// since it can be invoked with the limiter's request mutex held.
	Infof(format string, args ...interface{})
	// Fatalf logs and then terminates the process. Reserved for conditions
	// the limiter has no way to recover from.
	Fatalf(format string, args ...interface{})
}

// DefaultLogger is the Logger used when Options.Logger is left unset: the
// stdlib's log package, with no extra dependency pulled in for what is, by
// default, an optional diagnostic.
type DefaultLogger struct{}

// Infof implements Logger.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements Logger, then calls os.Exit(1).
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}
