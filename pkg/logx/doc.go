// Package logx wraps zerolog behind a small structured-logging API.
//
// Components take a Logger value and derive per-component loggers via
// With(). The Service owns the sinks (console, file) and can swap them
// at runtime when the config file changes, without invalidating loggers
// that were handed out earlier.
package logx
