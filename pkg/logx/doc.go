// Package logx is a thin structured-logging layer over zerolog.
//
// It exposes a value-type Logger whose zero value is a safe no-op, field
// helpers for call sites, and a Service that owns the sinks (console,
// file) and can swap level/outputs at runtime when the config reloads.
package logx
