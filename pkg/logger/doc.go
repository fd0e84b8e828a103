// Package logger provides a small factory around log/slog with
// per-environment presets, static service attributes, and optional
// context attribute extraction for request-scoped values.
package logger
