// Package logging assembles the structured slog loggers used across the
// contribution pipeline.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so components tag log lines with
// the same field names (contribution IDs, task IDs, languages, pathnames).
// Prefer these constructors over hand-rolled slog setup.
package logging
