// Package log holds the global zerolog logger and helpers for component,
// OSD and run scoped child loggers.
package log
