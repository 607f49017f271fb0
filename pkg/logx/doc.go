// Package logx provides structured logging for the scheduler.
//
// It wraps zerolog behind a small Field-based API so call sites stay
// independent of the underlying logging library. The Service supports
// swapping sinks and levels at runtime (console and/or file), which lets a
// config reload adjust verbosity without restarting the daemon.
//
// The zero-value Logger and Nop() are safe no-op loggers for tests.
package logx
