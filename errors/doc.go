// Package errors provides the structured error type used across consolehost.
// Every failure surfaced to a caller carries a machine-readable code, a
// human-readable message and, where one exists, the underlying cause.
package errors
