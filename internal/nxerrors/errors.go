// Package nxerrors defines the tagged error variants used across
// NexusShell's subsystems (spec.md §7): ParseError, RuntimeError,
// IOError, SystemError, InternalError and DependencyFailed. Each type
// carries its own exit code so callers never re-derive one from string
// matching.
package nxerrors

import (
	"errors"
	"fmt"
)

// RuntimeKind distinguishes the RuntimeError sub-kinds named in spec.md §7.
type RuntimeKind uint8

const (
	RuntimeCommandNotFound RuntimeKind = iota
	RuntimeInvalidArgument
	RuntimeTimeout
	RuntimeProcessError
)

// ParseError reports invalid command syntax or an invalid option. The
// message includes the offending token.
type ParseError struct {
	Token string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error near %q: %s", e.Token, e.Msg)
}

// ExitCode is 2 for script-mode parse failures, per spec.md §7.
func (e *ParseError) ExitCode() int { return 2 }

// RuntimeError covers CommandNotFound (127), InvalidArgument, Timeout
// and ProcessError. It is non-fatal in interactive mode.
type RuntimeError struct {
	Kind RuntimeKind
	Msg  string
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func (e *RuntimeError) ExitCode() int {
	if e.Kind == RuntimeCommandNotFound {
		return 127
	}
	return 1
}

func NewCommandNotFound(name string) *RuntimeError {
	return &RuntimeError{Kind: RuntimeCommandNotFound, Msg: fmt.Sprintf("command not found: %s", name)}
}

func NewInvalidArgument(msg string) *RuntimeError {
	return &RuntimeError{Kind: RuntimeInvalidArgument, Msg: msg}
}

func NewTimeout(msg string) *RuntimeError {
	return &RuntimeError{Kind: RuntimeTimeout, Msg: msg}
}

func NewProcessError(msg string, err error) *RuntimeError {
	return &RuntimeError{Kind: RuntimeProcessError, Msg: msg, Err: err}
}

// IOError wraps an underlying filesystem or socket failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("io error during %s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) ExitCode() int { return 1 }

func NewIOError(op string, err error) *IOError {
	return &IOError{Op: op, Err: err}
}

// SystemKind distinguishes SystemError sub-kinds.
type SystemKind uint8

const (
	SystemUnsupportedOperation SystemKind = iota
	SystemProcessError
)

// SystemError reports an unsupported platform operation (e.g. IPv6
// traceroute without raw IPv6 access) or a process-level failure.
type SystemError struct {
	Kind SystemKind
	Msg  string
}

func (e *SystemError) Error() string { return e.Msg }
func (e *SystemError) ExitCode() int { return 1 }

func NewUnsupportedOperation(msg string) *SystemError {
	return &SystemError{Kind: SystemUnsupportedOperation, Msg: msg}
}

// InternalError reports an invariant violation: lock poisoning, a
// read-before-write in the MIR VM, or similar. It is non-recoverable
// for the current command, but the shell process survives.
type InternalError struct {
	Invariant string
	Err       error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Invariant, e.Err)
	}
	return fmt.Sprintf("internal error: %s", e.Invariant)
}

func (e *InternalError) Unwrap() error { return e.Err }
func (e *InternalError) ExitCode() int { return 1 }

func NewInternalError(invariant string, err error) *InternalError {
	return &InternalError{Invariant: invariant, Err: err}
}

// DependencyFailed reports an aborted plugin load: the failing
// dependency id and the reason it failed.
type DependencyFailed struct {
	PluginID     string
	DependencyID string
	Reason       string
}

func (e *DependencyFailed) Error() string {
	if e.DependencyID != "" && e.DependencyID != e.PluginID {
		return fmt.Sprintf("plugin %s: dependency %s failed: %s", e.PluginID, e.DependencyID, e.Reason)
	}
	return fmt.Sprintf("plugin %s: %s", e.PluginID, e.Reason)
}

func (e *DependencyFailed) ExitCode() int { return 1 }

func NewDependencyFailed(pluginID, dependencyID, reason string) *DependencyFailed {
	return &DependencyFailed{PluginID: pluginID, DependencyID: dependencyID, Reason: reason}
}

// ExitCoder is implemented by every error type in this package.
type ExitCoder interface {
	error
	ExitCode() int
}

// CodeOf extracts the exit code of err if it (or something it wraps)
// implements ExitCoder, otherwise returns the fallback for an ordinary,
// untagged error.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ec ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}
