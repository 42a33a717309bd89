// Package builtin implements the C7 Builtin Registry (spec.md §4.6): a
// name→handler map consulted before external-process resolution by both
// the direct interpreter (internal/interp) and the MIR VM
// (internal/mir/vm).
package builtin

import (
	"time"

	"github.com/nexusshell/nexusshell/internal/shell"
)

// Result is the handler contract's return value: exit_code, captured
// stdout/stderr, timing and free-form metrics.
type Result struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Micros    int64
	Metrics   map[string]any
}

// Handler is given the shell context (mutable, e.g. for "cd") and the
// command's arguments (name excluded). AffectsShellState signals that
// the handler may have mutated the context, so callers holding a cached
// view of it should refresh.
type Handler interface {
	Name() string
	AffectsShellState() bool
	Invoke(ctx *shell.Context, args []string) Result
}

// Registry is the name→handler map. It is safe for concurrent read
// access once Register calls during startup have completed; NexusShell
// never mutates the registry after the shell's builtins are installed.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.Name()] = h
}

// Lookup returns the handler for name, if any.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Run times and invokes the handler for name, if registered. The second
// return value reports whether a builtin handled the command at all.
func (r *Registry) Run(ctx *shell.Context, name string, args []string) (Result, bool) {
	h, ok := r.handlers[name]
	if !ok {
		return Result{}, false
	}
	start := time.Now()
	res := h.Invoke(ctx, args)
	res.Micros = time.Since(start).Microseconds()
	return res, true
}

// funcHandler adapts a plain function into a Handler, for builtins
// simple enough not to need their own named type.
type funcHandler struct {
	name    string
	affects bool
	fn      func(ctx *shell.Context, args []string) Result
}

func (f *funcHandler) Name() string            { return f.name }
func (f *funcHandler) AffectsShellState() bool { return f.affects }
func (f *funcHandler) Invoke(ctx *shell.Context, args []string) Result {
	return f.fn(ctx, args)
}

// New builds a Handler from a plain function.
func New(name string, affectsShellState bool, fn func(ctx *shell.Context, args []string) Result) Handler {
	return &funcHandler{name: name, affects: affectsShellState, fn: fn}
}
