// Package shell holds the per-execution ShellContext (spec.md §3):
// variables, environment, control-flow options, the function/alias
// tables, and a handle to the JobManager. Subshell isolation
// (internal/subshell) builds new ShellContexts from this package's
// constructors rather than mutating a shared one.
package shell

import (
	"sync"
)

// Variable is a single shell variable: its string value plus the
// export/readonly flags spec.md §3 names.
type Variable struct {
	Value    string
	Exported bool
	Readonly bool
}

// Options carries the control-flow flags and subshell depth spec.md §3
// places on ShellContext: break/continue requests and subshell_level.
type Options struct {
	ErrExit            bool
	BreakRequested     bool
	ContinueRequested  bool
	SubshellLevel      int
}

// Context is the ShellContext of spec.md §3. Exported variables always
// appear in Environment too; SubshellLevel is never negative; Break/
// Continue are cleared whenever a subshell boundary is crossed
// (internal/subshell enforces this on the clones it produces).
type Context struct {
	mu sync.RWMutex

	Variables   map[string]*Variable
	Environment map[string]string
	Opts        Options
	Cwd         string
	ShellLevel  int
	Functions   map[string]*Function
	Aliases     map[string]string
	History     []string
	Jobs        *JobManager
}

// Function is a user-defined shell function: a name and a body
// statement to execute when invoked (typed as interface{} here to avoid
// an import cycle with internal/ast; internal/interp populates it with
// an ast.Node).
type Function struct {
	Name string
	Body interface{}
}

// New builds a fresh, empty top-level Context (shell_level 0,
// subshell_level 0).
func New(cwd string) *Context {
	return &Context{
		Variables:   map[string]*Variable{},
		Environment: map[string]string{},
		Cwd:         cwd,
		Functions:   map[string]*Function{},
		Aliases:     map[string]string{},
		Jobs:        NewJobManager(),
	}
}

// SetVariable installs or updates a variable, keeping the
// exported-implies-in-environment invariant.
func (c *Context) SetVariable(name string, v Variable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Variables[name] = &v
	if v.Exported {
		c.Environment[name] = v.Value
	} else {
		delete(c.Environment, name)
	}
}

// Variable looks up a variable by name.
func (c *Context) Variable(name string) (Variable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.Variables[name]
	if !ok {
		return Variable{}, false
	}
	return *v, true
}

// Unset removes a variable (and its environment entry, if exported).
func (c *Context) Unset(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Variables, name)
	delete(c.Environment, name)
}

// Export marks an existing variable exported, adding it to Environment.
// A no-op if the variable doesn't exist.
func (c *Context) Export(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.Variables[name]
	if !ok {
		return
	}
	v.Exported = true
	c.Environment[name] = v.Value
}

// EnvSlice renders Environment as "NAME=VALUE" pairs for os/exec.Cmd.Env.
func (c *Context) EnvSlice() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.Environment))
	for k, v := range c.Environment {
		out = append(out, k+"="+v)
	}
	return out
}

// ClearControlFlow resets break/continue, as required at subshell
// boundaries (spec.md §3 invariant).
func (c *Context) ClearControlFlow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Opts.BreakRequested = false
	c.Opts.ContinueRequested = false
}
