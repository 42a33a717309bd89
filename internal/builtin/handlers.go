package builtin

import (
	"fmt"
	"os"
	"strings"

	"github.com/nexusshell/nexusshell/internal/shell"
)

// RegisterCore installs the builtins this repo implements directly:
// echo, true, false, cd, export, exit, pwd. Compression, cron, find and
// netstat builtins are external collaborators (spec.md §1 Non-goals)
// and are not registered here; see external.go.
func RegisterCore(r *Registry) {
	r.Register(New("echo", false, echoHandler))
	r.Register(New("true", false, func(*shell.Context, []string) Result { return Result{ExitCode: 0} }))
	r.Register(New("false", false, func(*shell.Context, []string) Result { return Result{ExitCode: 1} }))
	r.Register(New("cd", true, cdHandler))
	r.Register(New("export", true, exportHandler))
	r.Register(New("exit", true, exitHandler))
	r.Register(New("pwd", false, pwdHandler))
}

func echoHandler(_ *shell.Context, args []string) Result {
	return Result{ExitCode: 0, Stdout: strings.Join(args, " ") + "\n"}
}

func cdHandler(ctx *shell.Context, args []string) Result {
	dir := ""
	if len(args) > 0 {
		dir = args[0]
	} else if home, ok := ctx.Variable("HOME"); ok {
		dir = home.Value
	}
	if dir == "" {
		return Result{ExitCode: 1, Stderr: "cd: no directory specified\n"}
	}
	resolved := dir
	if !strings.HasPrefix(dir, "/") {
		resolved = ctx.Cwd + "/" + dir
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return Result{ExitCode: 1, Stderr: fmt.Sprintf("cd: no such directory: %s\n", dir)}
	}
	ctx.Cwd = resolved
	return Result{ExitCode: 0}
}

func exportHandler(ctx *shell.Context, args []string) Result {
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			ctx.SetVariable(name, shell.Variable{Value: value, Exported: true})
		} else {
			ctx.Export(name)
		}
	}
	return Result{ExitCode: 0}
}

func exitHandler(_ *shell.Context, args []string) Result {
	code := 0
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &code)
	}
	return Result{ExitCode: code}
}

func pwdHandler(ctx *shell.Context, _ []string) Result {
	return Result{ExitCode: 0, Stdout: ctx.Cwd + "\n"}
}
