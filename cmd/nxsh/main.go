// Command nxsh is the NexusShell REPL and script-runner entrypoint
// (spec.md §6/§9): it wires the builtin registry, the dual execution
// strategies (direct AST interpreter and lower→optimize→VM), and the
// subshell isolator's external-process convention.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/builtin"
	"github.com/nexusshell/nexusshell/internal/interp"
	"github.com/nexusshell/nexusshell/internal/lower"
	"github.com/nexusshell/nexusshell/internal/mir/vm"
	"github.com/nexusshell/nexusshell/internal/optimize"
	"github.com/nexusshell/nexusshell/internal/shell"
	"github.com/nexusshell/nexusshell/internal/syntax"
)

var errColor = color.New(color.FgRed)

func main() {
	app := &cli.App{
		Name:  "nxsh",
		Usage: "NexusShell",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subshell", Usage: "run a serialized subshell script and exit (internal use)"},
			&cli.StringFlag{Name: "strategy", Value: "direct", Usage: "execution strategy: direct or vm"},
			&cli.StringFlag{Name: "command", Aliases: []string{"c"}, Usage: "execute a single command string and exit"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	reg := builtin.NewRegistry()
	builtin.RegisterCore(reg)
	builtin.RegisterPing(reg)

	strategy := c.String("strategy")

	if path := c.String("subshell"); path != "" {
		code, err := runSubshellScript(context.Background(), path, reg, strategy)
		if err != nil {
			errColor.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
		return nil
	}

	if cmdline := c.String("command"); cmdline != "" {
		code, err := runOne(context.Background(), cmdline, reg, strategy, shell.New(cwd()), interp.Streams{
			Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr,
		})
		if err != nil {
			errColor.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
		return nil
	}

	return repl(reg, strategy)
}

func cwd() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

// runSubshellScript re-parses a script file written by
// internal/subshell.RunExternal and executes it against a fresh
// context seeded from the inherited environment (spec.md §4.5/§6).
func runSubshellScript(ctx context.Context, path string, reg *builtin.Registry, strategy string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 1, fmt.Errorf("nxsh: read subshell script: %w", err)
	}

	shCtx := shell.New(cwd())
	shCtx.ShellLevel++
	for _, kv := range os.Environ() {
		name, value, ok := splitEnv(kv)
		if !ok {
			continue
		}
		shCtx.SetVariable(name, shell.Variable{Value: value, Exported: true})
	}

	return runOne(ctx, string(content), reg, strategy, shCtx, interp.Streams{
		Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr,
	})
}

func splitEnv(kv string) (name, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}

// runOne parses src and executes it once under the requested strategy,
// streaming to s.
func runOne(ctx context.Context, src string, reg *builtin.Registry, strategy string, shCtx *shell.Context, s interp.Streams) (int, error) {
	prog, err := syntax.Parse(src)
	if err != nil {
		return 2, err
	}

	if strategy == "vm" {
		return runVM(ctx, shCtx, reg, prog, s)
	}
	return runDirect(ctx, shCtx, reg, prog, s)
}

// runDirect executes prog with the C5 direct AST interpreter.
func runDirect(ctx context.Context, shCtx *shell.Context, reg *builtin.Registry, prog *ast.Program, s interp.Streams) (int, error) {
	it := interp.New(reg)
	return it.Execute(ctx, shCtx, prog, s)
}

// runVM lowers prog to MIR (C3), runs the C4 optimization pipeline, and
// executes the result on the C2 register VM, sharing command resolution
// with the direct interpreter via interp.VMExecutor (spec.md §8's
// cross-strategy equivalence).
func runVM(ctx context.Context, shCtx *shell.Context, reg *builtin.Registry, prog *ast.Program, s interp.Streams) (int, error) {
	mprog, err := lower.Lower(prog)
	if err != nil {
		return 1, err
	}
	if _, err := optimize.Run(mprog, optimize.Pipeline()); err != nil {
		return 1, err
	}

	it := interp.New(reg)
	machine := vm.New(reg, interp.NewVMExecutor(it))
	code, err := machine.Run(ctx, shCtx, mprog)
	if s.Stdout != nil {
		fmt.Fprint(s.Stdout, machine.Stdout())
	}
	if s.Stderr != nil {
		fmt.Fprint(s.Stderr, machine.Stderr())
	}
	return code, err
}

func repl(reg *builtin.Registry, strategy string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	shCtx := shell.New(cwd())
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	streams := interp.Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}

	for {
		input, err := line.Prompt(prompt(shCtx))
		if err != nil {
			if err == liner.ErrPromptAborted {
				return nil
			}
			if err.Error() == "EOF" {
				return nil
			}
			return err
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		code, err := runOne(ctx, input, reg, strategy, shCtx, streams)
		if err != nil {
			errColor.Fprintln(os.Stderr, err)
		}
		shCtx.SetVariable("?", shell.Variable{Value: fmt.Sprintf("%d", code)})
	}
}

func prompt(shCtx *shell.Context) string {
	if shCtx.Opts.SubshellLevel > 0 {
		return fmt.Sprintf("nxsh(%d)> ", shCtx.Opts.SubshellLevel)
	}
	return "nxsh> "
}
