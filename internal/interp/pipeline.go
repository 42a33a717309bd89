package interp

import (
	"context"
	"io"
	"sync"

	"github.com/nexusshell/nexusshell/internal/ast"
	"github.com/nexusshell/nexusshell/internal/shell"
)

// execPipeline wires element i's stdout to element i+1's stdin with
// io.Pipe and runs every element concurrently, so output flows FIFO
// left-to-right as spec.md §5 requires. The empty pipeline returns exit
// 0 with no output (spec.md §8).
func (it *Interpreter) execPipeline(ctx context.Context, shCtx *shell.Context, pl *ast.Pipeline, s Streams) (int, error) {
	n := len(pl.Elements)
	if n == 0 {
		return 0, nil
	}
	if n == 1 {
		return it.Execute(ctx, shCtx, pl.Elements[0], s)
	}

	readers := make([]io.Reader, n)
	writers := make([]io.Writer, n)
	closers := make([]io.Closer, 0, n*2)

	readers[0] = s.Stdin
	writers[n-1] = s.Stdout
	for i := 0; i < n-1; i++ {
		pr, pw := io.Pipe()
		writers[i] = pw
		readers[i+1] = pr
		closers = append(closers, pw, pr)
	}

	codes := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stage := Streams{Stdin: readers[i], Stdout: writers[i], Stderr: s.Stderr}
			codes[i], errs[i] = it.Execute(ctx, shCtx, pl.Elements[i], stage)
			if pw, ok := writers[i].(*io.PipeWriter); ok {
				pw.Close()
			}
		}(i)
	}
	wg.Wait()
	for _, c := range closers {
		c.Close()
	}

	for _, err := range errs {
		if err != nil {
			return codes[n-1], err
		}
	}

	if shCtx.Opts.ErrExit {
		for _, c := range codes {
			if c != 0 {
				return c, nil
			}
		}
	}
	return codes[n-1], nil
}
