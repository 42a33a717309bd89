package runtime_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/plugin/runtime"
)

// answerWasm is a hand-assembled minimal module: (module (func
// (export "answer") (result i32) i32.const 42)). Built section by
// section (type, function, export, code) rather than via a fixture
// file, so the test carries its own input.
var answerWasm = []byte{
	0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00, // magic + version
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7F, // type section: () -> i32
	0x03, 0x02, 0x01, 0x00, // function section: func 0 uses type 0
	0x07, 0x0A, 0x01, 0x06, 'a', 'n', 's', 'w', 'e', 'r', 0x00, 0x00, // export "answer" func 0
	0x0A, 0x06, 0x01, 0x04, 0x00, 0x41, 0x2A, 0x0B, // code: i32.const 42; end
}

func TestLoadPluginFailsOnMissingFile(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewWasmEngine(ctx)
	defer e.Close(ctx)

	_, err := e.LoadPlugin(ctx, "/no/such/plugin.wasm", "missing")
	require.Error(t, err)
}

func TestInvokeFailsWhenPluginNotLoaded(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewWasmEngine(ctx)
	defer e.Close(ctx)

	_, err := e.Invoke(ctx, "never-loaded", "run")
	require.Error(t, err)
}

func TestUnloadPluginFailsWhenNotLoaded(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewWasmEngine(ctx)
	defer e.Close(ctx)

	err := e.UnloadPlugin(ctx, "never-loaded")
	require.Error(t, err)
}

func TestLoadInvokeUnloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := runtime.NewWasmEngine(ctx)
	defer e.Close(ctx)

	path := filepath.Join(t.TempDir(), "answer.wasm")
	require.NoError(t, os.WriteFile(path, answerWasm, 0o644))

	md, err := e.LoadPlugin(ctx, path, "answer-plugin")
	require.NoError(t, err)
	require.Equal(t, "answer", md.Name)

	results, err := e.Invoke(ctx, "answer-plugin", "answer")
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)

	require.NoError(t, e.UnloadPlugin(ctx, "answer-plugin"))
	_, err = e.Invoke(ctx, "answer-plugin", "answer")
	require.Error(t, err)
}
