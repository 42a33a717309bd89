package mir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockAppendAfterTerminatorPanics(t *testing.T) {
	b := &BasicBlock{ID: 0}
	b.Append(Jump(1))
	require.Panics(t, func() {
		b.Append(ReturnVoid())
	})
}

func TestFunctionRegisterAndBlockAllocationMonotonic(t *testing.T) {
	f := NewFunction("main", nil)
	r0 := f.NewRegister()
	r1 := f.NewRegister()
	require.NotEqual(t, r0, r1)
	require.Equal(t, 2, f.RegisterCount())

	entry, ok := f.Block(f.EntryBlock())
	require.True(t, ok)
	require.Equal(t, f.EntryBlock(), entry.ID)

	b2 := f.NewBlock()
	require.NotEqual(t, entry.ID, b2.ID)
}

func TestValueTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"zero int", Int(0), false},
		{"nonzero int", Int(1), true},
		{"false bool", Bool(false), false},
		{"true bool", Bool(true), true},
		{"empty string", Str(""), false},
		{"nonempty string", Str("x"), true},
		{"empty array", Array(nil), false},
		{"nonempty array", Array([]Value{Int(1)}), true},
		{"unit", Unit(), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.v.Truthy()
			require.True(t, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestProgramFormatIsDeterministic(t *testing.T) {
	p := NewProgram()
	f := NewFunction("main", nil)
	r0 := f.NewRegister()
	entry, _ := f.Block(f.EntryBlock())
	entry.Append(LoadImmediate(r0, Int(42)))
	entry.Append(ReturnValue(r0))
	p.AddFunction(f)

	out1 := p.Format()
	out2 := p.Format()
	require.Equal(t, out1, out2)
	require.Contains(t, out1, "func main()")
	require.Contains(t, out1, "load_immediate 42")
}
