// Package optimize implements the C4 optimization passes (spec.md
// §4.3): dead-code elimination, constant folding, and a
// register-allocation-hint pass, each an independent mir.Function
// rewrite run through a shared Pass interface — the "ordered passes
// over one function, each reporting whether it changed anything" shape
// wazero's SSA backend uses for its own multi-pass pipeline
// (internal/engine/wazevo/backend).
package optimize

import "github.com/nexusshell/nexusshell/internal/mir"

// Pass rewrites fn in place and reports whether it changed anything.
type Pass interface {
	Name() string
	Run(fn *mir.Function) (changed bool, err error)
}

// Stats totals what each pass did, for callers that want to report
// savings (mirrors executor.rs's memory_saved bookkeeping, but counts
// concrete changes instead of estimating bytes).
type Stats struct {
	InstructionsRemoved int
	ConstantsFolded     int
	RegistersCoalesced  int
}

// Pipeline is the default ordered pass list: DCE first (so later
// passes don't waste work on unreachable code), then constant folding,
// then the register-allocation hint.
func Pipeline() []Pass {
	return []Pass{
		DeadCodeElimination{},
		ConstantFolding{},
		RegisterAllocationHint{},
	}
}

// Run applies every pass in order to every function of prog and
// returns the accumulated Stats.
func Run(prog *mir.Program, passes []Pass) (Stats, error) {
	var stats Stats
	for _, fn := range prog.Functions {
		for _, p := range passes {
			switch pass := p.(type) {
			case DeadCodeElimination:
				n, err := pass.run(fn)
				if err != nil {
					return stats, err
				}
				stats.InstructionsRemoved += n
			case ConstantFolding:
				n, err := pass.run(fn)
				if err != nil {
					return stats, err
				}
				stats.ConstantsFolded += n
			case RegisterAllocationHint:
				n, err := pass.run(fn)
				if err != nil {
					return stats, err
				}
				stats.RegistersCoalesced += n
			default:
				if _, err := p.Run(fn); err != nil {
					return stats, err
				}
			}
		}
	}
	return stats, nil
}
