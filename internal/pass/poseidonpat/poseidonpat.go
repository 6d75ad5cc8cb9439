// Package poseidonpat implements the Poseidon pattern pass: the canonical
// five-round full/full/partial/full/full permutation schedule is folded
// into a single macro, optionally fused with an immediately following
// store.
package poseidonpat

import "github.com/l2iterative/ll0/internal/ir"

// Pass recognizes the five-instruction Poseidon permutation schedule.
type Pass struct{}

// New creates the Poseidon pattern pass.
func New() *Pass { return &Pass{} }

// Name identifies this pass in pipeline error messages.
func (p *Pass) Name() string { return "poseidon_pass" }

// Run scans for the window [FULL, FULL, PARTIAL, FULL, FULL] ending just
// before the current line, and folds it — fusing into a following store
// when one is present.
func (p *Pass) Run(prog *ir.Program) error {
	for cur := 5; cur < prog.Len(); cur++ {
		if !isSchedule(prog, cur-5) {
			continue
		}

		cand := &prog.At(cur).Ins
		switch cand.Op {
		case ir.POSEIDON_STORE:
			*cand = ir.Instruction{Op: ir.POSEIDON_PERMUTE_STORE, Idx: cand.Idx, WS: cand.WS}
			tombstoneRun(prog, cur-5, 5)

		case ir.POSEIDON_STORE_TO_MONTGOMERY:
			*cand = ir.Instruction{Op: ir.POSEIDON_PERMUTE_STORE_TO_MONTGOMERY, Idx: cand.Idx, WS: cand.WS}
			tombstoneRun(prog, cur-5, 5)

		default:
			prog.At(cur - 1).Ins = ir.Instruction{Op: ir.POSEIDON_PERMUTE}
			tombstoneRun(prog, cur-5, 4)
		}
	}
	return nil
}

// isSchedule reports whether the five lines starting at start form the
// canonical full/full/partial/full/full round schedule.
func isSchedule(prog *ir.Program, start int) bool {
	want := [5]ir.Op{
		ir.POSEIDON_FULL, ir.POSEIDON_FULL, ir.POSEIDON_PARTIAL,
		ir.POSEIDON_FULL, ir.POSEIDON_FULL,
	}
	for i, op := range want {
		if prog.At(start + i).Ins.Op != op {
			return false
		}
	}
	return true
}

func tombstoneRun(prog *ir.Program, start, n int) {
	for i := start; i < start+n; i++ {
		prog.Delete(i)
	}
}
