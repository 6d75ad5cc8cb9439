// Package shapat implements the SHA-256 pattern pass: canonical runs of
// decoder-emitted SHA primitives are folded into compact macro forms.
package shapat

import "github.com/l2iterative/ll0/internal/ir"

// Pass recognizes SHA_MIX runs and INIT/FINI padding windows.
type Pass struct{}

// New creates the SHA-256 pattern pass.
func New() *Pass { return &Pass{} }

// Name identifies this pass in pipeline error messages.
func (p *Pass) Name() string { return "sha_pass" }

// Run performs a single left-to-right scan, folding each recognized
// window as soon as it is found.
func (p *Pass) Run(prog *ir.Program) error {
	cur := 0
	for cur < prog.Len() {
		ins := &prog.At(cur).Ins

		switch {
		case ins.Op == ir.SHA_MIX && windowIs(prog, cur+1, 47, ir.SHA_MIX):
			ins.Op = ir.SHA_MIX_48
			tombstoneRun(prog, cur+1, 47)
			cur += 48

		case ins.Op == ir.SHA_INIT_START && windowIs(prog, cur+1, 3, ir.SHA_INIT_PADDING):
			ins.Op = ir.SHA_INIT
			tombstoneRun(prog, cur+1, 3)
			cur += 4

		case ins.Op == ir.SHA_FINI_START && windowIs(prog, cur+1, 3, ir.SHA_FINI_PADDING):
			ws := ins.WS
			*ins = ir.Instruction{Op: ir.SHA_FINI, WS: ws}
			tombstoneRun(prog, cur+1, 3)
			cur += 4

		default:
			cur++
		}
	}
	return nil
}

// windowIs reports whether the n lines starting at start all exist and
// carry op. The window must lie within bounds and every instruction in
// it must match exactly — a partial run is left untouched.
func windowIs(prog *ir.Program, start, n int, op ir.Op) bool {
	if start+n > prog.Len() {
		return false
	}
	for i := start; i < start+n; i++ {
		if prog.At(i).Ins.Op != op {
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
