// Package iopmerge implements the IOP-body batching pass: adjacent single
// word reads from the input stream are fused into one batched read.
package iopmerge

import "github.com/l2iterative/ll0/internal/ir"

// Pass fuses consecutive READ_IOP_BODY instructions into
// READ_IOP_BODY_BATCH runs.
type Pass struct{}

// New creates the IOP-body batching pass.
func New() *Pass { return &Pass{} }

// Name identifies this pass in pipeline error messages.
func (p *Pass) Name() string { return "merge_iop_pass" }

// Run walks the program once, looking at the literal preceding line (not
// the preceding live line) at each READ_IOP_BODY: that line was either
// just rewritten into a batch by this same walk, or left alone.
func (p *Pass) Run(prog *ir.Program) error {
	for cur := 0; cur < prog.Len(); cur++ {
		ins := &prog.At(cur).Ins
		if ins.Op != ir.READ_IOP_BODY || cur == 0 {
			continue
		}
		w := ins.W
		prev := &prog.At(cur - 1).Ins

		switch {
		case prev.Op == ir.READ_IOP_BODY_BATCH && prev.WE == w:
			ws := prev.WS
			prog.Delete(cur - 1)
			*ins = ir.Instruction{Op: ir.READ_IOP_BODY_BATCH, WS: ws, WE: w + 1}

		case prev.Op == ir.READ_IOP_BODY && prev.W+1 == w:
			ws := prev.W
			prog.Delete(cur - 1)
			*ins = ir.Instruction{Op: ir.READ_IOP_BODY_BATCH, WS: ws, WE: ws + 2}
		}
	}
	return nil
}
