// Package livevar implements the live-variable / destination-coalescing
// pass: two linear sweeps over the program, the first recording the last
// touch of every virtual address, the second reusing a dying operand's
// address as the destination of the instruction that consumes it.
package livevar

import "github.com/l2iterative/ll0/internal/ir"

// Pass is the live-variable and coalescing pass.
type Pass struct {
	lastUse map[ir.Addr]int
	remap   map[ir.Addr]ir.Addr
}

// New creates a live-variable/coalescing pass.
func New() *Pass { return &Pass{} }

// Name identifies this pass in pipeline error messages.
func (p *Pass) Name() string { return "live_variable_analysis" }

// Run performs both sweeps over prog.
func (p *Pass) Run(prog *ir.Program) error {
	p.lastUse = make(map[ir.Addr]int)
	p.sweepLastUse(prog)

	p.remap = make(map[ir.Addr]ir.Addr)
	p.sweepCoalesce(prog)
	return nil
}

// touch records line as the latest touch of a. It is used both for writes and for
// read touches: both share the same last-touch bookkeeping.
func (p *Pass) touch(a ir.Addr, line int) {
	p.lastUse[a] = line
}

func (p *Pass) touchOperand(op ir.ReadOperand, line int) {
	if a, ok := op.ReferencedAddr(); ok {
		p.touch(a, line)
	}
}

func (p *Pass) sweepLastUse(prog *ir.Program) {
	prog.Live(func(i int, line *ir.Line) {
		ins := &line.Ins
		switch ins.Op {
		case ir.BIT_AND_ELEM, ir.BIT_AND_SHORTS, ir.BIT_XOR_SHORTS,
			ir.ADD, ir.SUB, ir.MUL, ir.MIX_RNG:
			p.touch(ins.W, i)
			p.touchOperand(ins.R1, i)
			p.touchOperand(ins.R2, i)

		case ir.SHA_LOAD_FROM_MONTGOMERY, ir.SHA_LOAD:
			p.touchOperand(ins.R1, i)

		case ir.SET_GLOBAL:
			p.touchOperand(ins.R1, i)

		case ir.SHA_FINI_START:
			for _, a := range rangeAddrs(ins.WS, ins.WS+8) {
				p.touch(a, i)
			}

		case ir.CONST, ir.READ_IOP_BODY:
			p.touch(ins.W, i)

		case ir.NOT, ir.INV, ir.EXTRACT:
			p.touch(ins.W, i)
			p.touchOperand(ins.R1, i)

		case ir.EQ:
			p.touchOperand(ins.R1, i)
			p.touchOperand(ins.R2, i)

		case ir.MIX_RNG_WITH_PREV:
			p.touch(ins.W, i)
			p.touchOperand(ins.Prev, i)
			p.touchOperand(ins.R1, i)
			p.touchOperand(ins.R2, i)

		case ir.SELECT:
			p.touch(ins.W, i)
			p.touchOperand(ins.Sel, i)
			p.touchOperand(ins.RT, i)
			p.touchOperand(ins.RF, i)

		case ir.POSEIDON_LOAD, ir.POSEIDON_LOAD_FROM_MONTGOMERY,
			ir.POSEIDON_ADD_LOAD, ir.POSEIDON_ADD_LOAD_FROM_MONTGOMERY:
			for _, op := range ins.Operands {
				p.touchOperand(op, i)
			}

		case ir.POSEIDON_STORE, ir.POSEIDON_STORE_TO_MONTGOMERY:
			for _, a := range rangeAddrs(ins.WS, ins.WS+8) {
				p.touch(a, i)
			}

		case ir.MOV:
			p.touch(ins.W, i)
			p.touchOperand(ins.R1, i)

		case ir.READ_IOP_BODY_BATCH:
			for _, a := range rangeAddrs(ins.WS, ins.WE) {
				p.touch(a, i)
			}
		}
	})
}

func rangeAddrs(lo, hi ir.Addr) []ir.Addr {
	if hi <= lo {
		return nil
	}
	out := make([]ir.Addr, 0, hi-lo)
	for a := lo; a < hi; a++ {
		out = append(out, a)
	}
	return out
}

// isAvailable reports whether op's referenced address dies exactly at
// line i: nothing else in the program touches it afterward. Only full
// Ref operands are ever donors — RefSub operands are passed through
// unremapped and never coalesced, matching the grounding source.
func (p *Pass) isAvailable(op ir.ReadOperand, i int) bool {
	if op.Kind != ir.OpRef {
		return false
	}
	last, ok := p.lastUse[op.Addr]
	return ok && last == i
}

// remapRead rewrites op's address through the remap table, in place. Only
// Ref-kind operands are ever rewritten.
func (p *Pass) remapRead(op *ir.ReadOperand) {
	if op.Kind != ir.OpRef {
		return
	}
	if m, ok := p.remap[op.Addr]; ok {
		*op = ir.Ref(m)
	}
}

// coalesceInto records remap[w] = donor and rewrites w to donor in place.
func (p *Pass) coalesceInto(w *ir.Addr, donor ir.Addr) {
	p.remap[*w] = donor
	*w = donor
}

func (p *Pass) sweepCoalesce(prog *ir.Program) {
	prog.Live(func(i int, line *ir.Line) {
		ins := &line.Ins
		switch ins.Op {
		case ir.BIT_AND_ELEM, ir.BIT_AND_SHORTS, ir.BIT_XOR_SHORTS,
			ir.ADD, ir.SUB, ir.MUL, ir.MIX_RNG:
			useR1 := p.isAvailable(ins.R1, i)
			useR2 := !useR1 && p.isAvailable(ins.R2, i)
			p.remapRead(&ins.R1)
			p.remapRead(&ins.R2)
			switch {
			case useR1:
				p.coalesceInto(&ins.W, ins.R1.Addr)
			case useR2:
				p.coalesceInto(&ins.W, ins.R2.Addr)
			}

		case ir.SHA_LOAD_FROM_MONTGOMERY, ir.SHA_LOAD:
			p.remapRead(&ins.R1)

		case ir.SET_GLOBAL:
			p.remapRead(&ins.R1)

		case ir.NOT, ir.INV:
			useR1 := p.isAvailable(ins.R1, i)
			p.remapRead(&ins.R1)
			if useR1 {
				p.coalesceInto(&ins.W, ins.R1.Addr)
			}

		case ir.EQ:
			p.remapRead(&ins.R1)
			p.remapRead(&ins.R2)

		case ir.MIX_RNG_WITH_PREV:
			usePrev := p.isAvailable(ins.Prev, i)
			useR1 := !usePrev && p.isAvailable(ins.R1, i)
			useR2 := !usePrev && !useR1 && p.isAvailable(ins.R2, i)
			p.remapRead(&ins.Prev)
			p.remapRead(&ins.R1)
			p.remapRead(&ins.R2)
			switch {
			case usePrev:
				p.coalesceInto(&ins.W, ins.Prev.Addr)
			case useR1:
				p.coalesceInto(&ins.W, ins.R1.Addr)
			case useR2:
				p.coalesceInto(&ins.W, ins.R2.Addr)
			}

		case ir.SELECT:
			useRT := p.isAvailable(ins.RT, i)
			useRF := !useRT && p.isAvailable(ins.RF, i)
			p.remapRead(&ins.Sel)
			p.remapRead(&ins.RT)
			p.remapRead(&ins.RF)
			switch {
			case useRT:
				p.coalesceInto(&ins.W, ins.RT.Addr)
			case useRF:
				p.coalesceInto(&ins.W, ins.RF.Addr)
			}

		case ir.EXTRACT:
			p.remapRead(&ins.R1)

		case ir.POSEIDON_LOAD, ir.POSEIDON_LOAD_FROM_MONTGOMERY,
			ir.POSEIDON_ADD_LOAD, ir.POSEIDON_ADD_LOAD_FROM_MONTGOMERY:
			for k := range ins.Operands {
				p.remapRead(&ins.Operands[k])
			}

		case ir.MOV:
			useR1 := p.isAvailable(ins.R1, i)
			p.remapRead(&ins.R1)
			if useR1 {
				p.coalesceInto(&ins.W, ins.R1.Addr)
				prog.Delete(i)
			}
		}
	})
}
