// Package constfold implements the constant-propagation and algebraic
// simplification pass: the analytical core of the pipeline.
package constfold

import (
	"github.com/l2iterative/ll0/internal/field"
	"github.com/l2iterative/ll0/internal/ir"
)

const shiftWord uint32 = 1 << 16

// redirection is what the pass knows about one virtual address: either it
// has materialized to a literal Fp4, or it is a deferred extraction of one
// coordinate of some other (possibly still-unknown) address.
type redirection struct {
	isConst bool
	value   field.Fp4
	target  ir.Addr
	coord   int
}

// Pass is the constant-folding pass. It is stateful only for the duration
// of a single Run call.
type Pass struct {
	mem map[ir.Addr]redirection
}

// New creates a constant-folding pass.
func New() *Pass { return &Pass{} }

// Name identifies this pass in pipeline error messages.
func (p *Pass) Name() string { return "const_pass" }

// Run rewrites prog in place, folding every statically-known subtree.
func (p *Pass) Run(prog *ir.Program) error {
	p.mem = map[ir.Addr]redirection{
		ir.ZeroAddr: {isConst: true, value: field.Fp4Zero()},
	}

	for i := 0; i < prog.Len(); i++ {
		line := prog.At(i)
		if line.Ins.IsTombstone() {
			continue
		}
		if line.Ins.Op == ir.SELECT_RANGE && p.needsReexpansion(&line.Ins) {
			expanded := expandSelectRange(&line.Ins)
			prog.ReplaceRange(i, expanded, line.Src)
			i-- // reprocess starting at the same cursor
			continue
		}
		p.rewrite(prog, i)
	}
	return nil
}

// refresh resolves op in place through the redirection map, returning the
// literal value when fully known.
func (p *Pass) refresh(op *ir.ReadOperand) (field.Fp4, bool) {
	switch op.Kind {
	case ir.OpConst:
		return op.Value, true

	case ir.OpRef:
		e, ok := p.mem[op.Addr]
		if !ok {
			return field.Fp4{}, false
		}
		if e.isConst {
			*op = ir.Const(e.value)
			return e.value, true
		}
		*op = ir.RefSub(e.target, e.coord)
		return field.Fp4{}, false

	case ir.OpRefSub:
		e, ok := p.mem[op.Addr]
		if !ok {
			return field.Fp4{}, false
		}
		if e.isConst {
			v := field.FromFp(e.value.Coord(op.Coord))
			*op = ir.Const(v)
			return v, true
		}
		if op.Coord == 0 {
			*op = ir.RefSub(e.target, e.coord)
			return field.Fp4{}, false
		}
		v := field.Fp4Zero()
		*op = ir.Const(v)
		return v, true
	}
	return field.Fp4{}, false
}

func (p *Pass) bindConst(w ir.Addr, v field.Fp4) {
	p.mem[w] = redirection{isConst: true, value: v}
}

func (p *Pass) bindRefSub(w, target ir.Addr, coord int) {
	p.mem[w] = redirection{target: target, coord: coord}
}

func (p *Pass) rewrite(prog *ir.Program, i int) {
	line := prog.At(i)
	ins := &line.Ins

	switch ins.Op {
	case ir.BIT_AND_ELEM:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		if ok1 && ok2 {
			p.bindConst(ins.W, field.FromFp(field.AndElem(d1.C0, d2.C0)))
			prog.Delete(i)
		}

	case ir.BIT_AND_SHORTS:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		if ok1 && ok2 {
			lo := field.AndElem(d1.C0, d2.C0)
			hi := field.AndElem(d1.C1, d2.C1)
			p.bindConst(ins.W, field.FromFp(lo.Add(hi.ShiftLeft16())))
			prog.Delete(i)
		}

	case ir.BIT_XOR_SHORTS:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		if ok1 && ok2 {
			p.bindConst(ins.W, field.Fp4{C0: field.Xor(d1.C0, d2.C0), C1: field.Xor(d1.C1, d2.C1)})
			prog.Delete(i)
		}

	case ir.SHA_LOAD_FROM_MONTGOMERY, ir.SHA_LOAD:
		p.refresh(&ins.R1)

	case ir.SET_GLOBAL:
		p.refresh(&ins.R1)

	case ir.CONST:
		p.bindConst(ins.W, ins.ConstFp4())
		prog.Delete(i)

	case ir.ADD:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		switch {
		case ok1 && ok2:
			p.bindConst(ins.W, d1.Add(d2))
			prog.Delete(i)
		case ok1 && d1.IsZero():
			toMov(ins, ins.R2)
		case ok2 && d2.IsZero():
			toMov(ins, ins.R1)
		}

	case ir.SUB:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		switch {
		case ok1 && ok2:
			p.bindConst(ins.W, d1.Sub(d2))
			prog.Delete(i)
		case ok2 && d2.IsZero():
			toMov(ins, ins.R1)
		}

	case ir.MUL:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		switch {
		case ok1 && ok2:
			p.bindConst(ins.W, d1.Mul(d2))
			prog.Delete(i)
		case ok1 && d1.IsZero():
			p.bindConst(ins.W, field.Fp4Zero())
			prog.Delete(i)
		case ok2 && d2.IsZero():
			p.bindConst(ins.W, field.Fp4Zero())
			prog.Delete(i)
		}

	case ir.NOT:
		if d, ok := p.refresh(&ins.R1); ok {
			if d.C0.IsZero() {
				p.bindConst(ins.W, field.Fp4One())
			} else {
				p.bindConst(ins.W, field.Fp4Zero())
			}
			prog.Delete(i)
		}

	case ir.INV:
		if d, ok := p.refresh(&ins.R1); ok {
			p.bindConst(ins.W, d.Inv())
			prog.Delete(i)
		}

	case ir.EQ:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		if ok1 && ok2 {
			if d1.Equal(d2) {
				prog.Delete(i)
			} else {
				ins.Op = ir.PANIC
			}
		}

	case ir.MIX_RNG_WITH_PREV:
		dPrev, okP := p.refresh(&ins.Prev)
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		if okP && ok1 && ok2 {
			k := field.NewFp(uint64(ins.K))
			shift := field.NewFp(uint64(shiftWord))
			val := k.Mul(dPrev.C1)
			val = val.Mul(shift).Add(d1.C1)
			val = val.Mul(shift).Add(d1.C0)
			val = val.Mul(shift).Add(d2.C1)
			val = val.Mul(shift).Add(d2.C0)
			p.bindConst(ins.W, field.FromFp(val))
			prog.Delete(i)
		}

	case ir.MIX_RNG:
		d1, ok1 := p.refresh(&ins.R1)
		d2, ok2 := p.refresh(&ins.R2)
		if ok1 && ok2 {
			shift := field.NewFp(uint64(shiftWord))
			val := d1.C1
			val = val.Mul(shift).Add(d1.C0)
			val = val.Mul(shift).Add(d2.C1)
			val = val.Mul(shift).Add(d2.C0)
			p.bindConst(ins.W, field.FromFp(val))
			prog.Delete(i)
		}

	case ir.SELECT:
		s, okS := p.refresh(&ins.Sel)
		d1, ok1 := p.refresh(&ins.RT)
		d2, ok2 := p.refresh(&ins.RF)
		if okS {
			if s.C0 == field.One() {
				if ok1 {
					p.bindConst(ins.W, d1)
					prog.Delete(i)
				} else {
					toMov(ins, ins.RT)
				}
			} else {
				if ok2 {
					p.bindConst(ins.W, d2)
					prog.Delete(i)
				} else {
					toMov(ins, ins.RF)
				}
			}
		}

	case ir.EXTRACT:
		if d, ok := p.refresh(&ins.R1); ok {
			p.bindConst(ins.W, field.FromFp(d.Coord(ins.Coord)))
			prog.Delete(i)
		} else if addr, isRef := ins.R1.ReferencedAddr(); isRef && ins.R1.Kind == ir.OpRef {
			p.bindRefSub(ins.W, addr, ins.Coord)
			prog.Delete(i)
		}

	case ir.POSEIDON_LOAD, ir.POSEIDON_LOAD_FROM_MONTGOMERY,
		ir.POSEIDON_ADD_LOAD, ir.POSEIDON_ADD_LOAD_FROM_MONTGOMERY:
		for k := range ins.Operands {
			p.refresh(&ins.Operands[k])
		}

	case ir.MOV:
		if d, ok := p.refresh(&ins.R1); ok {
			p.bindConst(ins.W, d)
			prog.Delete(i)
		}

	default:
		// No read operands to fold (WOM_INIT/FINI, READ_IOP_*, SHA/Poseidon
		// control markers, etc).
	}
}

// toMov degenerates ins into a MOV from src, preserving W.
func toMov(ins *ir.Instruction, src ir.ReadOperand) {
	w := ins.W
	*ins = ir.Instruction{Op: ir.MOV, W: w, R1: src}
}

// needsReexpansion reports whether any address within a SELECT_RANGE's
// read ranges now has a binding, meaning constant folding can make
// progress if the range is broken back into individual SELECTs.
func (p *Pass) needsReexpansion(ins *ir.Instruction) bool {
	if a, isRef := ins.Sel.ReferencedAddr(); isRef {
		if _, ok := p.mem[a]; ok {
			return true
		}
	}
	for a := ins.R1S; a < ins.R1E; a++ {
		if _, ok := p.mem[a]; ok {
			return true
		}
	}
	for a := ins.R2S; a < ins.R2E; a++ {
		if _, ok := p.mem[a]; ok {
			return true
		}
	}
	return false
}

// expandSelectRange realizes a SELECT_RANGE back into its constituent
// per-position SELECT instructions.
func expandSelectRange(ins *ir.Instruction) []ir.Instruction {
	n := int(ins.WE - ins.WS)
	out := make([]ir.Instruction, n)
	for k := 0; k < n; k++ {
		out[k] = ir.Instruction{
			Op:  ir.SELECT,
			W:   ins.WS + ir.Addr(k),
			Sel: ins.Sel,
			RT:  ir.Ref(ins.R1S + ir.Addr(k)),
			RF:  ir.Ref(ins.R2S + ir.Addr(k)),
		}
	}
	return out
}
