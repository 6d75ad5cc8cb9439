// Package reorder implements the renumbering pass: every write address is
// assigned a dense id in program order, and every read is rewritten
// through the resulting bijection.
package reorder

import (
	"fmt"

	"github.com/l2iterative/ll0/internal/ir"
)

// UnknownRead reports a reference to an address that was never written.
type UnknownRead struct{ Addr ir.Addr }

func (e *UnknownRead) Error() string {
	return fmt.Sprintf("reorder: read of address %d, which is never written", e.Addr)
}

// Pass renumbers every virtual address to a dense id in write order.
type Pass struct {
	nextID ir.Addr
	remap  map[ir.Addr]ir.Addr
}

// New creates the renumbering pass.
func New() *Pass { return &Pass{} }

// Name identifies this pass in pipeline error messages.
func (p *Pass) Name() string { return "reorder_pass" }

// Run performs the two sweeps: assign ids, then rewrite every operand.
func (p *Pass) Run(prog *ir.Program) error {
	p.nextID = 1
	p.remap = make(map[ir.Addr]ir.Addr)

	prog.Live(func(_ int, line *ir.Line) {
		for _, w := range ir.WriteAddrs(&line.Ins) {
			p.addWrite(w)
		}
	})

	// A manual index loop, not Live: rewriteSelectRange may splice the
	// program in place (via ReplaceRange), which changes prog.Len() and
	// must be re-read on every iteration. The splice's replacement
	// instructions are already fully remapped, so the loop must skip past
	// them rather than revisit them — reprocessing a remapped SELECT would
	// look up its new (post-remap) addresses in p.remap, which is keyed by
	// old addresses, and fail with a spurious UnknownRead.
	for i := 0; i < prog.Len(); i++ {
		if prog.At(i).Ins.IsTombstone() {
			continue
		}
		consumed, err := p.rewrite(prog, i)
		if err != nil {
			return err
		}
		i += consumed - 1
	}
	return nil
}

func (p *Pass) addWrite(w ir.Addr) {
	if _, ok := p.remap[w]; ok {
		return
	}
	p.remap[w] = p.nextID
	p.nextID++
}

// remapRead resolves a read operand through the bijection in place.
// Const operands pass through untouched. RefSub carries its coordinate
// unchanged.
func (p *Pass) remapRead(op *ir.ReadOperand) error {
	addr, ok := op.ReferencedAddr()
	if !ok {
		return nil
	}
	id, ok := p.remap[addr]
	if !ok {
		return &UnknownRead{Addr: addr}
	}
	switch op.Kind {
	case ir.OpRefSub:
		*op = ir.RefSub(id, op.Coord)
	default:
		*op = ir.Ref(id)
	}
	return nil
}

// remapWrite resolves a single write address in place. The address must
// already have been assigned an id by the first sweep.
func (p *Pass) remapWrite(w *ir.Addr) error {
	id, ok := p.remap[*w]
	if !ok {
		return &UnknownRead{Addr: *w}
	}
	*w = id
	return nil
}

// rewrite remaps the instruction at i in place and returns how many
// program lines now occupy its old slot — 1 for every opcode except
// SELECT_RANGE's non-contiguous fallback, which splices in n SELECTs.
func (p *Pass) rewrite(prog *ir.Program, i int) (int, error) {
	ins := &prog.At(i).Ins

	switch ins.Op {
	case ir.BIT_AND_ELEM, ir.BIT_AND_SHORTS, ir.BIT_XOR_SHORTS,
		ir.ADD, ir.SUB, ir.MUL, ir.MIX_RNG:
		if err := p.remapRead(&ins.R1); err != nil {
			return 1, err
		}
		if err := p.remapRead(&ins.R2); err != nil {
			return 1, err
		}
		return 1, p.remapWrite(&ins.W)

	case ir.SHA_LOAD_FROM_MONTGOMERY, ir.SHA_LOAD:
		return 1, p.remapRead(&ins.R1)

	case ir.SET_GLOBAL:
		return 1, p.remapRead(&ins.R1)

	case ir.NOT, ir.INV:
		if err := p.remapRead(&ins.R1); err != nil {
			return 1, err
		}
		return 1, p.remapWrite(&ins.W)

	case ir.EQ:
		if err := p.remapRead(&ins.R1); err != nil {
			return 1, err
		}
		return 1, p.remapRead(&ins.R2)

	case ir.MIX_RNG_WITH_PREV:
		if err := p.remapRead(&ins.Prev); err != nil {
			return 1, err
		}
		if err := p.remapWrite(&ins.W); err != nil {
			return 1, err
		}
		if err := p.remapRead(&ins.R1); err != nil {
			return 1, err
		}
		return 1, p.remapRead(&ins.R2)

	case ir.SELECT:
		if err := p.remapRead(&ins.Sel); err != nil {
			return 1, err
		}
		if err := p.remapRead(&ins.RT); err != nil {
			return 1, err
		}
		if err := p.remapWrite(&ins.W); err != nil {
			return 1, err
		}
		return 1, p.remapRead(&ins.RF)

	case ir.EXTRACT:
		// Constant propagation removes most EXTRACTs, but one whose operand
		// resolved to a RefSub survives, so its destination is renumbered
		// like any other write.
		if err := p.remapRead(&ins.R1); err != nil {
			return 1, err
		}
		return 1, p.remapWrite(&ins.W)

	case ir.POSEIDON_LOAD, ir.POSEIDON_LOAD_FROM_MONTGOMERY,
		ir.POSEIDON_ADD_LOAD, ir.POSEIDON_ADD_LOAD_FROM_MONTGOMERY:
		for k := range ins.Operands {
			if err := p.remapRead(&ins.Operands[k]); err != nil {
				return 1, err
			}
		}
		return 1, nil

	case ir.MOV:
		if err := p.remapRead(&ins.R1); err != nil {
			return 1, err
		}
		return 1, p.remapWrite(&ins.W)

	case ir.SHA_FINI_START:
		return 1, p.remapWrite(&ins.WS)

	case ir.CONST, ir.READ_IOP_BODY:
		return 1, p.remapWrite(&ins.W)

	case ir.POSEIDON_STORE, ir.POSEIDON_STORE_TO_MONTGOMERY,
		ir.POSEIDON_PERMUTE_STORE, ir.POSEIDON_PERMUTE_STORE_TO_MONTGOMERY, ir.SHA_FINI:
		return 1, p.remapWrite(&ins.WS)

	case ir.READ_IOP_BODY_BATCH:
		last := ins.WE - 1
		if err := p.remapWrite(&ins.WS); err != nil {
			return 1, err
		}
		if err := p.remapWrite(&last); err != nil {
			return 1, err
		}
		ins.WE = last + 1
		return 1, nil

	case ir.SELECT_RANGE:
		return p.rewriteSelectRange(prog, i)

	default:
		return 1, nil
	}
}

// rewriteSelectRange realizes the unfinished "reorder_together" logic:
// each position of the three ranges is remapped independently, and the
// range form survives only if all three remapped sequences are still
// contiguous stride-1 runs.
func (p *Pass) rewriteSelectRange(prog *ir.Program, i int) (int, error) {
	ins := &prog.At(i).Ins
	n := int(ins.WE - ins.WS)

	sel := ins.Sel
	if err := p.remapRead(&sel); err != nil {
		return 1, err
	}

	newWS := make([]ir.Addr, n)
	newR1 := make([]ir.Addr, n)
	newR2 := make([]ir.Addr, n)
	for k := 0; k < n; k++ {
		w := ins.WS + ir.Addr(k)
		if err := p.remapWrite(&w); err != nil {
			return 1, err
		}
		newWS[k] = w

		r1 := ir.Ref(ins.R1S + ir.Addr(k))
		if err := p.remapRead(&r1); err != nil {
			return 1, err
		}
		newR1[k] = r1.Addr

		r2 := ir.Ref(ins.R2S + ir.Addr(k))
		if err := p.remapRead(&r2); err != nil {
			return 1, err
		}
		newR2[k] = r2.Addr
	}

	if contiguous(newWS) && contiguous(newR1) && contiguous(newR2) {
		*ins = ir.Instruction{
			Op:  ir.SELECT_RANGE,
			WS:  newWS[0], WE: newWS[n-1] + 1,
			Sel: sel,
			R1S: newR1[0], R1E: newR1[n-1] + 1,
			R2S: newR2[0], R2E: newR2[n-1] + 1,
		}
		return 1, nil
	}

	// These SELECTs are already fully remapped to new addresses; the
	// caller must skip over all n of them rather than revisit them
	// through rewrite, which would look their (new) addresses up in
	// p.remap and fail — p.remap is keyed by old addresses.
	expanded := make([]ir.Instruction, n)
	for k := 0; k < n; k++ {
		expanded[k] = ir.Instruction{
			Op:  ir.SELECT,
			W:   newWS[k],
			Sel: sel,
			RT:  ir.Ref(newR1[k]),
			RF:  ir.Ref(newR2[k]),
		}
	}
	prog.ReplaceRange(i, expanded, prog.At(i).Src)
	return n, nil
}

func contiguous(addrs []ir.Addr) bool {
	for k := 1; k < len(addrs); k++ {
		if addrs[k] != addrs[k-1]+1 {
			return false
		}
	}
	return true
}
