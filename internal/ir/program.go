package ir

// Line pairs one instruction with the 1-based source row it decoded from.
// The source line survives every rewrite so the emitter can still prefix
// output with the original row number.
type Line struct {
	Ins Instruction
	Src int
}

// Program is the ordered sequence of decoded (and progressively rewritten)
// instructions. Order is observable: the SHA/Poseidon pattern passes and
// the IOP batcher all depend on program-order adjacency.
type Program struct {
	Lines []Line
}

// New creates an empty program.
func New() *Program { return &Program{} }

// Len returns the number of lines, tombstoned or not.
func (p *Program) Len() int { return len(p.Lines) }

// At returns a pointer to line i for in-place mutation.
func (p *Program) At(i int) *Line { return &p.Lines[i] }

// Append adds a freshly decoded line.
func (p *Program) Append(ins Instruction, src int) {
	p.Lines = append(p.Lines, Line{Ins: ins, Src: src})
}

// Delete tombstones line i in place, preserving its source line number so
// later index-based bookkeeping (last-use maps, etc.) stays aligned.
func (p *Program) Delete(i int) {
	p.Lines[i].Ins = Instruction{Op: DELETE}
}

// Live calls fn for every non-tombstoned line, in program order.
func (p *Program) Live(fn func(i int, line *Line)) {
	for i := range p.Lines {
		if p.Lines[i].Ins.Op == DELETE {
			continue
		}
		fn(i, &p.Lines[i])
	}
}

// ReadOperands returns pointers to every active ReadOperand field of ins,
// so a pass can resolve/rewrite them in place without re-deriving the
// per-opcode field layout itself. Order matches the left-to-right operand
// order of the textual grammar.
func ReadOperands(ins *Instruction) []*ReadOperand {
	switch ins.Op {
	case ADD, SUB, MUL, BIT_AND_ELEM, BIT_AND_SHORTS, BIT_XOR_SHORTS, MIX_RNG:
		return []*ReadOperand{&ins.R1, &ins.R2}
	case NOT, INV, MOV, EXTRACT, SHA_LOAD, SHA_LOAD_FROM_MONTGOMERY:
		return []*ReadOperand{&ins.R1}
	case EQ, PANIC:
		return []*ReadOperand{&ins.R1, &ins.R2}
	case MIX_RNG_WITH_PREV:
		// Prev first: matches the donor-priority order the live-variable
		// pass applies when choosing a coalescing target.
		return []*ReadOperand{&ins.Prev, &ins.R1, &ins.R2}
	case SET_GLOBAL:
		return []*ReadOperand{&ins.R1}
	case SELECT:
		return []*ReadOperand{&ins.Sel, &ins.RT, &ins.RF}
	case SELECT_RANGE:
		return []*ReadOperand{&ins.Sel}
	case POSEIDON_LOAD, POSEIDON_LOAD_FROM_MONTGOMERY, POSEIDON_ADD_LOAD, POSEIDON_ADD_LOAD_FROM_MONTGOMERY:
		out := make([]*ReadOperand, len(ins.Operands))
		for i := range ins.Operands {
			out[i] = &ins.Operands[i]
		}
		return out
	default:
		return nil
	}
}

// WriteAddrs returns every virtual address this instruction defines. Most
// instructions write zero or one address; the multi-address writers
// (batched IOP reads, SHA/Poseidon finalizers, SELECT_RANGE) write a
// contiguous run.
func WriteAddrs(ins *Instruction) []Addr {
	switch ins.Op {
	case CONST, NOT, INV, MOV, EXTRACT, READ_IOP_BODY,
		MIX_RNG, MIX_RNG_WITH_PREV, SELECT:
		return []Addr{ins.W}
	// READ_IOP_HEADER carries only Count/Flags metadata; it defines no
	// virtual address.
	case ADD, SUB, MUL, BIT_AND_ELEM, BIT_AND_SHORTS, BIT_XOR_SHORTS:
		return []Addr{ins.W}
	case READ_IOP_BODY_BATCH:
		return addrRange(ins.WS, ins.WE)
	case SHA_FINI_START, SHA_FINI:
		return addrRange(ins.WS, ins.WS+8)
	case POSEIDON_STORE, POSEIDON_STORE_TO_MONTGOMERY, POSEIDON_PERMUTE_STORE, POSEIDON_PERMUTE_STORE_TO_MONTGOMERY:
		return addrRange(ins.WS, ins.WS+8)
	case SELECT_RANGE:
		return addrRange(ins.WS, ins.WE)
	default:
		return nil
	}
}

// ReplaceRange splices ins in place of line i, all sharing src as their
// source line. Used by passes that expand one instruction into several
// (SELECT_RANGE re-expansion) while keeping every other index stable up to
// i itself.
func (p *Program) ReplaceRange(i int, ins []Instruction, src int) {
	lines := make([]Line, len(ins))
	for j, in := range ins {
		lines[j] = Line{Ins: in, Src: src}
	}
	tail := append([]Line{}, p.Lines[i+1:]...)
	p.Lines = append(p.Lines[:i], append(lines, tail...)...)
}

func addrRange(lo, hi Addr) []Addr {
	if hi <= lo {
		return nil
	}
	out := make([]Addr, 0, hi-lo)
	for a := lo; a < hi; a++ {
		out = append(out, a)
	}
	return out
}
