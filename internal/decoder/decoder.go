// Package decoder turns a flat slice of 21-word ZKR rows into an ir.Program.
// Row layout and decode priority are part of the on-disk format and must
// stay bit-exact with the table in the component design.
package decoder

import (
	"fmt"

	"github.com/l2iterative/ll0/internal/field"
	"github.com/l2iterative/ll0/internal/ir"
)

// RowWords is the fixed width of one ZKR instruction row.
const RowWords = 21

// Row slot indices, unchanged from the on-disk format.
const (
	slotWriteAddr = 0

	slotSelectMicro          = 1
	slotSelectMacro          = 2
	slotSelectPoseidonLoad   = 3
	slotSelectPoseidonFull   = 4
	slotSelectPoseidonPartial = 5
	slotSelectPoseidonStore  = 6

	slotPoseidonDoMont    = 7
	slotPoseidonKeepState = 8
	slotPoseidonAddConsts = 9
	slotPoseidonG1        = 11
	slotPoseidonG2        = 12

	slotMacroWomInit    = 8
	slotMacroWomFini    = 9
	slotMacroBitAndElem = 10
	slotMacroBitOpShort = 11
	slotMacroShaInit    = 12
	slotMacroShaFini    = 13
	slotMacroShaLoad    = 14
	slotMacroShaMix     = 15
	slotMacroSetGlobal  = 16

	slotMacroOperand0 = 17
	slotMacroOperand1 = 18
	slotMacroOperand2 = 19
)

// Micro-op inner opcode values, packed three to a row.
const (
	microConst        = 0
	microAdd          = 1
	microSub          = 2
	microMul          = 3
	microInv          = 4
	microEq           = 5
	microReadIOPHeader = 6
	microReadIOPBody  = 7
	microMixRNG       = 8
	microSelect       = 9
	microExtract      = 10
)

// selectDeltaThreshold is p/2, rounded: payloads at or above this value are
// interpreted as the negative residue -(p - payload) rather than +payload.
const selectDeltaThreshold uint32 = 1006632960

// IllegalInstruction is returned when a row's select flags match no known
// opcode category, or a recognized category's inner opcode is unrecognized.
// The offending row is carried verbatim for diagnostics.
type IllegalInstruction struct {
	Row [RowWords]uint32
}

func (e *IllegalInstruction) Error() string {
	return fmt.Sprintf("decoder: illegal instruction row %v", e.Row[:])
}

// state tracks the decoder-local phase counters that span rows: the
// 4-phase SHA init/fini counters reset only at the start of Decode.
type state struct {
	shaInitPos int
	shaFiniPos int
}

// Decode consumes a slice of u32 words, whose length must be a multiple of
// RowWords, and returns the decoded Program in row order. Source line
// numbers are 1-based row indices, matching the emitter's line prefix.
func Decode(words []uint32) (*ir.Program, error) {
	prog := ir.New()
	var st state

	for rowIdx := 0; rowIdx*RowWords < len(words); rowIdx++ {
		row := words[rowIdx*RowWords : (rowIdx+1)*RowWords]
		line := rowIdx + 1

		switch {
		case row[slotSelectMacro] == 1:
			if err := decodeMacro(&st, prog, row, line); err != nil {
				return nil, err
			}
		case row[slotSelectMicro] == 1:
			if err := decodeMicro(prog, row, line); err != nil {
				return nil, err
			}
		case row[slotSelectPoseidonLoad] == 1:
			decodePoseidonLoad(prog, row, line)
		case row[slotSelectPoseidonFull] == 1:
			prog.Append(ir.Instruction{Op: ir.POSEIDON_FULL}, line)
		case row[slotSelectPoseidonPartial] == 1:
			prog.Append(ir.Instruction{Op: ir.POSEIDON_PARTIAL}, line)
		case row[slotSelectPoseidonStore] == 1:
			decodePoseidonStore(prog, row, line)
		default:
			return nil, illegalRow(row)
		}
	}

	return prog, nil
}

func illegalRow(row []uint32) error {
	var r [RowWords]uint32
	copy(r[:], row)
	return &IllegalInstruction{Row: r}
}

func decodeMacro(st *state, prog *ir.Program, row []uint32, line int) error {
	w := ir.Addr(row[slotWriteAddr])

	switch {
	case row[slotMacroBitAndElem] == 1:
		prog.Append(ir.Instruction{
			Op: ir.BIT_AND_ELEM, W: w,
			R1: ir.Ref(ir.Addr(row[slotMacroOperand0])),
			R2: ir.Ref(ir.Addr(row[slotMacroOperand1])),
		}, line)

	case row[slotMacroBitOpShort] == 1:
		op := ir.BIT_XOR_SHORTS
		if row[slotMacroOperand2] != 0 {
			op = ir.BIT_AND_SHORTS
		}
		prog.Append(ir.Instruction{
			Op: op, W: w,
			R1: ir.Ref(ir.Addr(row[slotMacroOperand0])),
			R2: ir.Ref(ir.Addr(row[slotMacroOperand1])),
		}, line)

	case row[slotMacroShaInit] == 1:
		op := ir.SHA_INIT_PADDING
		if st.shaInitPos == 0 {
			op = ir.SHA_INIT_START
		}
		prog.Append(ir.Instruction{Op: op}, line)
		st.shaInitPos = (st.shaInitPos + 1) % 4

	case row[slotMacroShaLoad] == 1:
		if row[slotMacroOperand2] == 0 {
			prog.Append(ir.Instruction{Op: ir.SHA_LOAD_FROM_MONTGOMERY, R1: ir.Ref(ir.Addr(row[slotMacroOperand0]))}, line)
		} else {
			prog.Append(ir.Instruction{Op: ir.SHA_LOAD, R1: ir.Ref(ir.Addr(row[slotMacroOperand0]))}, line)
		}

	case row[slotMacroShaMix] == 1:
		prog.Append(ir.Instruction{Op: ir.SHA_MIX}, line)

	case row[slotMacroShaFini] == 1:
		if st.shaFiniPos == 0 {
			ws := ir.Addr(row[slotMacroOperand0] - 3)
			prog.Append(ir.Instruction{Op: ir.SHA_FINI_START, WS: ws}, line)
		} else {
			prog.Append(ir.Instruction{Op: ir.SHA_FINI_PADDING}, line)
		}
		st.shaFiniPos = (st.shaFiniPos + 1) % 4

	case row[slotMacroWomInit] == 1:
		prog.Append(ir.Instruction{Op: ir.WOM_INIT}, line)

	case row[slotMacroWomFini] == 1:
		prog.Append(ir.Instruction{Op: ir.WOM_FINI}, line)

	case row[slotMacroSetGlobal] == 1:
		prog.Append(ir.Instruction{
			Op:  ir.SET_GLOBAL,
			R1:  ir.Ref(ir.Addr(row[slotMacroOperand0])),
			Idx: row[slotMacroOperand1],
		}, line)

	default:
		return illegalRow(row)
	}
	return nil
}

// decodeMicro unpacks the three packed micro-ops in row[7..19] (groups of
// four words: inner opcode, a, b, c), writing to w, w+1, w+2 respectively.
func decodeMicro(prog *ir.Program, row []uint32, line int) error {
	groups := [3][4]uint32{
		{row[7], row[8], row[9], row[10]},
		{row[11], row[12], row[13], row[14]},
		{row[15], row[16], row[17], row[18]},
	}

	for i, g := range groups {
		w := ir.Addr(row[slotWriteAddr]) + ir.Addr(i)
		a, b, c := g[1], g[2], g[3]

		switch g[0] {
		case microConst:
			prog.Append(ir.Instruction{Op: ir.CONST, W: w, Lo: a, Hi: b}, line)

		case microAdd:
			prog.Append(ir.Instruction{Op: ir.ADD, W: w, R1: ir.Ref(ir.Addr(a)), R2: ir.Ref(ir.Addr(b))}, line)

		case microSub:
			prog.Append(ir.Instruction{Op: ir.SUB, W: w, R1: ir.Ref(ir.Addr(a)), R2: ir.Ref(ir.Addr(b))}, line)

		case microMul:
			prog.Append(ir.Instruction{Op: ir.MUL, W: w, R1: ir.Ref(ir.Addr(a)), R2: ir.Ref(ir.Addr(b))}, line)

		case microInv:
			if c == 0 {
				prog.Append(ir.Instruction{Op: ir.NOT, W: w, R1: ir.Ref(ir.Addr(a))}, line)
			} else {
				prog.Append(ir.Instruction{Op: ir.INV, W: w, R1: ir.Ref(ir.Addr(a))}, line)
			}

		case microEq:
			prog.Append(ir.Instruction{Op: ir.EQ, R1: ir.Ref(ir.Addr(a)), R2: ir.Ref(ir.Addr(b))}, line)

		case microReadIOPHeader:
			prog.Append(ir.Instruction{Op: ir.READ_IOP_HEADER, Count: a, Flags: b}, line)

		case microReadIOPBody:
			prog.Append(ir.Instruction{Op: ir.READ_IOP_BODY, W: w}, line)

		case microMixRNG:
			if c != 0 {
				prog.Append(ir.Instruction{
					Op: ir.MIX_RNG_WITH_PREV, W: w, K: c,
					Prev: ir.Ref(w - 1),
					R1:   ir.Ref(ir.Addr(a)),
					R2:   ir.Ref(ir.Addr(b)),
				}, line)
			} else {
				prog.Append(ir.Instruction{Op: ir.MIX_RNG, W: w, R1: ir.Ref(ir.Addr(a)), R2: ir.Ref(ir.Addr(b))}, line)
			}

		case microSelect:
			var ifTrue uint32
			if c >= selectDeltaThreshold {
				ifTrue = b - (uint32(field.Modulus) - c)
			} else {
				ifTrue = b + c
			}
			prog.Append(ir.Instruction{
				Op: ir.SELECT, W: w,
				Sel: ir.Ref(ir.Addr(a)),
				RT:  ir.Ref(ir.Addr(ifTrue)),
				RF:  ir.Ref(ir.Addr(b)),
			}, line)

		case microExtract:
			prog.Append(ir.Instruction{
				Op: ir.EXTRACT, W: w,
				R1:    ir.Ref(ir.Addr(a)),
				Coord: int(b*2 + c),
			}, line)

		default:
			return illegalRow(row)
		}
	}
	return nil
}

func poseidonOperands(row []uint32) []ir.ReadOperand {
	ops := make([]ir.ReadOperand, 8)
	for i := 0; i < 8; i++ {
		ops[i] = ir.Ref(ir.Addr(row[13+i]))
	}
	return ops
}

func poseidonGroup(row []uint32) uint32 {
	return row[slotPoseidonG1] + row[slotPoseidonG2]*2
}

func decodePoseidonLoad(prog *ir.Program, row []uint32, line int) {
	group := poseidonGroup(row)
	addConsts := row[slotPoseidonAddConsts]
	operands := poseidonOperands(row)

	op := ir.POSEIDON_LOAD
	switch {
	case row[slotPoseidonKeepState] != 1 && row[slotPoseidonDoMont] != 0:
		op = ir.POSEIDON_LOAD_FROM_MONTGOMERY
	case row[slotPoseidonKeepState] != 1:
		op = ir.POSEIDON_LOAD
	case row[slotPoseidonDoMont] != 0:
		op = ir.POSEIDON_ADD_LOAD_FROM_MONTGOMERY
	default:
		op = ir.POSEIDON_ADD_LOAD
	}

	prog.Append(ir.Instruction{
		Op:        op,
		Idx:       group,
		AddConsts: addConsts,
		Operands:  operands,
	}, line)
}

func decodePoseidonStore(prog *ir.Program, row []uint32, line int) {
	group := poseidonGroup(row)
	ws := ir.Addr(row[slotWriteAddr])

	op := ir.POSEIDON_STORE
	if row[slotPoseidonDoMont] != 0 {
		op = ir.POSEIDON_STORE_TO_MONTGOMERY
	}
	prog.Append(ir.Instruction{Op: op, Idx: group, WS: ws}, line)
}
