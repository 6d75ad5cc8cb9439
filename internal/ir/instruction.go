package ir

import "github.com/l2iterative/ll0/internal/field"

// Op identifies an Instruction variant. The decoder never emits the
// sentinel-marked synthesized variants (DELETE, PANIC, MOV,
// READ_IOP_BODY_BATCH, SHA_MIX_48, SHA_INIT, SHA_FINI, the three
// POSEIDON_PERMUTE* forms, SELECT_RANGE) — those are introduced only by
// later passes. A decoder-to-IR conformance test asserts this.
type Op uint8

const (
	// === Micro arithmetic/logical, produced directly by the decoder ===
	ADD Op = iota
	SUB
	MUL
	NOT // INV with a zero "true inverse" payload is re-tagged NOT at decode time
	INV
	EQ
	CONST

	// === Bitwise macro ops ===
	BIT_AND_ELEM
	BIT_AND_SHORTS
	BIT_XOR_SHORTS

	// === IOP interface ===
	READ_IOP_HEADER
	READ_IOP_BODY

	// === Memory model ===
	WOM_INIT
	WOM_FINI
	SET_GLOBAL

	// === Random mixing ===
	MIX_RNG
	MIX_RNG_WITH_PREV

	// === Control helpers ===
	SELECT
	EXTRACT

	// === SHA-256 primitives ===
	SHA_INIT_START
	SHA_INIT_PADDING
	SHA_LOAD
	SHA_LOAD_FROM_MONTGOMERY
	SHA_MIX
	SHA_FINI_START
	SHA_FINI_PADDING

	// === Poseidon primitives ===
	POSEIDON_LOAD
	POSEIDON_LOAD_FROM_MONTGOMERY
	POSEIDON_ADD_LOAD
	POSEIDON_ADD_LOAD_FROM_MONTGOMERY
	POSEIDON_FULL
	POSEIDON_PARTIAL
	POSEIDON_STORE
	POSEIDON_STORE_TO_MONTGOMERY

	// === Synthesized-only: never produced by the decoder ===
	DELETE
	PANIC
	MOV
	READ_IOP_BODY_BATCH
	SHA_MIX_48
	SHA_INIT
	SHA_FINI
	POSEIDON_PERMUTE
	POSEIDON_PERMUTE_STORE
	POSEIDON_PERMUTE_STORE_TO_MONTGOMERY
	SELECT_RANGE

	opCount
)

var mnemonics = [opCount]string{
	ADD: "ADD", SUB: "SUB", MUL: "MUL", NOT: "NOT", INV: "INV", EQ: "EQ", CONST: "CONST",
	BIT_AND_ELEM: "BIT_AND_ELEM", BIT_AND_SHORTS: "BIT_AND_SHORTS", BIT_XOR_SHORTS: "BIT_XOR_SHORTS",
	READ_IOP_HEADER: "READ_IOP_HEADER", READ_IOP_BODY: "READ_IOP_BODY",
	WOM_INIT: "WOM_INIT", WOM_FINI: "WOM_FINI", SET_GLOBAL: "SET_GLOBAL",
	MIX_RNG: "MIX_RNG", MIX_RNG_WITH_PREV: "MIX_RNG_WITH_PREV",
	SELECT: "SELECT", EXTRACT: "EXTRACT",
	SHA_INIT_START: "SHA_INIT_START", SHA_INIT_PADDING: "SHA_INIT_PADDING",
	SHA_LOAD: "SHA_LOAD", SHA_LOAD_FROM_MONTGOMERY: "SHA_LOAD_FROM_MONTGOMERY",
	SHA_MIX: "SHA_MIX", SHA_FINI_START: "SHA_FINI_START", SHA_FINI_PADDING: "SHA_FINI_PADDING",
	POSEIDON_LOAD: "POSEIDON_LOAD", POSEIDON_LOAD_FROM_MONTGOMERY: "POSEIDON_LOAD_FROM_MONTGOMERY",
	POSEIDON_ADD_LOAD: "POSEIDON_ADD_LOAD", POSEIDON_ADD_LOAD_FROM_MONTGOMERY: "POSEIDON_ADD_LOAD_FROM_MONTGOMERY",
	POSEIDON_FULL: "POSEIDON_FULL", POSEIDON_PARTIAL: "POSEIDON_PARTIAL",
	POSEIDON_STORE: "POSEIDON_STORE", POSEIDON_STORE_TO_MONTGOMERY: "POSEIDON_STORE_TO_MONTGOMERY",
	DELETE: "DELETE", PANIC: "PANIC", MOV: "MOV", READ_IOP_BODY_BATCH: "READ_IOP_BODY_BATCH",
	SHA_MIX_48: "SHA_MIX_48", SHA_INIT: "SHA_INIT", SHA_FINI: "SHA_FINI",
	POSEIDON_PERMUTE: "POSEIDON_PERMUTE", POSEIDON_PERMUTE_STORE: "POSEIDON_PERMUTE_STORE",
	POSEIDON_PERMUTE_STORE_TO_MONTGOMERY: "POSEIDON_PERMUTE_STORE_TO_MONTGOMERY",
	SELECT_RANGE: "SELECT_RANGE",
}

// String returns the opcode's canonical name, used in diagnostics.
func (o Op) String() string {
	if int(o) < len(mnemonics) && mnemonics[o] != "" {
		return mnemonics[o]
	}
	return "UNKNOWN_OP"
}

// SynthesizedOnly reports whether the decoder can never produce this op.
func (o Op) SynthesizedOnly() bool {
	switch o {
	case DELETE, PANIC, MOV, READ_IOP_BODY_BATCH, SHA_MIX_48, SHA_INIT, SHA_FINI,
		POSEIDON_PERMUTE, POSEIDON_PERMUTE_STORE, POSEIDON_PERMUTE_STORE_TO_MONTGOMERY, SELECT_RANGE:
		return true
	default:
		return false
	}
}

// Instruction is the tagged-variant IR node. Every variant is a case of
// this one struct, discriminated by Op; only the fields relevant to that
// Op are meaningful. This keeps opcode dispatch an exhaustive switch over
// Op rather than a type switch over ~40 concrete types, matching the
// decode table's own flat field layout.
type Instruction struct {
	Op Op

	// Primary write address, for single-destination variants.
	W Addr

	// Generic read operands. Meaning depends on Op:
	//   ADD/SUB/MUL/BIT_AND_ELEM/BIT_AND_SHORTS/BIT_XOR_SHORTS/MIX_RNG: R1, R2
	//   NOT/INV/MOV/EXTRACT: R1
	//   EQ/PANIC (retained for audit): R1, R2
	//   SHA_LOAD/SHA_LOAD_FROM_MONTGOMERY: R1
	//   MIX_RNG_WITH_PREV: R1, R2 (Prev is a distinct field, see below)
	//   SET_GLOBAL: R1 (the published value's base address)
	R1, R2 ReadOperand

	// SELECT / SELECT_RANGE selector and branch operands.
	Sel, RT, RF ReadOperand

	// POSEIDON_LOAD / POSEIDON_ADD_LOAD (and their Montgomery variants):
	// exactly 8 source operands, state slots 8*Idx..8*Idx+8.
	Operands []ReadOperand

	// CONST's two raw 32-bit halves (only C0, C1 of the materialized Fp4
	// are populated; higher coordinates are zero).
	Lo, Hi uint32

	// READ_IOP_HEADER payload.
	Count, Flags uint32

	// SET_GLOBAL / POSEIDON_* group index.
	Idx uint32

	// EXTRACT's coordinate selector, in [0,4).
	Coord int

	// MIX_RNG_WITH_PREV's multiplier and previous-value operand. Prev is a
	// full ReadOperand (not a bare Addr) because the constant and reorder
	// passes resolve/remap it exactly like R1/R2.
	K    uint32
	Prev ReadOperand

	// POSEIDON_LOAD / POSEIDON_ADD_LOAD's pass-through round-constant
	// selector, copied verbatim from the source row. It stays on the load
	// instruction; the fused POSEIDON_PERMUTE* forms do not carry it.
	AddConsts uint32

	// Range bounds, reused across READ_IOP_BODY_BATCH (WS,WE),
	// SHA_FINI_START/SHA_FINI (WS only), POSEIDON_STORE*/POSEIDON_PERMUTE_STORE*
	// (WS only, Idx holds the group), and SELECT_RANGE (all six).
	WS, WE             Addr
	R1S, R1E, R2S, R2E Addr
}

// IsTombstone reports whether this instruction has been deleted by a pass
// and must be skipped by every later pass and the emitter.
func (ins Instruction) IsTombstone() bool { return ins.Op == DELETE }

// ConstFp4 reconstructs the Fp4 literal carried by a CONST instruction.
func (ins Instruction) ConstFp4() field.Fp4 {
	return field.Fp4{C0: field.NewFp(uint64(ins.Lo)), C1: field.NewFp(uint64(ins.Hi))}
}
