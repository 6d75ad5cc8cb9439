// Package ir defines the tagged-variant intermediate representation that
// the decoder produces and every optimization pass rewrites in place.
package ir

import "github.com/l2iterative/ll0/internal/field"

// Addr is a virtual address: a logical memory cell produced by exactly one
// instruction (until a pass remaps it). Address 0 is permanently bound to
// Fp4Zero.
type Addr uint32

// ZeroAddr is the reserved, pre-bound address.
const ZeroAddr Addr = 0

// OperandKind discriminates the three ReadOperand shapes.
type OperandKind uint8

const (
	OpRef OperandKind = iota
	OpRefSub
	OpConst
)

// ReadOperand is a sum type: a full reference, a sub-coordinate reference,
// or a materialized literal. Exactly one shape is active, selected by Kind.
type ReadOperand struct {
	Kind  OperandKind
	Addr  Addr      // valid when Kind == OpRef or OpRefSub
	Coord int       // valid when Kind == OpRefSub, in [0,4)
	Value field.Fp4 // valid when Kind == OpConst
}

// Ref builds a full-value reference operand.
func Ref(a Addr) ReadOperand { return ReadOperand{Kind: OpRef, Addr: a} }

// RefSub builds a sub-coordinate reference operand.
func RefSub(a Addr, coord int) ReadOperand {
	return ReadOperand{Kind: OpRefSub, Addr: a, Coord: coord}
}

// Const builds a materialized literal operand.
func Const(v field.Fp4) ReadOperand { return ReadOperand{Kind: OpConst, Value: v} }

// IsConst reports whether the operand is already a materialized literal.
func (o ReadOperand) IsConst() bool { return o.Kind == OpConst }

// ReferencedAddr returns the address this operand reads from and whether
// it references one at all (Const operands do not).
func (o ReadOperand) ReferencedAddr() (Addr, bool) {
	switch o.Kind {
	case OpRef, OpRefSub:
		return o.Addr, true
	default:
		return 0, false
	}
}
