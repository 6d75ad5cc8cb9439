package equiv

import (
	"fmt"

	"github.com/l2iterative/ll0/internal/field"
	"github.com/l2iterative/ll0/internal/ir"
	"github.com/l2iterative/ll0/internal/pass"
)

// Mismatch describes how two programs' externally observable behavior
// diverged for one input vector. Virtual addresses are not part of this
// comparison: the renumbering and coalescing passes are free to rename
// addresses, so the only things a caller can compare across "before" and
// "after" are the effects that survive any addressing scheme — assertions
// holding, a panic firing, and the sequence of values published through
// SET_GLOBAL.
type Mismatch struct {
	Vector    int
	Panicked  [2]bool
	SetGlobal [2][]field.Fp4
	Asserted  [2]int
}

func (m *Mismatch) Error() string {
	if m.Panicked[0] != m.Panicked[1] {
		return fmt.Sprintf("vector %d: panic mismatch (before=%v after=%v)", m.Vector, m.Panicked[0], m.Panicked[1])
	}
	if m.Asserted[0] != m.Asserted[1] {
		return fmt.Sprintf("vector %d: assertion count diverged (before=%d after=%d)", m.Vector, m.Asserted[0], m.Asserted[1])
	}
	return fmt.Sprintf("vector %d: published globals diverged (before=%v after=%v)", m.Vector, m.SetGlobal[0], m.SetGlobal[1])
}

// Vectors is a small set of fixed IOP input streams used to QuickCheck a
// pass's effect on a program, mirroring the teacher's fixed TestVectors
// table: cheap enough to run on every pass invocation, and in practice
// enough entropy to catch almost every real divergence.
func Vectors(width int) [][]field.Fp4 {
	mk := func(vals ...uint64) []field.Fp4 {
		out := make([]field.Fp4, width)
		for i := range out {
			v := uint64(0)
			if i < len(vals) {
				v = vals[i]
			}
			out[i] = field.FromFp(field.NewFp(v + uint64(i)))
		}
		return out
	}
	return [][]field.Fp4{
		mk(0),
		mk(1, 1, 1, 1),
		mk(field.Modulus - 1),
		mk(0xDEAD, 0xBEEF, 0xCAFE, 0x1234),
		mk(7, 11, 13, 17, 19, 23),
	}
}

// CheckPass runs before and after (a clone of before with p applied) across
// a fixed set of IOP input vectors and reports the first externally
// observable divergence. A nil result means p is behavior-preserving
// across every vector tried — not a formal proof, the same caveat the
// teacher's own QuickCheck/ExhaustiveCheck split carries.
func CheckPass(p pass.Pass, before *ir.Program, iopWidth int) error {
	for vi, vec := range Vectors(iopWidth) {
		wantOut, wantErr := NewInterp(vec).Run(before, nil)

		after := clone(before)
		if err := p.Run(after); err != nil {
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		gotOut, gotErr := NewInterp(vec).Run(after, nil)

		wantPanic := wantErr != nil || wantOut.Panicked
		gotPanic := gotErr != nil || gotOut.Panicked
		if wantPanic != gotPanic {
			return &Mismatch{Vector: vi, Panicked: [2]bool{wantPanic, gotPanic}}
		}
		if wantPanic {
			continue
		}
		if wantOut.Asserted != gotOut.Asserted {
			return &Mismatch{Vector: vi, Asserted: [2]int{wantOut.Asserted, gotOut.Asserted}}
		}
		if !sameGlobals(wantOut.SetGlobal, gotOut.SetGlobal) {
			return &Mismatch{Vector: vi, SetGlobal: [2][]field.Fp4{wantOut.SetGlobal, gotOut.SetGlobal}}
		}
	}
	return nil
}

func sameGlobals(a, b []field.Fp4) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func clone(prog *ir.Program) *ir.Program {
	out := ir.New()
	out.Lines = append([]ir.Line(nil), prog.Lines...)
	for i := range out.Lines {
		out.Lines[i].Ins.Operands = append([]ir.ReadOperand(nil), out.Lines[i].Ins.Operands...)
	}
	return out
}
