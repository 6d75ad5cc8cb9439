package equiv

import (
	"testing"

	"github.com/l2iterative/ll0/internal/field"
	"github.com/l2iterative/ll0/internal/ir"
)

func TestAddReadsIOPInputs(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.READ_IOP_BODY, W: 1}, 1)
	prog.Append(ir.Instruction{Op: ir.READ_IOP_BODY, W: 2}, 2)
	prog.Append(ir.Instruction{Op: ir.ADD, W: 3, R1: ir.Ref(1), R2: ir.Ref(2)}, 3)

	in := NewInterp([]field.Fp4{field.FromFp(field.NewFp(5)), field.FromFp(field.NewFp(7))})
	out, err := in.Run(prog, []ir.Addr{3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := field.FromFp(field.NewFp(12))
	if !out.Observed[3].Equal(want) {
		t.Fatalf("got %+v, want %+v", out.Observed[3], want)
	}
	if out.IOPUsed != 2 {
		t.Fatalf("IOPUsed = %d, want 2", out.IOPUsed)
	}
}

func TestEqFailureReportsError(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 1, Lo: 1}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 2, Lo: 2}, 2)
	prog.Append(ir.Instruction{Op: ir.EQ, R1: ir.Ref(1), R2: ir.Ref(2)}, 3)

	_, err := NewInterp(nil).Run(prog, nil)
	if err == nil {
		t.Fatalf("expected assertion failure error")
	}
}

func TestPanicStopsEvaluation(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.PANIC}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 9, Lo: 123}, 2)

	out, err := NewInterp(nil).Run(prog, []ir.Addr{9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Panicked {
		t.Fatalf("expected Panicked=true")
	}
	if !out.Observed[9].IsZero() {
		t.Fatalf("instruction after PANIC must not execute, got %+v", out.Observed[9])
	}
}

func TestSelectRangeFollowsSelector(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 1, Lo: 1}, 1) // selector = true
	prog.Append(ir.Instruction{Op: ir.CONST, W: 10, Lo: 100}, 2)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 11, Lo: 200}, 3)
	prog.Append(ir.Instruction{
		Op: ir.SELECT_RANGE,
		WS: 20, WE: 22,
		Sel: ir.Ref(1),
		R1S: 10, R1E: 12,
		R2S: 90, R2E: 92,
	}, 4)

	out, err := NewInterp(nil).Run(prog, []ir.Addr{20, 21})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Observed[20].Equal(field.FromFp(field.NewFp(100))) {
		t.Fatalf("got %+v", out.Observed[20])
	}
}

func TestSetGlobalRecordsPublishedValues(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 1, Lo: 42}, 1)
	prog.Append(ir.Instruction{Op: ir.SET_GLOBAL, R1: ir.Ref(1), Idx: 0}, 2)

	out, err := NewInterp(nil).Run(prog, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.SetGlobal) != 1 || !out.SetGlobal[0].Equal(field.FromFp(field.NewFp(42))) {
		t.Fatalf("got %+v", out.SetGlobal)
	}
}
