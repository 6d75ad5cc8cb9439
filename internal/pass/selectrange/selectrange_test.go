package selectrange

import (
	"testing"

	"github.com/l2iterative/ll0/internal/ir"
)

func run(t *testing.T, prog *ir.Program) {
	t.Helper()
	if err := New().Run(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestThreeUniformSelectsFuse(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 10, Sel: ir.Ref(1), RT: ir.Ref(20), RF: ir.Ref(30)}, 1)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 11, Sel: ir.Ref(1), RT: ir.Ref(21), RF: ir.Ref(31)}, 2)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 12, Sel: ir.Ref(1), RT: ir.Ref(22), RF: ir.Ref(32)}, 3)

	run(t, prog)

	got := prog.At(0).Ins
	if got.Op != ir.SELECT_RANGE {
		t.Fatalf("line 0 = %v, want SELECT_RANGE", got.Op)
	}
	if got.WS != 10 || got.WE != 13 || got.R1S != 20 || got.R1E != 23 || got.R2S != 30 || got.R2E != 33 {
		t.Fatalf("got %+v, want ranges (10,13)(20,23)(30,33)", got)
	}
	for i := 1; i < 3; i++ {
		if !prog.At(i).Ins.IsTombstone() {
			t.Fatalf("line %d should be tombstoned", i)
		}
	}
}

func TestTwoSelectsDoNotFuse(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 10, Sel: ir.Ref(1), RT: ir.Ref(20), RF: ir.Ref(30)}, 1)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 11, Sel: ir.Ref(1), RT: ir.Ref(21), RF: ir.Ref(31)}, 2)

	run(t, prog)

	if prog.At(0).Ins.Op != ir.SELECT {
		t.Fatalf("a two-element run must not fuse, got %v", prog.At(0).Ins.Op)
	}
}

func TestDifferentSelectorBreaksRun(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 10, Sel: ir.Ref(1), RT: ir.Ref(20), RF: ir.Ref(30)}, 1)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 11, Sel: ir.Ref(2), RT: ir.Ref(21), RF: ir.Ref(31)}, 2)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 12, Sel: ir.Ref(1), RT: ir.Ref(22), RF: ir.Ref(32)}, 3)

	run(t, prog)

	if prog.At(0).Ins.Op != ir.SELECT {
		t.Fatalf("run should break at the selector change, got %v", prog.At(0).Ins.Op)
	}
}

func TestRefSubOperandNeverStartsARun(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 10, Sel: ir.Ref(1), RT: ir.RefSub(20, 1), RF: ir.Ref(30)}, 1)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 11, Sel: ir.Ref(1), RT: ir.Ref(21), RF: ir.Ref(31)}, 2)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 12, Sel: ir.Ref(1), RT: ir.Ref(22), RF: ir.Ref(32)}, 3)

	run(t, prog)

	if prog.At(0).Ins.Op != ir.SELECT {
		t.Fatalf("RefSub head must not start a range, got %v", prog.At(0).Ins.Op)
	}
}
