package reorder

import (
	"errors"
	"testing"

	"github.com/l2iterative/ll0/internal/ir"
)

func run(t *testing.T, prog *ir.Program) {
	t.Helper()
	if err := New().Run(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWritesGetDenseSequentialIDs(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 100, Lo: 1}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 250, Lo: 2}, 2)
	prog.Append(ir.Instruction{Op: ir.ADD, W: 999, R1: ir.Ref(100), R2: ir.Ref(250)}, 3)

	run(t, prog)

	if prog.At(0).Ins.W != 1 {
		t.Fatalf("first write should get id 1, got %d", prog.At(0).Ins.W)
	}
	if prog.At(1).Ins.W != 2 {
		t.Fatalf("second write should get id 2, got %d", prog.At(1).Ins.W)
	}
	add := prog.At(2).Ins
	if add.W != 3 {
		t.Fatalf("third write should get id 3, got %d", add.W)
	}
	if a, _ := add.R1.ReferencedAddr(); a != 1 {
		t.Fatalf("ADD.R1 should remap to 1, got %d", a)
	}
	if a, _ := add.R2.ReferencedAddr(); a != 2 {
		t.Fatalf("ADD.R2 should remap to 2, got %d", a)
	}
}

func TestReadOfNeverWrittenAddressIsFatal(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.ADD, W: 5, R1: ir.Ref(40), R2: ir.Ref(41)}, 1)

	err := New().Run(prog)
	var ur *UnknownRead
	if !errors.As(err, &ur) {
		t.Fatalf("expected *UnknownRead, got %v", err)
	}
	if ur.Addr != 40 {
		t.Fatalf("UnknownRead.Addr = %d, want 40", ur.Addr)
	}
}

func TestContiguousSelectRangeSurvivesRenumbering(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 50, Lo: 1}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 60, Lo: 2}, 2)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 61, Lo: 3}, 3)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 70, Lo: 4}, 4)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 71, Lo: 5}, 5)
	prog.Append(ir.Instruction{
		Op: ir.SELECT_RANGE,
		WS: 80, WE: 82,
		Sel: ir.Ref(50),
		R1S: 60, R1E: 62,
		R2S: 70, R2E: 72,
	}, 6)

	run(t, prog)

	got := prog.At(5).Ins
	if got.Op != ir.SELECT_RANGE {
		t.Fatalf("expected SELECT_RANGE to survive, got %v", got.Op)
	}
	if got.WE-got.WS != 2 || got.R1E-got.R1S != 2 || got.R2E-got.R2S != 2 {
		t.Fatalf("ranges should stay width 2, got %+v", got)
	}
}

func TestNonContiguousSelectRangeExpandsToIndividualSelects(t *testing.T) {
	prog := ir.New()
	// r1s..r1e = 60..62 interleaved with an unrelated write (59) so the two
	// addresses land on non-adjacent ids after renumbering.
	prog.Append(ir.Instruction{Op: ir.CONST, W: 50, Lo: 1}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 60, Lo: 2}, 2)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 59, Lo: 9}, 3) // interloper between 60 and 61's ids
	prog.Append(ir.Instruction{Op: ir.CONST, W: 61, Lo: 3}, 4)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 70, Lo: 4}, 5)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 71, Lo: 5}, 6)
	prog.Append(ir.Instruction{
		Op: ir.SELECT_RANGE,
		WS: 80, WE: 82,
		Sel: ir.Ref(50),
		R1S: 60, R1E: 62,
		R2S: 70, R2E: 72,
	}, 7)

	run(t, prog)

	// The interloper write breaks contiguity of R1's remapped ids (60 gets
	// id 2, the interloper 59 grabs id 3, 61 gets id 4) so the range must
	// expand back into two individual SELECTs.
	count := 0
	for i := 0; i < prog.Len(); i++ {
		if prog.At(i).Ins.Op == ir.SELECT {
			count++
		}
		if prog.At(i).Ins.Op == ir.SELECT_RANGE {
			t.Fatalf("SELECT_RANGE should have been expanded")
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 expanded SELECTs, got %d", count)
	}
}
