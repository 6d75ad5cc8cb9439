package constfold

import (
	"testing"

	"github.com/l2iterative/ll0/internal/field"
	"github.com/l2iterative/ll0/internal/ir"
)

func run(t *testing.T, prog *ir.Program) {
	t.Helper()
	if err := New().Run(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestConstantFoldOfAdd matches the literal scenario: two CONST rows
// producing mem[1]=3 and mem[2]=5, then ADD(3,1,2) folds to mem[3]=8 and
// every source line tombstones.
func TestConstantFoldOfAdd(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 1, Lo: 3}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 2, Lo: 5}, 2)
	prog.Append(ir.Instruction{Op: ir.ADD, W: 3, R1: ir.Ref(1), R2: ir.Ref(2)}, 3)

	p := New()
	if err := p.Run(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !prog.At(i).Ins.IsTombstone() {
			t.Fatalf("line %d should be tombstoned, got %+v", i, prog.At(i).Ins)
		}
	}
	got := p.mem[3]
	want := field.FromFp(field.NewFp(8))
	if !got.isConst || !got.value.Equal(want) {
		t.Fatalf("mem[3] = %+v, want const 8", got)
	}
}

func TestSelectOnZeroSelector(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 9, Lo: 77}, 1)
	prog.Append(ir.Instruction{Op: ir.SELECT, W: 5, Sel: ir.Ref(ir.ZeroAddr), RT: ir.Ref(1), RF: ir.Ref(9)}, 2)

	p := New()
	if err := p.Run(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := prog.At(1).Ins
	if line.IsTombstone() {
		// folded straight to a constant binding
		got := p.mem[5]
		if !got.isConst || got.value.Coord(0) != field.NewFp(77) {
			t.Fatalf("mem[5] = %+v, want const 77", got)
		}
		return
	}
	if line.Op != ir.MOV {
		t.Fatalf("expected MOV or full fold, got %+v", line)
	}
}

func TestEqualityOnIncompatibleConstants(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 1, Lo: 3}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 2, Lo: 4}, 2)
	prog.Append(ir.Instruction{Op: ir.EQ, R1: ir.Ref(1), R2: ir.Ref(2)}, 3)

	run(t, prog)

	if prog.At(2).Ins.Op != ir.PANIC {
		t.Fatalf("expected PANIC, got %+v", prog.At(2).Ins)
	}
}

func TestEqualityOnEqualConstantsDeletes(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.CONST, W: 1, Lo: 3}, 1)
	prog.Append(ir.Instruction{Op: ir.CONST, W: 2, Lo: 3}, 2)
	prog.Append(ir.Instruction{Op: ir.EQ, R1: ir.Ref(1), R2: ir.Ref(2)}, 3)

	run(t, prog)

	if !prog.At(2).Ins.IsTombstone() {
		t.Fatalf("expected tombstone, got %+v", prog.At(2).Ins)
	}
}

func TestAdditiveIdentityBecomesMov(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.ADD, W: 5, R1: ir.Ref(ir.ZeroAddr), R2: ir.Ref(3)}, 1)

	run(t, prog)

	ins := prog.At(0).Ins
	if ins.Op != ir.MOV || ins.W != 5 {
		t.Fatalf("got %+v", ins)
	}
	if a, _ := ins.R1.ReferencedAddr(); a != 3 {
		t.Fatalf("MOV source = %v, want 3", ins.R1)
	}
}

func TestMultiplicativeZeroAbsorbs(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.MUL, W: 5, R1: ir.Ref(ir.ZeroAddr), R2: ir.Ref(3)}, 1)

	p := New()
	if err := p.Run(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !prog.At(0).Ins.IsTombstone() {
		t.Fatalf("expected tombstone, got %+v", prog.At(0).Ins)
	}
	if !p.mem[5].value.IsZero() {
		t.Fatalf("mem[5] should be zero, got %+v", p.mem[5])
	}
}

func TestExtractRecordsDeferredRefSub(t *testing.T) {
	prog := ir.New()
	prog.Append(ir.Instruction{Op: ir.EXTRACT, W: 5, R1: ir.Ref(3), Coord: 2}, 1)

	p := New()
	if err := p.Run(prog); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !prog.At(0).Ins.IsTombstone() {
		t.Fatalf("expected tombstone, got %+v", prog.At(0).Ins)
	}
	e := p.mem[5]
	if e.isConst || e.target != 3 || e.coord != 2 {
		t.Fatalf("mem[5] = %+v, want deferred RefSub(3,2)", e)
	}
}

func TestExtractResolvesOnceTargetKnown(t *testing.T) {
	// Exercises refresh's RefSub resolution directly: once the target
	// address is known, a RefSub operand over it resolves to a constant.
	p := New()
	p.mem = map[ir.Addr]redirection{
		ir.ZeroAddr: {isConst: true, value: field.Fp4Zero()},
		3:           {isConst: true, value: field.Fp4{C0: field.NewFp(1), C1: field.NewFp(2), C2: field.NewFp(3), C3: field.NewFp(4)}},
	}
	op := ir.RefSub(3, 2)
	v, ok := p.refresh(&op)
	if !ok || v.Coord(0) != field.NewFp(3) {
		t.Fatalf("refresh(RefSub(3,2)) = %v,%v want const 3", v, ok)
	}
}
