package driver

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/l2iterative/ll0/internal/decoder"
	"github.com/l2iterative/ll0/internal/ir"
)

// constRow builds one raw 21-word micro row, matching decoder_test.go's row
// shape. It decodes to three CONST ops: addr gets the low word val, and the
// two unused packed slots decode as CONST 0 at addr+1 and addr+2.
func constRow(addr, val uint32) [decoder.RowWords]uint32 {
	var r [decoder.RowWords]uint32
	r[1] = 1 // slotSelectMicro
	r[0] = addr
	r[7], r[8], r[9], r[10] = 0, val, 0, 0 // microConst
	return r
}

// bitAndRow builds a macro row writing a single address via BIT_AND_ELEM,
// self-referencing addr as both operands so the instruction never depends
// on anything decoded earlier in the program.
func bitAndRow(addr uint32) [decoder.RowWords]uint32 {
	var r [decoder.RowWords]uint32
	r[0] = addr
	r[2] = 1  // slotSelectMacro
	r[10] = 1 // slotMacroBitAndElem
	r[17] = addr
	r[18] = addr
	return r
}

// selectTripleRow builds one micro row packing three SELECT instructions
// at base, base+1, base+2, all sharing selAddr as their selector, with
// R1 operands r2Base+delta..r2Base+delta+2 and R2 operands r2Base..r2Base+2
// — a uniform stride-1 run eligible for fusion by the select-range pass.
func selectTripleRow(base, selAddr, r2Base, delta uint32) [decoder.RowWords]uint32 {
	var r [decoder.RowWords]uint32
	r[1] = 1 // slotSelectMicro
	r[0] = base
	for k := uint32(0); k < 3; k++ {
		off := 7 + k*4
		r[off+0] = 9 // microSelect
		r[off+1] = selAddr
		r[off+2] = r2Base + k
		r[off+3] = delta
	}
	return r
}

func rowsToBytes(t *testing.T, rows ...[decoder.RowWords]uint32) []byte {
	t.Helper()
	words := make([]uint32, 0, len(rows)*decoder.RowWords)
	for _, r := range rows {
		words = append(words, r[:]...)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, words); err != nil {
		t.Fatalf("encoding words: %v", err)
	}
	return buf.Bytes()
}

func TestWordsFromBytesRejectsMisalignedInput(t *testing.T) {
	_, err := WordsFromBytes(make([]byte, 10))
	if err == nil {
		t.Fatal("expected an alignment error")
	}
}

func TestWordsFromBytesRoundTripsLittleEndian(t *testing.T) {
	data := rowsToBytes(t, constRow(5, 42))
	words, err := WordsFromBytes(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != decoder.RowWords {
		t.Fatalf("got %d words, want %d", len(words), decoder.RowWords)
	}
	if words[0] != 5 {
		t.Fatalf("slotWriteAddr = %d, want 5", words[0])
	}
}

func TestDecompileFileProducesEmittableProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.zkr")
	if err := os.WriteFile(path, rowsToBytes(t, bitAndRow(1)), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	prog, err := DecompileFile(path, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prog.Len() != 1 {
		t.Fatalf("got %d lines, want 1", prog.Len())
	}

	out := filepath.Join(dir, "sample.ll0")
	if err := EmitFile(out, prog); err != nil {
		t.Fatalf("EmitFile: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading emitted output: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty .ll0 output")
	}
}

func TestDecompileFileVerifyPassesAcceptsCleanProgram(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clean.zkr")
	if err := os.WriteFile(path, rowsToBytes(t, constRow(1, 9), constRow(2, 3)), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := DecompileFile(path, Options{VerifyPasses: true}); err != nil {
		t.Fatalf("unexpected verification failure: %v", err)
	}
}

func TestDecompileFileReportsIllegalRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.zkr")
	var zero [decoder.RowWords]uint32
	if err := os.WriteFile(path, rowsToBytes(t, zero), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := DecompileFile(path, Options{}); err == nil {
		t.Fatal("expected a decode error for an all-zero row")
	}
}

// TestDecompileFileReordersNonContiguousFusedSelectRange exercises
// Options{Reorder: true} end to end on a program whose decoded SELECTs
// fuse into one SELECT_RANGE, then renumber to non-contiguous ids: an
// unrelated write (900) lands between the two earliest writes of the R1
// operand range in program order, so after dense renumbering the R1 (and
// R2) id sequences are no longer stride-1, forcing the range back apart
// into individual SELECTs. This is the level --reorder is actually
// invoked at (cmd/ll0dec's decompile and batch subcommands), not just the
// isolated reorder-pass unit test.
func TestDecompileFileReordersNonContiguousFusedSelectRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fused_select.zkr")

	rows := []([decoder.RowWords]uint32){
		bitAndRow(100), // selector
		bitAndRow(70),  // R2[0]
		bitAndRow(170), // R1[0]
		bitAndRow(900), // interloper, splits R1's write order
		bitAndRow(171), // R1[1]
		bitAndRow(71),  // R2[1]
		bitAndRow(172), // R1[2]
		bitAndRow(72),  // R2[2]
		selectTripleRow(80, 100, 70, 100),
	}
	if err := os.WriteFile(path, rowsToBytes(t, rows...), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	prog, err := DecompileFile(path, Options{Reorder: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sawSelect := false
	for i := 0; i < prog.Len(); i++ {
		switch prog.At(i).Ins.Op {
		case ir.SELECT_RANGE:
			t.Fatalf("expected the non-contiguous renumbering to fall back to individual SELECTs")
		case ir.SELECT:
			sawSelect = true
		}
	}
	if !sawSelect {
		t.Fatal("expected the fused range to survive renumbering as individual SELECT instructions")
	}
}
