// Package driver wires the decode/pass/emit pipeline into runnable units:
// a single-file decompile and a worker-pool batch runner over many files.
package driver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/l2iterative/ll0/internal/decoder"
	"github.com/l2iterative/ll0/internal/emit"
	"github.com/l2iterative/ll0/internal/equiv"
	"github.com/l2iterative/ll0/internal/ir"
	"github.com/l2iterative/ll0/internal/pass"
	"github.com/l2iterative/ll0/internal/pass/constfold"
	"github.com/l2iterative/ll0/internal/pass/iopmerge"
	"github.com/l2iterative/ll0/internal/pass/livevar"
	"github.com/l2iterative/ll0/internal/pass/poseidonpat"
	"github.com/l2iterative/ll0/internal/pass/reorder"
	"github.com/l2iterative/ll0/internal/pass/selectrange"
	"github.com/l2iterative/ll0/internal/pass/shapat"
)

// Options controls which optional stages DecompileFile runs.
type Options struct {
	// Reorder renumbers addresses densely right before emission. Off by
	// default so a caller can diff the emitted listing against the raw
	// decode's original addressing.
	Reorder bool

	// VerifyPasses runs internal/equiv.CheckPass before each pass is
	// applied for real, aborting the decompile at the first pass caught
	// changing observable behavior. Only sound for programs that never
	// read the IOP transcript (see ReadsIOP) — skipped otherwise, with an
	// Info log line, since the harness only has a synthetic IOP stream to
	// check against.
	VerifyPasses bool

	Log *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.Default()
}

// Passes returns the fixed, ordered pass sequence every decompile runs,
// with Reorder appended last and only when requested. Exposed as a slice
// (not just inside Pipeline) so a caller running the equivalence harness
// can check each stage individually rather than the pipeline as one block.
func Passes(opts Options) []pass.Pass {
	passes := []pass.Pass{
		constfold.New(),
		iopmerge.New(),
		livevar.New(),
		shapat.New(),
		poseidonpat.New(),
		selectrange.New(),
	}
	if opts.Reorder {
		passes = append(passes, reorder.New())
	}
	return passes
}

// Pipeline builds the fixed pass sequence wrapped as a single runnable unit.
func Pipeline(opts Options) *pass.Pipeline {
	return pass.NewPipeline(Passes(opts)...)
}

// WordsFromBytes casts a little-endian byte stream into 32-bit words,
// validating the row-width alignment required by the decoder.
func WordsFromBytes(data []byte) ([]uint32, error) {
	if len(data)%(4*decoder.RowWords) != 0 {
		return nil, fmt.Errorf("driver: input length %d is not a multiple of %d bytes (%d-word rows)",
			len(data), 4*decoder.RowWords, decoder.RowWords)
	}
	words := make([]uint32, len(data)/4)
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.LittleEndian, words); err != nil {
		return nil, fmt.Errorf("driver: reading words: %w", err)
	}
	return words, nil
}

// DecompileFile reads one ZKR file end to end: open, word-cast, decode, run
// the pipeline, and return the resulting Program ready for emission. This
// is the unit of work RunBatch dispatches across its worker pool — one
// goroutine, one file, one Program, no shared state.
func DecompileFile(path string, opts Options) (*ir.Program, error) {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("driver: reading %s: %w", path, err)
	}
	words, err := WordsFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("driver: %s: %w", path, err)
	}
	prog, err := decoder.Decode(words)
	if err != nil {
		return nil, fmt.Errorf("driver: decoding %s: %w", path, err)
	}
	before := prog.Len()

	switch {
	case opts.VerifyPasses && ReadsIOP(prog):
		opts.logger().Info("skipping pass verification: program reads the IOP transcript", "path", path)
		if err := Pipeline(opts).Run(prog); err != nil {
			return nil, fmt.Errorf("driver: optimizing %s: %w", path, err)
		}
	case opts.VerifyPasses:
		for _, p := range Passes(opts) {
			if err := equiv.CheckPass(p, prog, 0); err != nil {
				return nil, fmt.Errorf("driver: verifying pass %s on %s: %w", p.Name(), path, err)
			}
			if err := p.Run(prog); err != nil {
				return nil, fmt.Errorf("driver: optimizing %s: %w", path, err)
			}
		}
	default:
		if err := Pipeline(opts).Run(prog); err != nil {
			return nil, fmt.Errorf("driver: optimizing %s: %w", path, err)
		}
	}

	opts.logger().Info("decompiled file",
		"path", path,
		"rows_before", before,
		"rows_after", prog.Len(),
		"elapsed", time.Since(start))
	return prog, nil
}

// ReadsIOP reports whether prog consumes anything from the IOP transcript.
// verify-passes only has a synthetic IOP stream to feed the equivalence
// harness, not the real one the verifier circuit would have supplied, so
// it is only sound to run on programs that never touch the IOP.
func ReadsIOP(prog *ir.Program) bool {
	for i := 0; i < prog.Len(); i++ {
		switch prog.At(i).Ins.Op {
		case ir.READ_IOP_HEADER, ir.READ_IOP_BODY, ir.READ_IOP_BODY_BATCH:
			return true
		}
	}
	return false
}

// EmitFile renders prog to path as .ll0 text.
func EmitFile(path string, prog *ir.Program) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("driver: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := emit.Emit(f, prog); err != nil {
		return fmt.Errorf("driver: emitting %s: %w", path, err)
	}
	return nil
}
