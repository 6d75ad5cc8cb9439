// Package emit renders a Program back to its textual .ll0 listing.
package emit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/l2iterative/ll0/internal/field"
	"github.com/l2iterative/ll0/internal/ir"
)

// Emit writes prog to w as line-oriented, UTF-8 .ll0 text: one line per
// live instruction, prefixed with its decoded source row number. DELETE
// tombstones never reach the output.
func Emit(w io.Writer, prog *ir.Program) error {
	bw := bufio.NewWriter(w)

	var outerErr error
	prog.Live(func(_ int, line *ir.Line) {
		if outerErr != nil {
			return
		}
		body, err := render(&line.Ins)
		if err != nil {
			outerErr = err
			return
		}
		if _, err := fmt.Fprintf(bw, "%d: %s\n", line.Src, body); err != nil {
			outerErr = err
		}
	})
	if outerErr != nil {
		return outerErr
	}
	return bw.Flush()
}

func render(ins *ir.Instruction) (string, error) {
	switch ins.Op {
	case ir.BIT_AND_ELEM:
		return fmt.Sprintf("m[%d] = %s.0 & %s.0;", ins.W, ref(ins.R1), ref(ins.R2)), nil

	case ir.BIT_AND_SHORTS:
		return fmt.Sprintf("m[%d] = %s.0 & %s.0 + (%s.1 & %s.1) << 16;",
			ins.W, ref(ins.R1), ref(ins.R2), ref(ins.R1), ref(ins.R2)), nil

	case ir.BIT_XOR_SHORTS:
		return fmt.Sprintf("m[%d] = (%s.0 ^ %s.0, %s.1 ^ %s.1);",
			ins.W, ref(ins.R1), ref(ins.R2), ref(ins.R1), ref(ins.R2)), nil

	case ir.SHA_INIT_START:
		return "sha_init_start();", nil
	case ir.SHA_INIT_PADDING:
		return "sha_init_padding();", nil
	case ir.SHA_MIX:
		return "sha_mix();", nil
	case ir.SHA_INIT:
		return "sha_init();", nil
	case ir.SHA_MIX_48:
		return "for _ in 0..48 { sha_mix(); }", nil

	case ir.SHA_LOAD_FROM_MONTGOMERY:
		return fmt.Sprintf("sha_load_from_montgomery(%s.0);", ref(ins.R1)), nil
	case ir.SHA_LOAD:
		return fmt.Sprintf("sha_load(%s.0 + %s.1 << 16);", ref(ins.R1), ref(ins.R1)), nil

	case ir.SHA_FINI_START:
		return fmt.Sprintf("sha_fini_start(&mut m[%d..=%d]);", ins.WS, ins.WS+7), nil
	case ir.SHA_FINI_PADDING:
		return "sha_fini_padding();", nil
	case ir.SHA_FINI:
		return fmt.Sprintf("sha_fini(&mut m[%d..=%d]);", ins.WS, ins.WS+7), nil

	case ir.WOM_INIT:
		return "wom_init();", nil
	case ir.WOM_FINI:
		return "wom_fini();", nil

	case ir.SET_GLOBAL:
		return fmt.Sprintf("set_global(%s, %d);", ref(ins.R1), ins.Idx), nil

	case ir.CONST:
		return fmt.Sprintf("m[%d] = %s;", ins.W, constLiteral(ins.ConstFp4())), nil

	case ir.ADD:
		return fmt.Sprintf("m[%d] = %s + %s;", ins.W, ref(ins.R1), ref(ins.R2)), nil
	case ir.SUB:
		return fmt.Sprintf("m[%d] = %s - %s;", ins.W, ref(ins.R1), ref(ins.R2)), nil
	case ir.MUL:
		return fmt.Sprintf("m[%d] = %s * %s;", ins.W, ref(ins.R1), ref(ins.R2)), nil

	case ir.NOT:
		return fmt.Sprintf("m[%d] = !%s.0;", ins.W, ref(ins.R1)), nil
	case ir.INV:
		return fmt.Sprintf("m[%d] = 1 / %s;", ins.W, ref(ins.R1)), nil

	case ir.EQ:
		return fmt.Sprintf("assert_eq!(%s, %s);", ref(ins.R1), ref(ins.R2)), nil
	case ir.PANIC:
		return "panic!();", nil

	case ir.READ_IOP_HEADER:
		return fmt.Sprintf("iop = read_iop(IOP_Header { count: %d, k_and_flip_flag: %d });", ins.Count, ins.Flags), nil
	case ir.READ_IOP_BODY:
		return fmt.Sprintf("m[%d] = iop.pop();", ins.W), nil
	case ir.READ_IOP_BODY_BATCH:
		return fmt.Sprintf("iop.write(&mut m[%d..=%d]);", ins.WS, ins.WE-1), nil

	case ir.MIX_RNG_WITH_PREV:
		// Uses .1 (the high coordinate) on every operand: confirmed against
		// the fold formula's own numeric reduction, not the abbreviated
		// ".0" shown in some renderings of this grammar rule.
		return fmt.Sprintf("m[%d] = (%d * %s.1) << 64 + %s.1 << 48 + %s.0 << 32 + %s.1 << 16 + %s.0;",
			ins.W, ins.K, ref(ins.Prev), ref(ins.R1), ref(ins.R1), ref(ins.R2), ref(ins.R2)), nil

	case ir.MIX_RNG:
		return fmt.Sprintf("m[%d] = %s.1 << 48 + %s.0 << 32 + %s.1 << 16 + %s.0;",
			ins.W, ref(ins.R1), ref(ins.R1), ref(ins.R2), ref(ins.R2)), nil

	case ir.SELECT:
		return fmt.Sprintf("m[%d] = if %s.0 { %s } else { %s };", ins.W, ref(ins.Sel), ref(ins.RT), ref(ins.RF)), nil

	case ir.SELECT_RANGE:
		return fmt.Sprintf("m[%d..=%d] = if %s.0 { m[%d..=%d] } else { m[%d..=%d] };",
			ins.WS, ins.WE-1, ref(ins.Sel), ins.R1S, ins.R1E-1, ins.R2S, ins.R2E-1), nil

	case ir.EXTRACT:
		return fmt.Sprintf("m[%d] = %s.%d;", ins.W, ref(ins.R1), ins.Coord), nil

	case ir.MOV:
		return fmt.Sprintf("m[%d] = %s;", ins.W, ref(ins.R1)), nil

	case ir.POSEIDON_LOAD:
		return poseidonLoad(ins, "poseidon.state = [0; 24]; poseidon.state[%d..=%d] = (%s);"), nil
	case ir.POSEIDON_LOAD_FROM_MONTGOMERY:
		return poseidonLoad(ins, "poseidon.state = [0; 24]; poseidon.state[%d..=%d] = from_montgomery!(%s);"), nil
	case ir.POSEIDON_ADD_LOAD:
		return poseidonLoad(ins, "poseidon.state[%d..=%d] += (%s);"), nil
	case ir.POSEIDON_ADD_LOAD_FROM_MONTGOMERY:
		return poseidonLoad(ins, "poseidon.state[%d..=%d] += from_montgomery!(%s);"), nil

	case ir.POSEIDON_FULL:
		return "poseidon.full();", nil
	case ir.POSEIDON_PARTIAL:
		return "poseidon.partial();", nil
	case ir.POSEIDON_PERMUTE:
		return "poseidon.permute();", nil

	case ir.POSEIDON_STORE:
		return fmt.Sprintf("m[%d..=%d] = poseidon.state[%d..=%d];", ins.WS, ins.WS+7, 8*ins.Idx, 8*ins.Idx+7), nil
	case ir.POSEIDON_STORE_TO_MONTGOMERY:
		return fmt.Sprintf("m[%d..=%d] = to_montgomery!(poseidon.state[%d..=%d]);", ins.WS, ins.WS+7, 8*ins.Idx, 8*ins.Idx+7), nil
	case ir.POSEIDON_PERMUTE_STORE:
		return fmt.Sprintf("poseidon.permute(); m[%d..=%d] = poseidon.state[%d..=%d];", ins.WS, ins.WS+7, 8*ins.Idx, 8*ins.Idx+7), nil
	case ir.POSEIDON_PERMUTE_STORE_TO_MONTGOMERY:
		return fmt.Sprintf("poseidon.permute(); m[%d..=%d] = to_montgomery!(poseidon.state[%d..=%d]);", ins.WS, ins.WS+7, 8*ins.Idx, 8*ins.Idx+7), nil

	default:
		return "", fmt.Errorf("emit: no textual form for opcode %s", ins.Op)
	}
}

func poseidonLoad(ins *ir.Instruction, format string) string {
	parts := make([]string, len(ins.Operands))
	for i, op := range ins.Operands {
		parts[i] = ref(op)
	}
	joined := parts[0]
	for _, p := range parts[1:] {
		joined += ", " + p
	}
	return fmt.Sprintf(format, 8*ins.Idx, 8*ins.Idx+7, joined)
}

func ref(op ir.ReadOperand) string {
	switch op.Kind {
	case ir.OpRef:
		return fmt.Sprintf("m[%d]", op.Addr)
	case ir.OpRefSub:
		return fmt.Sprintf("m[%d].%d", op.Addr, op.Coord)
	case ir.OpConst:
		return constLiteral(op.Value)
	default:
		return "?"
	}
}

func constLiteral(v field.Fp4) string {
	switch {
	case v.C2.IsZero() && v.C3.IsZero() && v.C1.IsZero():
		return fmt.Sprintf("%d", v.C0.Uint32())
	case v.C2.IsZero() && v.C3.IsZero():
		return fmt.Sprintf("(%d, %d)", v.C0.Uint32(), v.C1.Uint32())
	default:
		return fmt.Sprintf("(%d, %d, %d, %d)", v.C0.Uint32(), v.C1.Uint32(), v.C2.Uint32(), v.C3.Uint32())
	}
}
