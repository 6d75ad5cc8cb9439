// Package selectrange implements the SELECT range-fusion pass: a run of
// SELECT instructions whose destination and both operand ranges advance
// in uniform stride-1 lockstep, sharing one selector, is fused into a
// single SELECT_RANGE.
package selectrange

import "github.com/l2iterative/ll0/internal/ir"

// Pass fuses uniform SELECT runs into SELECT_RANGE.
type Pass struct{}

// New creates the SELECT range-fusion pass.
func New() *Pass { return &Pass{} }

// Name identifies this pass in pipeline error messages.
func (p *Pass) Name() string { return "select_range_pass" }

// Run scans once left to right; at each eligible SELECT head it greedily
// extends the run, then fuses if the run spans more than two elements.
func (p *Pass) Run(prog *ir.Program) error {
	for cur := 0; cur < prog.Len(); cur++ {
		head := &prog.At(cur).Ins
		if head.Op != ir.SELECT || head.RT.Kind != ir.OpRef || head.RF.Kind != ir.OpRef {
			continue
		}

		ws, we := head.W, head.W+1
		r1s, r1e := head.RT.Addr, head.RT.Addr+1
		r2s, r2e := head.RF.Addr, head.RF.Addr+1
		sel := head.Sel

		look := cur + 1
		runLen := 1
		for look < prog.Len() {
			cand := prog.At(look).Ins
			if cand.Op != ir.SELECT || cand.W != we || !sameOperand(cand.Sel, sel) ||
				cand.RT.Kind != ir.OpRef || cand.RF.Kind != ir.OpRef ||
				cand.RT.Addr != r1e || cand.RF.Addr != r2e {
				break
			}
			we++
			r1e++
			r2e++
			runLen++
			look++
		}

		if runLen > 2 {
			*head = ir.Instruction{
				Op: ir.SELECT_RANGE,
				WS: ws, WE: we,
				Sel: sel,
				R1S: r1s, R1E: r1e,
				R2S: r2s, R2E: r2e,
			}
			for i := cur + 1; i < look; i++ {
				prog.Delete(i)
			}
		}
	}
	return nil
}

func sameOperand(a, b ir.ReadOperand) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.OpRef:
		return a.Addr == b.Addr
	case ir.OpRefSub:
		return a.Addr == b.Addr && a.Coord == b.Coord
	case ir.OpConst:
		return a.Value.Equal(b.Value)
	}
	return false
}
