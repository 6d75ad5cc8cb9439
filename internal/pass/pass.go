// Package pass defines the uniform contract every optimization stage
// implements, and a Pipeline that runs them in the fixed order the
// decompiler requires.
package pass

import (
	"fmt"

	"github.com/l2iterative/ll0/internal/ir"
)

// Pass rewrites a Program in place. A non-nil error aborts the pipeline;
// every pass owns whatever auxiliary state it needs for the duration of
// its own Run call only.
type Pass interface {
	Name() string
	Run(prog *ir.Program) error
}

// Pipeline runs a fixed, ordered sequence of passes over one Program.
type Pipeline struct {
	Passes []Pass
}

// NewPipeline builds a pipeline from the given passes, run in order.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{Passes: passes}
}

// Run executes every pass in order, stopping at the first error. The error
// is wrapped with the failing pass's name so a multi-stage failure is
// traceable without a stack trace.
func (p *Pipeline) Run(prog *ir.Program) error {
	for _, ps := range p.Passes {
		if err := ps.Run(prog); err != nil {
			return fmt.Errorf("pass %s: %w", ps.Name(), err)
		}
	}
	return nil
}
