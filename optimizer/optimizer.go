// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/xslices"
)

// Config selects the strategies of one optimization run. The zero value
// selects all defaults; pass it explicitly rather than relying on any global
// state -- the optimizer is reentrant.
type Config struct {
	// Planner assigns operators to stages. Defaults to GreedyPlanner.
	Planner Planner

	// Sorter produces the signals' memory order. Defaults to GroupedSorter.
	Sorter Sorter

	// Rules is the ordered list of simplification rewrites. Defaults to
	// DefaultRules(). An empty non-nil list disables simplification.
	Rules []Rule

	// MaxSimplifyPasses bounds the simplification fixpoint loop. Defaults to
	// the number of operators: every productive pass removes at least one
	// operator, so more passes can never be productive. Hitting the bound
	// stops simplification without error.
	MaxSimplifyPasses int
}

// DefaultConfig returns the documented default strategies.
func DefaultConfig() Config {
	return Config{
		Planner: GreedyPlanner{},
		Sorter:  GroupedSorter{},
		Rules:   DefaultRules(),
	}
}

// Plan is the frozen output of Optimize: the stages in execution order, each
// holding its fused groups, plus the signals' memory order. It is handed to
// the external tensor-graph builder, which emits one batched computation per
// group; the optimizer performs no further mutation.
type Plan struct {
	// Stages in execution order.
	Stages []Stage

	// Signals is the memory order produced by the configured Sorter, over
	// all of the model's signals.
	Signals []*model.Signal

	numOpsIn, numOpsOut int
}

// NumStages returns the number of stages.
func (p *Plan) NumStages() int { return len(p.Stages) }

// NumGroups returns the total number of fused groups.
func (p *Plan) NumGroups() int {
	return xslices.SumFunc(p.Stages, func(s Stage) int { return len(s.Groups) })
}

// NumOps returns the number of operators scheduled (after simplification).
func (p *Plan) NumOps() int { return p.numOpsOut }

// StateMemory returns the total memory of the model state, counting aliased
// storage once.
func (p *Plan) StateMemory() uintptr {
	var total uintptr
	for _, sig := range p.Signals {
		if !sig.IsView() {
			total += sig.Shape().Memory()
		}
	}
	return total
}

// Summary returns a one-line human-readable description of the plan.
func (p *Plan) Summary() string {
	return fmt.Sprintf("plan: %d operators (%d after simplification) fused into %d groups over %d stages, %s of state",
		p.numOpsIn, p.numOpsOut, p.NumGroups(), p.NumStages(), humanize.Bytes(uint64(p.StateMemory())))
}

// Optimize runs the full pipeline on a model: dependency analysis,
// simplification to a bounded fixpoint, signal ordering, stage planning and
// per-stage fusion. The model is treated as an immutable snapshot.
//
// It never returns a partial plan: on any error (cyclic model, broken
// strategy contract) the build aborts and the error -- stack-annotated,
// GraphCycleError/PlanningError retrievable with errors.As -- propagates
// unchanged to the model-build caller.
//
// Two calls over the same model produce identical plans.
func Optimize(m *model.Model, cfg Config) (*Plan, error) {
	ops := m.Operators()
	numOpsIn := len(ops)

	// Cycles abort the build before any planning is attempted.
	g, err := BuildDependencyGraph(ops)
	if err != nil {
		return nil, err
	}

	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	maxPasses := cfg.MaxSimplifyPasses
	if maxPasses <= 0 {
		maxPasses = len(ops)
	}
	simplified, changed := simplify(ops, rules, maxPasses)
	if changed {
		// Rewrites changed the graph; dependencies must be re-derived.
		g, err = BuildDependencyGraph(simplified)
		if err != nil {
			return nil, errors.Wrapf(err, "re-deriving dependencies after simplification")
		}
	}
	ops = simplified

	sorter := cfg.Sorter
	if sorter == nil {
		sorter = GroupedSorter{}
	}
	order, err := sorter.Sort(m.Signals(), ops)
	if err != nil {
		return nil, errors.Wrapf(err, "sorting signals")
	}
	if err = validateOrder(m.Signals(), order); err != nil {
		return nil, err
	}

	planner := cfg.Planner
	if planner == nil {
		planner = GreedyPlanner{}
	}
	stages, err := planner.Plan(g)
	if err != nil {
		return nil, err
	}
	if err = validateStages(g, stages); err != nil {
		return nil, err
	}

	plan := &Plan{
		Stages:    fuseStages(stages, g, order),
		Signals:   order,
		numOpsIn:  numOpsIn,
		numOpsOut: len(ops),
	}
	klog.V(1).Info(plan.Summary())
	return plan, nil
}
