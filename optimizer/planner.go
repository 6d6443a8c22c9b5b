// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/nengo/model"
)

// Planner assigns every operator of a dependency graph to a stage: stages
// execute sequentially, and the operators within one stage carry no ordering
// dependency among themselves -- they are the unit of exploitable parallelism
// (and fusion) for the downstream runtime.
//
// Every planner must guarantee stage(A) < stage(B) for every dependency edge
// A→B, schedule every operator exactly once, and be deterministic: re-planning
// a graph staged by its own output reproduces the stages.
type Planner interface {
	// Plan returns the stages in execution order, each a list of operators
	// sorted by (kind, declaration order). It returns a PlanningError
	// (stack-annotated) if no valid assignment is found within bounded
	// effort -- which for an acyclic graph indicates an internal bug.
	Plan(g *DepGraph) ([][]*model.Operator, error)
}

// GreedyPlanner is the default planner: Kahn layering. It repeatedly extracts
// the set of operators whose dependencies are all scheduled in earlier
// stages, producing the minimal number of stages with each operator placed as
// early as possible.
type GreedyPlanner struct{}

// Plan implements Planner.
func (GreedyPlanner) Plan(g *DepGraph) ([][]*model.Operator, error) {
	n := g.NumOps()
	pending := make([]int, n) // Unscheduled direct dependencies per op.
	frontier := make([]int, 0, n)
	for pos := 0; pos < n; pos++ {
		pending[pos] = len(g.Back(pos))
		if pending[pos] == 0 {
			frontier = append(frontier, pos)
		}
	}

	var stages [][]*model.Operator
	scheduled := 0
	for scheduled < n {
		if len(frontier) == 0 || len(stages) > n {
			// Unreachable for graphs accepted by BuildDependencyGraph; kept
			// as a termination guarantee.
			return nil, errors.WithStack(&PlanningError{Unscheduled: n - scheduled})
		}
		stage := sortStage(g, frontier)
		scheduled += len(frontier)
		var next []int
		for _, pos := range frontier {
			for _, to := range g.Fwd(pos) {
				pending[to]--
				if pending[to] == 0 {
					next = append(next, to)
				}
			}
		}
		frontier = next
		stages = append(stages, stage)
	}
	klog.V(2).Infof("optimizer: greedy planner produced %d stages for %d operators", len(stages), n)
	return stages, nil
}

// TransitivePlanner stages each operator at its longest dependency-path depth
// (derived from the transitive ordering of the graph). For acyclic graphs the
// result coincides with greedy layering on depth, but it is computed from the
// full predecessor ordering rather than frontier extraction, and serves as a
// cross-check strategy.
type TransitivePlanner struct{}

// Plan implements Planner.
func (TransitivePlanner) Plan(g *DepGraph) ([][]*model.Operator, error) {
	n := g.NumOps()
	topo, err := topoOrder(g)
	if err != nil {
		return nil, err
	}
	depth := make([]int, n)
	maxDepth := -1
	for _, pos := range topo {
		for _, from := range g.Back(pos) {
			if depth[from]+1 > depth[pos] {
				depth[pos] = depth[from] + 1
			}
		}
		if depth[pos] > maxDepth {
			maxDepth = depth[pos]
		}
	}
	if n == 0 {
		return nil, nil
	}
	byDepth := make([][]int, maxDepth+1)
	for pos := 0; pos < n; pos++ {
		byDepth[depth[pos]] = append(byDepth[depth[pos]], pos)
	}
	stages := make([][]*model.Operator, 0, maxDepth+1)
	for _, layer := range byDepth {
		stages = append(stages, sortStage(g, layer))
	}
	return stages, nil
}

// SequentialPlanner schedules one operator per stage, in topological order.
// It is the no-fusion baseline: useful to isolate optimizer behavior when
// debugging numeric differences.
type SequentialPlanner struct{}

// Plan implements Planner.
func (SequentialPlanner) Plan(g *DepGraph) ([][]*model.Operator, error) {
	topo, err := topoOrder(g)
	if err != nil {
		return nil, err
	}
	stages := make([][]*model.Operator, 0, len(topo))
	for _, pos := range topo {
		stages = append(stages, []*model.Operator{g.Ops()[pos]})
	}
	return stages, nil
}

// topoOrder returns a topological order of the graph, tie-broken by
// declaration order. DepGraph is acyclic by construction; the PlanningError
// path is the defensive non-termination check.
func topoOrder(g *DepGraph) ([]int, error) {
	n := g.NumOps()
	pending := make([]int, n)
	var ready []int
	for pos := 0; pos < n; pos++ {
		pending[pos] = len(g.Back(pos))
		if pending[pos] == 0 {
			ready = append(ready, pos)
		}
	}
	sort.Ints(ready)
	order := make([]int, 0, n)
	for len(ready) > 0 {
		pos := ready[0]
		ready = ready[1:]
		order = append(order, pos)
		for _, to := range g.Fwd(pos) {
			pending[to]--
			if pending[to] == 0 {
				ready = insertSorted(ready, to)
			}
		}
	}
	if len(order) != n {
		return nil, errors.WithStack(&PlanningError{Unscheduled: n - len(order)})
	}
	return order, nil
}

func insertSorted(s []int, v int) []int {
	at := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}

// sortStage orders one stage's operators by (kind, declaration order), the
// deterministic grouping the fuser relies on.
func sortStage(g *DepGraph, layer []int) []*model.Operator {
	ops := make([]*model.Operator, 0, len(layer))
	for _, pos := range layer {
		ops = append(ops, g.Ops()[pos])
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Kind() != ops[j].Kind() {
			return ops[i].Kind() < ops[j].Kind()
		}
		return ops[i].ID() < ops[j].ID()
	})
	return ops
}

// validateStages checks the stage-ordering invariant: for every dependency
// edge A→B, stage(A) < stage(B), every operator scheduled exactly once. Run
// by Optimize on whatever planner strategy was configured.
func validateStages(g *DepGraph, stages [][]*model.Operator) error {
	stageOf := make(map[int]int, g.NumOps()) // Op position → stage.
	posOf := make(map[*model.Operator]int, g.NumOps())
	for pos, op := range g.Ops() {
		posOf[op] = pos
	}
	total := 0
	for stageIdx, stage := range stages {
		for _, op := range stage {
			pos, known := posOf[op]
			if !known {
				return errors.Errorf("planner scheduled operator %s which is not part of the graph", op)
			}
			if _, dup := stageOf[pos]; dup {
				return errors.Errorf("planner scheduled operator %s twice", op)
			}
			stageOf[pos] = stageIdx
			total++
		}
	}
	if total != g.NumOps() {
		return errors.WithStack(&PlanningError{Unscheduled: g.NumOps() - total})
	}
	for from := 0; from < g.NumOps(); from++ {
		for _, to := range g.Fwd(from) {
			if stageOf[from] >= stageOf[to] {
				return errors.Errorf("planner broke the stage-ordering invariant: %s (stage %d) must run before %s (stage %d)",
					g.Ops()[from], stageOf[from], g.Ops()[to], stageOf[to])
			}
		}
	}
	return nil
}
