// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizer transforms a model's operator graph into an ordered,
// fused execution plan.
//
// The pipeline is: dependency analysis (BuildDependencyGraph) → semantic
// simplification (Rule) → signal ordering (Sorter) → stage assignment
// (Planner) → fusion of same-kind operators per stage. Optimize runs the
// whole pipeline; the resulting Plan is frozen and handed to an external
// tensor-graph builder, which owns actual batched execution.
//
// The optimizer is single-threaded, deterministic, run-once-per-build logic:
// two runs over the same model produce identical plans. All tie-breaks fall
// back to declaration order; map iterations go through sorted keys.
package optimizer

import (
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/xslices"
)

// DepGraph is the directed acyclic dependency graph over a model's operators:
// an edge A→B means B must execute after A. BuildDependencyGraph is the only
// constructor; a DepGraph is immutable and guaranteed acyclic.
//
// Operators are identified by their position in Ops() (declaration order).
type DepGraph struct {
	ops       []*model.Operator
	fwd, back [][]int
	reasons   map[[2]int][]*model.Signal
	numEdges  int
}

// signalUse records one operator touching (a view of) a base signal.
type signalUse struct {
	op  int // Position in ops.
	sig *model.Signal
}

// signalUsage aggregates all uses of one base signal, each list in
// declaration order.
type signalUsage struct {
	base              *model.Signal
	sets, incs, reads []signalUse
}

// BuildDependencyGraph computes the dependency edges induced by the
// operators' read/set/increment declarations:
//
//   - a signal's setters execute before its incrementers, which execute
//     before its readers, regardless of declaration order;
//   - setters of overlapping ranges are chained in declaration order (the
//     later write wins, but the order is pinned);
//   - incrementers of overlapping ranges are chained in declaration order,
//     pinning the floating-point summation order for reproducibility.
//
// Uses are resolved through view bases: operators touching disjoint ranges of
// one base are independent. An operator both reading and setting a signal
// (a state update) induces no self edge.
//
// It returns a GraphCycleError (stack-annotated, retrieve with errors.As) if
// the induced graph is cyclic -- the model is unbuildable.
func BuildDependencyGraph(ops []*model.Operator) (*DepGraph, error) {
	g := &DepGraph{
		ops:     ops,
		fwd:     make([][]int, len(ops)),
		back:    make([][]int, len(ops)),
		reasons: make(map[[2]int][]*model.Signal),
	}

	usages := make(map[int]*signalUsage)
	usageOf := func(sig *model.Signal) *signalUsage {
		base := sig.Base()
		u := usages[base.ID()]
		if u == nil {
			u = &signalUsage{base: base}
			usages[base.ID()] = u
		}
		return u
	}
	for pos, op := range ops {
		for _, sig := range op.Reads() {
			u := usageOf(sig)
			u.reads = append(u.reads, signalUse{pos, sig})
		}
		for _, sig := range op.Sets() {
			u := usageOf(sig)
			u.sets = append(u.sets, signalUse{pos, sig})
		}
		for _, sig := range op.Incs() {
			u := usageOf(sig)
			u.incs = append(u.incs, signalUse{pos, sig})
		}
	}

	for _, baseID := range xslices.SortedKeys(usages) {
		u := usages[baseID]
		// Writers (sets then incs) are chained pairwise in declaration order.
		writers := append(append([]signalUse{}, u.sets...), u.incs...)
		for ii := 0; ii < len(writers); ii++ {
			for jj := ii + 1; jj < len(writers); jj++ {
				g.addEdge(writers[ii], writers[jj])
			}
		}
		// Every writer happens-before every reader.
		for _, w := range writers {
			for _, r := range u.reads {
				g.addEdge(w, r)
			}
		}
	}

	for from := range g.fwd {
		sort.Ints(g.fwd[from])
		sort.Ints(g.back[from])
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	klog.V(2).Infof("optimizer: dependency graph over %d operators has %d edges", len(ops), g.numEdges)
	return g, nil
}

// addEdge records from→to, keyed on overlapping signal ranges. Disjoint
// ranges and self references add nothing.
func (g *DepGraph) addEdge(from, to signalUse) {
	if from.op == to.op || !from.sig.Overlaps(to.sig) {
		return
	}
	key := [2]int{from.op, to.op}
	sigs, found := g.reasons[key]
	if !found {
		g.fwd[from.op] = append(g.fwd[from.op], to.op)
		g.back[to.op] = append(g.back[to.op], from.op)
		g.numEdges++
	}
	base := from.sig.Base()
	for _, s := range sigs {
		if s == base {
			return
		}
	}
	g.reasons[key] = append(sigs, base)
}

// checkAcyclic runs Kahn's algorithm; the operators it cannot consume form
// the cycle reported in GraphCycleError.
func (g *DepGraph) checkAcyclic() error {
	n := len(g.ops)
	indegree := make([]int, n)
	for _, targets := range g.fwd {
		for _, to := range targets {
			indegree[to]++
		}
	}
	queue := make([]int, 0, n)
	for pos := 0; pos < n; pos++ {
		if indegree[pos] == 0 {
			queue = append(queue, pos)
		}
	}
	done := 0
	for len(queue) > 0 {
		pos := queue[0]
		queue = queue[1:]
		done++
		for _, to := range g.fwd[pos] {
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	if done == n {
		return nil
	}

	cycleErr := &GraphCycleError{}
	leftover := make(map[int]bool)
	for pos := 0; pos < n; pos++ {
		if indegree[pos] > 0 {
			leftover[pos] = true
			cycleErr.Ops = append(cycleErr.Ops, g.ops[pos].String())
		}
	}
	seen := make(map[string]bool)
	for _, from := range xslices.SortedKeys(leftover) {
		for _, to := range g.fwd[from] {
			if !leftover[to] {
				continue
			}
			for _, sig := range g.reasons[[2]int{from, to}] {
				if !seen[sig.Name()] {
					seen[sig.Name()] = true
					cycleErr.Signals = append(cycleErr.Signals, sig.Name())
				}
			}
		}
	}
	return errors.WithStack(cycleErr)
}

// NumOps returns the number of operators in the graph.
func (g *DepGraph) NumOps() int { return len(g.ops) }

// Ops returns the operators, in declaration order. The returned slice must
// not be modified.
func (g *DepGraph) Ops() []*model.Operator { return g.ops }

// Fwd returns the positions of the operators that must execute after op pos.
// Sorted ascending; must not be modified.
func (g *DepGraph) Fwd(pos int) []int { return g.fwd[pos] }

// Back returns the positions of the operators that must execute before op
// pos. Sorted ascending; must not be modified.
func (g *DepGraph) Back(pos int) []int { return g.back[pos] }

// HasEdge returns whether to depends directly on from.
func (g *DepGraph) HasEdge(from, to int) bool {
	_, found := g.reasons[[2]int{from, to}]
	return found
}

// Reasons returns the base signals that induced the edge from→to, or nil if
// there is no such edge. This recovers the read/set/increment relation the
// edge was derived from. Must not be modified.
func (g *DepGraph) Reasons(from, to int) []*model.Signal {
	return g.reasons[[2]int{from, to}]
}

// NumEdges returns the number of distinct dependency edges.
func (g *DepGraph) NumEdges() int { return g.numEdges }
