// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"fmt"
	"sort"

	"github.com/gomlx/exceptions"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/shapes"
	"github.com/gomlx/nengo/types/xslices"
)

// Slot describes where one member operator's output lives inside a fused
// group's batched buffer.
type Slot struct {
	// Index is the member's position within the group.
	Index int
	// Offset is the element offset of the member's output in the batched
	// buffer.
	Offset int
	// Length is the member's output size in elements. Zero for operators
	// with no outputs.
	Length int
}

// OpGroup is a set of same-kind, shape-compatible operators merged into one
// batched operation. Members are kept in original declaration order, so an
// accumulation-order-sensitive kind produces bit-identical results to running
// the members separately in their original relative order.
//
// The external tensor-graph builder emits one batched computation per group,
// using Slots to address each member's output.
type OpGroup struct {
	Kind model.OpKind

	// Ops are the member operators, in declaration order.
	Ops []*model.Operator

	// Reads, Sets and Incs are the members' signal lists concatenated in
	// member order.
	Reads, Sets, Incs []*model.Signal

	// Slots gives the batch-slot layout, one per member.
	Slots []Slot
}

// Size returns the total number of output elements of the batched buffer.
func (g *OpGroup) Size() int {
	if len(g.Slots) == 0 {
		return 0
	}
	last := xslices.Last(g.Slots)
	return last.Offset + last.Length
}

// Shape returns the shape of the group's batched output buffer: a flat vector
// of the output dtype. It implements shapes.HasShape.
func (g *OpGroup) Shape() shapes.Shape {
	size := g.Size()
	if size == 0 {
		return shapes.Invalid()
	}
	return shapes.Make(g.Ops[0].Dst().DType(), size)
}

// Builder returns the kind's build capability, or nil. See model.Builder.
func (g *OpGroup) Builder() model.Builder {
	return g.Kind.Info().Builder
}

// String implements fmt.Stringer.
func (g *OpGroup) String() string {
	return fmt.Sprintf("%s×%d", g.Kind, len(g.Ops))
}

// Stage is one execution rank of the plan: its groups carry no ordering
// dependency among themselves and may execute in any order, or concurrently
// if the downstream runtime supports it.
type Stage struct {
	Groups []*OpGroup
}

// NumOps returns the number of (pre-fusion) operators in the stage.
func (s Stage) NumOps() int {
	return xslices.SumFunc(s.Groups, func(g *OpGroup) int { return len(g.Ops) })
}

// fuseStages merges, within each planned stage, runs of same-kind operators
// the kind's Fusable predicate accepts. Members keep declaration order;
// groups within a stage are ordered by their outputs' position in the sorted
// signal order, so groups touching neighboring memory stay adjacent.
func fuseStages(planned [][]*model.Operator, g *DepGraph, order []*model.Signal) []Stage {
	posOf := make(map[*model.Operator]int, g.NumOps())
	for pos, op := range g.Ops() {
		posOf[op] = pos
	}
	rank := make(map[int]int, len(order)) // Signal id → memory position.
	for at, sig := range order {
		rank[sig.ID()] = at
	}

	stages := make([]Stage, 0, len(planned))
	for _, stageOps := range planned {
		var groups []*OpGroup
		for start := 0; start < len(stageOps); {
			rep := stageOps[start]
			info := rep.Kind().Info()
			end := start + 1
			for end < len(stageOps) &&
				stageOps[end].Kind() == rep.Kind() &&
				info.Fusable != nil && info.Fusable(rep, stageOps[end]) {
				end++
			}
			groups = append(groups, newGroup(stageOps[start:end], posOf, g))
			start = end
		}
		sort.SliceStable(groups, func(i, j int) bool {
			ri, rj := groupRank(groups[i], rank), groupRank(groups[j], rank)
			if ri != rj {
				return ri < rj
			}
			return groups[i].Ops[0].ID() < groups[j].Ops[0].ID()
		})
		stages = append(stages, Stage{Groups: groups})
	}
	return stages
}

// newGroup assembles one fused group, preserving member declaration order.
func newGroup(members []*model.Operator, posOf map[*model.Operator]int, g *DepGraph) *OpGroup {
	// Planned stages are sorted by (kind, id); members arrive in declaration
	// order. Keep it explicit, the increment order depends on it.
	ops := make([]*model.Operator, len(members))
	copy(ops, members)
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID() < ops[j].ID() })

	group := &OpGroup{Kind: ops[0].Kind(), Ops: ops}
	offset := 0
	for idx, op := range ops {
		for jdx := idx + 1; jdx < len(ops); jdx++ {
			if g.HasEdge(posOf[op], posOf[ops[jdx]]) || g.HasEdge(posOf[ops[jdx]], posOf[op]) {
				exceptions.Panicf("optimizer: fusing dependent operators %s and %s -- planner produced an invalid stage",
					op, ops[jdx])
			}
		}
		group.Reads = append(group.Reads, op.Reads()...)
		group.Sets = append(group.Sets, op.Sets()...)
		group.Incs = append(group.Incs, op.Incs()...)
		length := 0
		if len(op.Sets())+len(op.Incs()) > 0 {
			length = op.Dst().Size()
		}
		group.Slots = append(group.Slots, Slot{Index: idx, Offset: offset, Length: length})
		offset += length
	}
	return group
}

// groupRank is the earliest memory position of any of the group's outputs.
func groupRank(g *OpGroup, rank map[int]int) int {
	best := int(^uint(0) >> 1)
	for _, sigs := range [][]*model.Signal{g.Sets, g.Incs} {
		for _, sig := range sigs {
			if r, found := rank[sig.ID()]; found && r < best {
				best = r
			}
		}
	}
	return best
}
