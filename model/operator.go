// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/nengo/types/xslices"
)

// Operator is one atomic computation step of the simulation. It declares the
// signals it reads, the signals it sets (fully overwrites) and the signals it
// increments (accumulates into); the optimizer derives all scheduling from
// these three lists. Operators are immutable once constructed.
type Operator struct {
	id   int
	kind OpKind
	attr any

	reads, sets, incs []*Signal
}

// Per-kind operator attributes. The attribute payload of an Operator is
// interpreted according to its kind.
type (
	// ResetAttr is the attribute of KindReset operators.
	ResetAttr struct {
		Value float64
	}

	// CopyAttr is the attribute of KindCopy operators. IncDst selects
	// accumulate-into over overwrite semantics for the destination.
	CopyAttr struct {
		IncDst bool
	}

	// NeuronAttr is the attribute of KindNeuronStep operators, naming the
	// neuron model to advance (e.g. "lif", "relu").
	NeuronAttr struct {
		Model string
	}

	// ProcessAttr is the attribute of KindProcessStep operators.
	ProcessAttr struct {
		Name string
	}
)

// NewOperator constructs an operator of the given kind. The id establishes
// the operator's declaration order, the deterministic tie-break used
// throughout the optimizer; the external model builder (or Model) must hand
// out ids in build order and never reuse one, except to replace an operator
// by an equivalent one.
//
// It panics if the signal counts don't match the kind's registered arity --
// that is a bug in the caller, not a recoverable condition.
//
// Prefer the typed constructors on Model (Model.Copy, Model.Reset, ...) when
// building models by hand.
func NewOperator(id int, kind OpKind, attr any, reads, sets, incs []*Signal) *Operator {
	info := kind.Info()
	checkArity(kind, "reads", info.NumReads, len(reads))
	checkArity(kind, "sets", info.NumSets, len(sets))
	checkArity(kind, "incs", info.NumIncs, len(incs))
	for _, written := range [][]*Signal{sets, incs} {
		for _, sig := range written {
			if sig.IsConstant() {
				exceptions.Panicf("model.NewOperator(%s): cannot write to constant signal %s", kind, sig)
			}
		}
	}
	return &Operator{
		id:    id,
		kind:  kind,
		attr:  attr,
		reads: slices.Clone(reads),
		sets:  slices.Clone(sets),
		incs:  slices.Clone(incs),
	}
}

func checkArity(kind OpKind, what string, want, got int) {
	if want >= 0 && got != want {
		exceptions.Panicf("model.NewOperator(%s): kind takes %d %s, got %d", kind, want, what, got)
	}
}

// ID returns the operator's declaration-order identifier.
func (op *Operator) ID() int { return op.id }

// Kind of the operator.
func (op *Operator) Kind() OpKind { return op.kind }

// Attr returns the kind-specific attribute payload (e.g. CopyAttr for
// KindCopy).
func (op *Operator) Attr() any { return op.attr }

// Reads returns the signals the operator reads, in declaration order. The
// returned slice must not be modified.
func (op *Operator) Reads() []*Signal { return op.reads }

// Sets returns the signals the operator fully overwrites. The returned slice
// must not be modified.
func (op *Operator) Sets() []*Signal { return op.sets }

// Incs returns the signals the operator accumulates into. The returned slice
// must not be modified.
func (op *Operator) Incs() []*Signal { return op.incs }

// Signals returns all signals the operator touches: reads, then sets, then
// incs.
func (op *Operator) Signals() []*Signal {
	all := make([]*Signal, 0, len(op.reads)+len(op.sets)+len(op.incs))
	all = append(all, op.reads...)
	all = append(all, op.sets...)
	all = append(all, op.incs...)
	return all
}

// Dst returns the operator's single output signal: its first set, or first
// increment when it has no sets (e.g. an accumulating copy). Panics if the
// operator has no outputs.
func (op *Operator) Dst() *Signal {
	if len(op.sets) > 0 {
		return op.sets[0]
	}
	if len(op.incs) > 0 {
		return op.incs[0]
	}
	exceptions.Panicf("Operator.Dst(): %s has no outputs", op)
	return nil
}

// String implements fmt.Stringer.
func (op *Operator) String() string {
	var parts []string
	names := func(sigs []*Signal) string {
		return strings.Join(xslices.Map(sigs, (*Signal).Name), ",")
	}
	if len(op.reads) > 0 {
		parts = append(parts, "reads=["+names(op.reads)+"]")
	}
	if len(op.sets) > 0 {
		parts = append(parts, "sets=["+names(op.sets)+"]")
	}
	if len(op.incs) > 0 {
		parts = append(parts, "incs=["+names(op.incs)+"]")
	}
	return fmt.Sprintf("%s#%d(%s)", op.kind, op.id, strings.Join(parts, ", "))
}
