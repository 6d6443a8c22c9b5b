// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"github.com/gomlx/exceptions"
)

// OpKind enumerates the kinds of operators the simulator knows how to
// execute. It is a closed tagged enumeration: per-kind behavior lives in the
// KindInfo registration table (see RegisterKind), not in per-kind types, so
// dispatch is a table lookup rather than a virtual-call chain.
type OpKind int

//go:generate go tool enumer -type=OpKind -trimprefix=Kind opkind.go

const (
	KindInvalid OpKind = iota

	// KindReset overwrites its target with a constant value each step.
	KindReset

	// KindCopy copies (or, with CopyAttr.IncDst, accumulates) its source
	// into its destination.
	KindCopy

	// KindElementwiseInc computes dst += a * x elementwise.
	KindElementwiseInc

	// KindDotInc computes dst += A · x.
	KindDotInc

	// KindNeuronStep advances a population's neuron state one step.
	KindNeuronStep

	// KindProcessStep runs an opaque user process with arbitrary
	// read/set/increment signals. Never fused.
	KindProcessStep
)

// nextCustomKind is where NewKind starts handing out kinds for custom
// operators.
var nextCustomKind = KindProcessStep + 1

// NewKind reserves a fresh OpKind value for a custom operator kind. The
// returned kind must be registered with RegisterKind before any operator of
// the kind is constructed. Custom kinds stringify as "OpKind(N)".
func NewKind() OpKind {
	k := nextCustomKind
	nextCustomKind++
	return k
}

// KindInfo carries the static metadata of an operator kind: its arity, the
// numeric properties the optimizer must respect, and the fusability rule the
// merger consults.
type KindInfo struct {
	Kind OpKind

	// NumReads, NumSets and NumIncs are the exact number of signals an
	// operator of this kind reads, fully overwrites and accumulates into.
	// -1 means any number.
	NumReads, NumSets, NumIncs int

	// CommutativeIncs indicates whether increments produced by operators of
	// this kind may be reordered without changing the floating-point result.
	// When false the optimizer pins the declaration order of increments.
	CommutativeIncs bool

	// Fusable reports whether op b may join a batched group started by op a.
	// Both operators are guaranteed to be of this kind. A nil Fusable means
	// operators of this kind are never merged.
	Fusable func(a, b *Operator) bool

	// Builder is the optional build capability of custom kinds: the external
	// tensor-graph builder calls it to emit the batched computation of a
	// fused group. The optimizer only carries it through.
	Builder Builder
}

// Builder is implemented by custom operator kinds that emit their own batched
// computation. It is consumed by the external tensor-graph builder, never by
// the optimizer.
type Builder interface {
	// Build emits the computation for a fused group of operators, given in
	// their original declaration order.
	Build(ops []*Operator) error
}

// PreBuilder is an optional capability: called once before any group of the
// kind is built.
type PreBuilder interface {
	PreBuild(ops []*Operator) error
}

// PostBuilder is an optional capability: called once after every group of the
// kind was built.
type PostBuilder interface {
	PostBuild(ops []*Operator) error
}

var kindRegistry = map[OpKind]KindInfo{}

// RegisterKind registers the metadata of an operator kind. Built-in kinds are
// registered at package initialization; custom kinds (values >=
// KindProcessStep+1) may be registered by external model builders.
// Registering the same kind twice panics.
func RegisterKind(info KindInfo) {
	if _, found := kindRegistry[info.Kind]; found {
		exceptions.Panicf("model.RegisterKind(%s): kind already registered", info.Kind)
	}
	kindRegistry[info.Kind] = info
}

// Info returns the registered metadata for the kind. It panics for
// unregistered kinds -- using one is a bug in the model builder.
func (k OpKind) Info() KindInfo {
	info, found := kindRegistry[k]
	if !found {
		exceptions.Panicf("OpKind(%s).Info(): kind not registered", k)
	}
	return info
}

func init() {
	RegisterKind(KindInfo{
		Kind:     KindReset,
		NumReads: 0, NumSets: 1, NumIncs: 0,
		CommutativeIncs: true,
		Fusable: func(a, b *Operator) bool {
			// Resets batch when they write the same constant at the same dtype.
			return a.Sets()[0].DType() == b.Sets()[0].DType() &&
				a.Attr().(ResetAttr).Value == b.Attr().(ResetAttr).Value
		},
	})
	RegisterKind(KindInfo{
		Kind:     KindCopy,
		NumReads: 1, NumSets: -1, NumIncs: -1, // dst is in sets or incs depending on CopyAttr.IncDst.
		CommutativeIncs: false,
		Fusable: func(a, b *Operator) bool {
			if a.Attr().(CopyAttr).IncDst != b.Attr().(CopyAttr).IncDst {
				return false
			}
			return a.Reads()[0].DType() == b.Reads()[0].DType() &&
				a.Dst().DType() == b.Dst().DType()
		},
	})
	RegisterKind(KindInfo{
		Kind:     KindElementwiseInc,
		NumReads: 2, NumSets: 0, NumIncs: 1,
		CommutativeIncs: false, // Floating-point sums are order-sensitive.
		Fusable: func(a, b *Operator) bool {
			return a.Reads()[0].DType() == b.Reads()[0].DType() &&
				a.Incs()[0].DType() == b.Incs()[0].DType()
		},
	})
	RegisterKind(KindInfo{
		Kind:     KindDotInc,
		NumReads: 2, NumSets: 0, NumIncs: 1,
		CommutativeIncs: false,
		Fusable: func(a, b *Operator) bool {
			// Batched matmul needs identical operand shapes per group member.
			return a.Reads()[0].Shape().Equal(b.Reads()[0].Shape()) &&
				a.Reads()[1].Shape().Equal(b.Reads()[1].Shape())
		},
	})
	RegisterKind(KindInfo{
		Kind:     KindNeuronStep,
		NumReads: 2, NumSets: 2, NumIncs: 0,
		CommutativeIncs: true,
		Fusable: func(a, b *Operator) bool {
			return a.Attr().(NeuronAttr) == b.Attr().(NeuronAttr) &&
				a.Reads()[0].DType() == b.Reads()[0].DType()
		},
	})
	RegisterKind(KindInfo{
		Kind:     KindProcessStep,
		NumReads: -1, NumSets: -1, NumIncs: -1,
		CommutativeIncs: false,
		Fusable:         nil, // Opaque user code, never merged.
	})
}
