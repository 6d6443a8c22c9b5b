// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/nengo/types/shapes"
)

// Model is the container a model builder fills with signals and operators,
// assigning declaration-order identifiers along the way. Once handed to the
// optimizer it is treated as an immutable snapshot.
type Model struct {
	signals []*Signal
	ops     []*Operator
}

// New creates an empty Model.
func New() *Model {
	return &Model{}
}

// Signals returns all declared signals, in declaration order. The returned
// slice must not be modified.
func (m *Model) Signals() []*Signal { return m.signals }

// Operators returns all declared operators, in declaration order. The
// returned slice must not be modified.
func (m *Model) Operators() []*Operator { return m.ops }

func (m *Model) addSignal(sig *Signal) *Signal {
	sig.id = len(m.signals)
	m.signals = append(m.signals, sig)
	return sig
}

func (m *Model) addOp(kind OpKind, attr any, reads, sets, incs []*Signal) *Operator {
	op := NewOperator(len(m.ops), kind, attr, reads, sets, incs)
	m.ops = append(m.ops, op)
	return op
}

// Signal declares a new state signal of the given shape, initialized by
// whatever operator sets it.
func (m *Model) Signal(name string, shape shapes.Shape) *Signal {
	validShape("Model.Signal", shape)
	return m.addSignal(&Signal{name: name, shape: shape})
}

// Constant declares a signal holding the build-time constant fill value in
// every element. Constants are never written by operators.
func (m *Model) Constant(name string, shape shapes.Shape, fill float64) *Signal {
	values := make([]float64, shape.Size())
	for ii := range values {
		values[ii] = fill
	}
	return m.ConstantValues(name, shape, values...)
}

// ConstantValues declares a constant signal with explicit per-element values.
// Values are cast to the dtype's precision (so what the simulation will
// actually see is what simplification rewrites compare against).
func (m *Model) ConstantValues(name string, shape shapes.Shape, values ...float64) *Signal {
	validShape("Model.ConstantValues", shape)
	if len(values) != shape.Size() {
		exceptions.Panicf("Model.ConstantValues(%q): shape %s takes %d values, got %d",
			name, shape, shape.Size(), len(values))
	}
	return m.addSignal(&Signal{
		name:    name,
		shape:   shape,
		initial: shape.DType.CastSlice(values),
	})
}

// View declares a signal aliasing base's storage, starting at the given
// element offset. The view must fit within base.
func (m *Model) View(base *Signal, name string, shape shapes.Shape, offset int) *Signal {
	validShape("Model.View", shape)
	if shape.DType != base.DType() {
		exceptions.Panicf("Model.View(%q): dtype %s differs from base %s", name, shape.DType, base)
	}
	if offset < 0 || offset+shape.Size() > base.Size() {
		exceptions.Panicf("Model.View(%q): range [%d:%d) out of bounds of base %s",
			name, offset, offset+shape.Size(), base)
	}
	view := m.addSignal(&Signal{name: name, shape: shape, base: base, offset: offset})
	view.initial = sliceInitial(base, offset, shape.Size())
	return view
}

func sliceInitial(base *Signal, offset, size int) []float64 {
	if base.initial == nil {
		return nil
	}
	return base.initial[offset : offset+size]
}

// Observe marks a signal as externally read -- a probe or model output.
// Simplification rewrites never delete the producers of an observed signal.
func (m *Model) Observe(sig *Signal) {
	sig.Base().observed = true
}

// Reset declares an operator that overwrites dst with value on every step.
func (m *Model) Reset(dst *Signal, value float64) *Operator {
	return m.addOp(KindReset, ResetAttr{Value: dst.DType().Cast(value)},
		nil, []*Signal{dst}, nil)
}

// Copy declares dst = src, or dst += src when incDst is set. Sizes and dtypes
// must match.
func (m *Model) Copy(src, dst *Signal, incDst bool) *Operator {
	if src.DType() != dst.DType() || src.Size() != dst.Size() {
		exceptions.Panicf("Model.Copy: src %s and dst %s are not element-compatible", src, dst)
	}
	sets, incs := []*Signal{dst}, []*Signal(nil)
	if incDst {
		sets, incs = nil, []*Signal{dst}
	}
	return m.addOp(KindCopy, CopyAttr{IncDst: incDst}, []*Signal{src}, sets, incs)
}

// ElementwiseInc declares dst += a * x elementwise. a may be a scalar or
// match dst's size; x must match dst's size; all dtypes must agree.
func (m *Model) ElementwiseInc(a, x, dst *Signal) *Operator {
	if a.DType() != dst.DType() || x.DType() != dst.DType() {
		exceptions.Panicf("Model.ElementwiseInc: dtypes of a=%s, x=%s, dst=%s must agree", a, x, dst)
	}
	if x.Size() != dst.Size() || (a.Size() != 1 && a.Size() != dst.Size()) {
		exceptions.Panicf("Model.ElementwiseInc: sizes of a=%s, x=%s incompatible with dst=%s", a, x, dst)
	}
	return m.addOp(KindElementwiseInc, nil, []*Signal{a, x}, nil, []*Signal{dst})
}

// DotInc declares dst += A · x, with A of shape [m, n], x of size n and dst
// of size m.
func (m *Model) DotInc(matA, x, dst *Signal) *Operator {
	if matA.DType() != dst.DType() || x.DType() != dst.DType() {
		exceptions.Panicf("Model.DotInc: dtypes of A=%s, x=%s, dst=%s must agree", matA, x, dst)
	}
	if matA.Shape().Rank() != 2 ||
		matA.Shape().Dim(0) != dst.Size() || matA.Shape().Dim(1) != x.Size() {
		exceptions.Panicf("Model.DotInc: A=%s incompatible with x=%s, dst=%s", matA, x, dst)
	}
	return m.addOp(KindDotInc, nil, []*Signal{matA, x}, nil, []*Signal{dst})
}

// NeuronStep declares one step of the named neuron model: it reads the input
// current and the previous state, and sets the new state and the spike
// output.
func (m *Model) NeuronStep(neuronModel string, input, state, output *Signal) *Operator {
	return m.addOp(KindNeuronStep, NeuronAttr{Model: neuronModel},
		[]*Signal{input, state}, []*Signal{state, output}, nil)
}

// ProcessStep declares one step of an opaque user process touching arbitrary
// signals. Process steps are scheduled like any operator but never fused.
func (m *Model) ProcessStep(name string, reads, sets, incs []*Signal) *Operator {
	return m.addOp(KindProcessStep, ProcessAttr{Name: name}, reads, sets, incs)
}

// AddOperator declares an operator of a custom registered kind. See
// RegisterKind.
func (m *Model) AddOperator(kind OpKind, attr any, reads, sets, incs []*Signal) *Operator {
	return m.addOp(kind, attr, reads, sets, incs)
}
