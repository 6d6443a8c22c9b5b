// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package model holds the symbolic description of a simulation: the Signal
// values holding state and the Operator computation steps that read, set and
// increment them.
//
// The model is produced once per build by an external model-building
// collaborator and handed to the optimizer package as an immutable snapshot:
// Signals and Operators never change after construction.
//
// Signals may alias each other only through explicitly declared views
// (Model.View): a view shares the base signal's storage at a given element
// offset. Undeclared aliasing is not representable.
package model

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/nengo/types/shapes"
)

// Signal is a named, typed, shaped block of simulation state -- for example
// a population's voltage buffer or a connection's weight matrix.
//
// Create signals with Model.Signal, Model.Constant or Model.View. A Signal is
// immutable once created.
type Signal struct {
	id     int
	name   string
	shape  shapes.Shape
	base   *Signal
	offset int // Element offset into base, for views.

	initial  []float64 // Non-nil only for constants, already cast to the dtype's precision.
	observed bool
}

// ID returns the signal's unique identifier. Identifiers are assigned in
// declaration order, which is the deterministic tie-break used throughout the
// optimizer.
func (s *Signal) ID() int { return s.id }

// Name returns the signal's name. Names are only used for diagnostics and
// need not be unique.
func (s *Signal) Name() string { return s.name }

// Shape of the signal's buffer.
func (s *Signal) Shape() shapes.Shape { return s.shape }

// DType of the signal's buffer elements.
func (s *Signal) DType() shapes.DType { return s.shape.DType }

// Size returns the number of elements in the signal's buffer.
func (s *Signal) Size() int { return s.shape.Size() }

// IsView returns whether the signal aliases (a slice of) another signal's
// storage.
func (s *Signal) IsView() bool { return s.base != nil }

// Base returns the root signal whose storage this signal occupies. For
// non-views it returns the signal itself; for views of views it resolves to
// the root.
func (s *Signal) Base() *Signal {
	b := s
	for b.base != nil {
		b = b.base
	}
	return b
}

// Offset returns the signal's element offset into Base's storage.
func (s *Signal) Offset() int {
	off := 0
	for b := s; b.base != nil; b = b.base {
		off += b.offset
	}
	return off
}

// Range returns the half-open element range [start, end) the signal occupies
// within Base's storage.
func (s *Signal) Range() (start, end int) {
	start = s.Offset()
	return start, start + s.Size()
}

// Overlaps returns whether the two signals can touch the same memory: they
// share a base and their element ranges intersect.
func (s *Signal) Overlaps(other *Signal) bool {
	if s.Base() != other.Base() {
		return false
	}
	aStart, aEnd := s.Range()
	bStart, bEnd := other.Range()
	return aStart < bEnd && bStart < aEnd
}

// IsConstant returns whether the signal holds a build-time constant value.
// Constants are never written by operators.
func (s *Signal) IsConstant() bool { return s.initial != nil }

// Initial returns the constant initial values, already cast to the signal's
// dtype precision, or nil for non-constants. The returned slice must not be
// modified.
func (s *Signal) Initial() []float64 { return s.initial }

// IsAllConst returns whether the signal is a constant with every element
// equal to v (compared at the dtype's precision).
func (s *Signal) IsAllConst(v float64) bool {
	if s.initial == nil {
		return false
	}
	want := s.DType().Cast(v)
	for _, e := range s.initial {
		if e != want {
			return false
		}
	}
	return true
}

// Observed returns whether the signal was marked as externally read (a probe
// or model output). Simplification rewrites never delete the producers of an
// observed signal.
func (s *Signal) Observed() bool { return s.Base().observed }

// String implements fmt.Stringer.
func (s *Signal) String() string {
	if s.IsView() {
		return fmt.Sprintf("%s%s->%s[%d:]", s.name, s.shape, s.Base().name, s.Offset())
	}
	return fmt.Sprintf("%s%s", s.name, s.shape)
}

func validShape(caller string, shape shapes.Shape) {
	if !shape.Ok() {
		exceptions.Panicf("%s: invalid shape given", caller)
	}
}
