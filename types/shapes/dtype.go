// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/exceptions"
	"github.com/x448/float16"
)

// DType indicates the type of the unit element of a signal buffer.
// It enumerates the data types the simulator state can hold.
//
// See example in the package shapes documentation.
type DType int

//go:generate go tool enumer -type=DType dtype.go

const (
	InvalidDType DType = iota
	Bool
	Int32
	Int64
	Float16
	Float32
	Float64
)

// Aliases for the most common DTypes.
const (
	I32 = Int32
	I64 = Int64
	F16 = Float16
	F32 = Float32
	F64 = Float64
)

// IsFloat returns whether dtype is a float type.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// IsInt returns whether dtype is an integer type.
func (dtype DType) IsInt() bool {
	return dtype == Int32 || dtype == Int64
}

// Memory returns the number of bytes one element of this dtype occupies.
func (dtype DType) Memory() uintptr {
	switch dtype {
	case Bool:
		return 1
	case Float16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	}
	exceptions.Panicf("shapes.DType(%d).Memory(): unknown dtype", dtype)
	return 0
}

// Cast returns v as it would be represented by an element of this dtype:
// booleans saturate to 0/1, integers truncate and floats round to the
// dtype's precision (Float16 through github.com/x448/float16). It is used
// to store signal initial values at the precision the simulation will see,
// which is what constant-folding rewrites compare against.
func (dtype DType) Cast(v float64) float64 {
	switch dtype {
	case Bool:
		if v != 0 {
			return 1
		}
		return 0
	case Int32:
		return float64(int32(v))
	case Int64:
		return float64(int64(v))
	case Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case Float32:
		return float64(float32(v))
	case Float64:
		return v
	}
	exceptions.Panicf("shapes.DType(%d).Cast(): unknown dtype", dtype)
	return 0
}

// CastSlice applies Cast to every element, returning a new slice.
func (dtype DType) CastSlice(values []float64) []float64 {
	out := make([]float64, len(values))
	for ii, v := range values {
		out[ii] = dtype.Cast(v)
	}
	return out
}
