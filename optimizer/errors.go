// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"fmt"
	"strings"
)

// GraphCycleError reports that the operator dependency graph contains a
// cycle: the model cannot be scheduled. It names the implicated operators and
// the signals inducing the cyclic edges. It aborts the model build; it is
// never retried.
//
// Use errors.As to retrieve it from the (stack-annotated) error returned by
// BuildDependencyGraph or Optimize.
type GraphCycleError struct {
	// Ops are the string forms of the operators left unschedulable by the
	// cycle, in declaration order.
	Ops []string
	// Signals are the names of the signals inducing edges among Ops.
	Signals []string
}

func (e *GraphCycleError) Error() string {
	return fmt.Sprintf("dependency graph contains a cycle among %d operators [%s] through signals [%s]",
		len(e.Ops), strings.Join(e.Ops, "; "), strings.Join(e.Signals, ", "))
}

// PlanningError reports that a planner could not produce a valid stage
// assignment within bounded effort. It should not happen for graphs accepted
// by BuildDependencyGraph; it exists as the planners' defensive
// non-termination check.
type PlanningError struct {
	// Unscheduled is the number of operators the planner could not assign a
	// stage.
	Unscheduled int
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planner failed to produce a valid stage assignment: %d operators left unscheduled",
		e.Unscheduled)
}
