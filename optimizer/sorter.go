// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/xslices"
)

// Sorter produces the memory order of a model's signals: signals operated on
// together are placed contiguously so that fused groups read and write
// contiguous blocks. The contract is a total order -- every input signal
// appears exactly once in the output. Optimize validates the contract on
// whatever strategy is configured.
type Sorter interface {
	Sort(signals []*model.Signal, ops []*model.Operator) ([]*model.Signal, error)
}

// GroupedSorter is the default sorter. It groups signals by the set of
// operator kinds touching them, orders groups by total data volume descending
// (big homogeneous blocks first), and breaks all remaining ties by first use
// and declaration order, keeping builds reproducible.
type GroupedSorter struct{}

// Sort implements Sorter.
func (GroupedSorter) Sort(signals []*model.Signal, ops []*model.Operator) ([]*model.Signal, error) {
	// First operator touching each signal, and the kinds touching it.
	firstUse := make(map[int]int, len(signals))
	kindsOf := make(map[int]map[model.OpKind]bool, len(signals))
	for _, op := range ops {
		for _, sig := range op.Signals() {
			id := sig.ID()
			if _, seen := firstUse[id]; !seen {
				firstUse[id] = op.ID()
			}
			kinds := kindsOf[id]
			if kinds == nil {
				kinds = make(map[model.OpKind]bool)
				kindsOf[id] = kinds
			}
			kinds[op.Kind()] = true
		}
	}

	groupKey := func(sig *model.Signal) string {
		kinds := kindsOf[sig.ID()]
		if len(kinds) == 0 {
			return ""
		}
		names := xslices.Map(xslices.SortedKeys(kinds), model.OpKind.String)
		return strings.Join(names, "+")
	}
	volumes := make(map[string]uintptr)
	for _, sig := range signals {
		volumes[groupKey(sig)] += sig.Shape().Memory()
	}

	out := make([]*model.Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		keyA, keyB := groupKey(a), groupKey(b)
		if keyA != keyB {
			if volumes[keyA] != volumes[keyB] {
				return volumes[keyA] > volumes[keyB]
			}
			return keyA < keyB
		}
		useA, okA := firstUse[a.ID()]
		useB, okB := firstUse[b.ID()]
		if okA && okB && useA != useB {
			return useA < useB
		}
		if okA != okB {
			return okA // Touched signals before untouched ones.
		}
		return a.ID() < b.ID()
	})
	return out, nil
}

// DeclarationSorter keeps signals in declaration order. It is the baseline
// strategy: no locality optimization, trivially correct.
type DeclarationSorter struct{}

// Sort implements Sorter.
func (DeclarationSorter) Sort(signals []*model.Signal, ops []*model.Operator) ([]*model.Signal, error) {
	out := make([]*model.Signal, len(signals))
	copy(out, signals)
	return out, nil
}

// validateOrder checks the Sorter contract: the output is a permutation of
// the input, no signal omitted or duplicated.
func validateOrder(in, out []*model.Signal) error {
	if len(out) != len(in) {
		return errors.Errorf("sorter returned %d signals, want %d", len(out), len(in))
	}
	seen := make(map[*model.Signal]bool, len(out))
	for _, sig := range out {
		if seen[sig] {
			return errors.Errorf("sorter duplicated signal %s", sig)
		}
		seen[sig] = true
	}
	for _, sig := range in {
		if !seen[sig] {
			return errors.Errorf("sorter omitted signal %s", sig)
		}
	}
	return nil
}
