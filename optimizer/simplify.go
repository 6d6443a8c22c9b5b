// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/xslices"
)

// Rule is one semantic-preserving graph rewrite: it pattern-matches operators
// and returns a reduced operator list. A rule must preserve the externally
// observable read/set/increment relation of every signal still referenced by
// the returned operators; the simplifier verifies this after every
// application and panics on violation -- a broken rule is an internal bug,
// never silently applied.
//
// Rules are applied in configuration order, repeatedly, until none changes
// the graph or Config.MaxSimplifyPasses is hit (hitting the bound just stops
// further simplification, it is not an error).
type Rule interface {
	// Name of the rule, for diagnostics.
	Name() string

	// Apply returns the rewritten operator list and whether anything changed.
	// When nothing matches it must return ops unchanged.
	Apply(ops []*model.Operator) ([]*model.Operator, bool)
}

// DefaultRules returns the built-in rewrite rules in their default order.
// Each is independently toggleable by configuring a different list.
func DefaultRules() []Rule {
	return []Rule{
		RemoveZeroIncs{},
		RemoveIdentityMuls{},
		MergeSequentialCopies{},
		RemoveUnreadResets{},
	}
}

// simplify runs the rules to a fixed point, bounded by maxPasses. It reports
// whether any rewrite was applied.
func simplify(ops []*model.Operator, rules []Rule, maxPasses int) ([]*model.Operator, bool) {
	before := len(ops)
	anyChange := false
	passes := 0
	for ; passes < maxPasses; passes++ {
		changed := false
		for _, rule := range rules {
			newOps, ruleChanged := rule.Apply(ops)
			if !ruleChanged {
				continue
			}
			checkRewriteInvariant(rule.Name(), ops, newOps)
			ops = newOps
			changed = true
			anyChange = true
		}
		if !changed {
			break
		}
	}
	if anyChange {
		klog.V(1).Infof("optimizer: simplification removed %d of %d operators in %d passes",
			before-len(ops), before, passes+1)
	}
	return ops, anyChange
}

// checkRewriteInvariant panics if a rule removed the producers of a signal
// that the remaining operators still consume: that rewrite would change the
// externally observable relation and indicates a bug in the rule.
func checkRewriteInvariant(ruleName string, before, after []*model.Operator) {
	hadSetter := make(map[*model.Signal]bool)
	for _, op := range before {
		for _, sig := range op.Sets() {
			hadSetter[sig.Base()] = true
		}
	}
	hasSetter := make(map[*model.Signal]bool)
	for _, op := range after {
		for _, sig := range op.Sets() {
			hasSetter[sig.Base()] = true
		}
	}
	for _, op := range after {
		consumed := append(append([]*model.Signal{}, op.Reads()...), op.Incs()...)
		for _, sig := range consumed {
			base := sig.Base()
			if hadSetter[base] && !hasSetter[base] && !base.IsConstant() {
				exceptions.Panicf(
					"optimizer: simplification invariant violated: rule %q removed the writer of %s, still consumed by %s",
					ruleName, base, op)
			}
		}
	}
}

// RemoveZeroIncs deletes increments that accumulate a constant zero: an
// ElementwiseInc or DotInc with an all-zero constant operand, or an
// accumulating Copy of an all-zero constant. Such operators contribute
// nothing to their target.
type RemoveZeroIncs struct{}

// Name implements Rule.
func (RemoveZeroIncs) Name() string { return "remove-zero-incs" }

// Apply implements Rule.
func (RemoveZeroIncs) Apply(ops []*model.Operator) ([]*model.Operator, bool) {
	return deleteMatching(ops, func(op *model.Operator) bool {
		switch op.Kind() {
		case model.KindElementwiseInc, model.KindDotInc:
			return op.Reads()[0].IsAllConst(0) || op.Reads()[1].IsAllConst(0)
		case model.KindCopy:
			return op.Attr().(model.CopyAttr).IncDst && op.Reads()[0].IsAllConst(0)
		}
		return false
	})
}

// RemoveIdentityMuls rewrites an elementwise multiply-accumulate whose scale
// operand is a constant one into a plain accumulating copy of the other
// operand, removing the multiplication.
type RemoveIdentityMuls struct{}

// Name implements Rule.
func (RemoveIdentityMuls) Name() string { return "remove-identity-muls" }

// Apply implements Rule.
func (RemoveIdentityMuls) Apply(ops []*model.Operator) ([]*model.Operator, bool) {
	changed := false
	out := make([]*model.Operator, 0, len(ops))
	for _, op := range ops {
		if op.Kind() == model.KindElementwiseInc {
			a, x, dst := op.Reads()[0], op.Reads()[1], op.Incs()[0]
			src := (*model.Signal)(nil)
			if a.IsAllConst(1) {
				src = x
			} else if x.IsAllConst(1) && a.Size() == dst.Size() {
				src = a
			}
			if src != nil && src.Size() == dst.Size() {
				// Same id: the copy replaces the multiply in declaration order.
				out = append(out, model.NewOperator(op.ID(), model.KindCopy,
					model.CopyAttr{IncDst: true}, []*model.Signal{src}, nil, []*model.Signal{dst}))
				changed = true
				continue
			}
		}
		out = append(out, op)
	}
	if !changed {
		return ops, false
	}
	return out, true
}

// MergeSequentialCopies collapses Copy(A→B) followed by Copy(B→C) into
// Copy(A→C) when B is a plain intermediate: set only by the first copy, read
// only by the second, never incremented, viewed or observed.
type MergeSequentialCopies struct{}

// Name implements Rule.
func (MergeSequentialCopies) Name() string { return "merge-sequential-copies" }

// Apply implements Rule.
func (MergeSequentialCopies) Apply(ops []*model.Operator) ([]*model.Operator, bool) {
	type usage struct {
		setters, readers, incers []*model.Operator
		whole                    bool // All uses reference the signal itself, no views involved.
	}
	usages := make(map[*model.Signal]*usage)
	use := func(sig *model.Signal) *usage {
		base := sig.Base()
		u := usages[base]
		if u == nil {
			u = &usage{whole: true}
			usages[base] = u
		}
		u.whole = u.whole && sig == base
		return u
	}
	for _, op := range ops {
		for _, sig := range op.Reads() {
			u := use(sig)
			u.readers = append(u.readers, op)
		}
		for _, sig := range op.Sets() {
			u := use(sig)
			u.setters = append(u.setters, op)
		}
		for _, sig := range op.Incs() {
			u := use(sig)
			u.incers = append(u.incers, op)
		}
	}

	isPlainCopy := func(op *model.Operator) bool {
		return op.Kind() == model.KindCopy && !op.Attr().(model.CopyAttr).IncDst
	}

	deleted := make(map[*model.Operator]bool)
	replaced := make(map[*model.Operator]*model.Operator)
	for _, second := range ops {
		if second.Kind() != model.KindCopy || replaced[second] != nil {
			continue
		}
		mid := second.Reads()[0]
		u := usages[mid]
		if mid.IsView() || u == nil || !u.whole || mid.Observed() {
			continue
		}
		if len(u.setters) != 1 || len(u.readers) != 1 || len(u.incers) != 0 {
			continue
		}
		first := u.setters[0]
		if first == second || !isPlainCopy(first) || deleted[first] || replaced[first] != nil {
			continue
		}
		// Rewrite second to copy straight from first's source; first dies.
		replaced[second] = model.NewOperator(second.ID(), model.KindCopy,
			second.Attr(), []*model.Signal{first.Reads()[0]}, second.Sets(), second.Incs())
		deleted[first] = true
	}
	if len(deleted) == 0 {
		return ops, false
	}
	out := make([]*model.Operator, 0, len(ops)-len(deleted))
	for _, op := range ops {
		if deleted[op] {
			continue
		}
		if repl := replaced[op]; repl != nil {
			op = repl
		}
		out = append(out, op)
	}
	return out, true
}

// RemoveUnreadResets deletes Reset operators whose target is never read,
// incremented or observed: the constant it writes is dead state.
type RemoveUnreadResets struct{}

// Name implements Rule.
func (RemoveUnreadResets) Name() string { return "remove-unread-resets" }

// Apply implements Rule.
func (RemoveUnreadResets) Apply(ops []*model.Operator) ([]*model.Operator, bool) {
	consumed := make([]*model.Signal, 0, len(ops))
	for _, op := range ops {
		consumed = append(consumed, op.Reads()...)
		consumed = append(consumed, op.Incs()...)
	}
	return deleteMatching(ops, func(op *model.Operator) bool {
		if op.Kind() != model.KindReset {
			return false
		}
		dst := op.Sets()[0]
		if dst.Observed() {
			return false
		}
		for _, sig := range consumed {
			if sig.Overlaps(dst) {
				return false
			}
		}
		return true
	})
}

// deleteMatching removes operators matching the predicate, preserving order.
func deleteMatching(ops []*model.Operator, match func(*model.Operator) bool) ([]*model.Operator, bool) {
	var doomed []*model.Operator
	out := make([]*model.Operator, 0, len(ops))
	for _, op := range ops {
		if match(op) {
			doomed = append(doomed, op)
		} else {
			out = append(out, op)
		}
	}
	if len(doomed) == 0 {
		return ops, false
	}
	klog.V(2).Infof("optimizer: deleted %d operators: %v",
		len(doomed), xslices.Map(doomed, (*model.Operator).String))
	return out, true
}
