package optimizer

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/shapes"
)

// buildFeedforwardModel builds a small but representative model: an input
// process, two weighted connections into a neuron population, and a probed
// output copy.
func buildFeedforwardModel() *model.Model {
	m := model.New()
	input := m.Signal("input", shapes.Make(shapes.Float32, 4))
	weights1 := m.Signal("weights1", shapes.Make(shapes.Float32, 8, 4))
	weights2 := m.Signal("weights2", shapes.Make(shapes.Float32, 8, 4))
	current := m.Signal("current", shapes.Make(shapes.Float32, 8))
	voltage := m.Signal("voltage", shapes.Make(shapes.Float32, 8))
	spikes := m.Signal("spikes", shapes.Make(shapes.Float32, 8))
	probe := m.Signal("probe", shapes.Make(shapes.Float32, 8))

	m.ProcessStep("stimulus", nil, []*model.Signal{input}, nil)
	m.Reset(current, 0)
	m.DotInc(weights1, input, current)
	m.DotInc(weights2, input, current)
	m.NeuronStep("lif", current, voltage, spikes)
	m.Copy(spikes, probe, false)
	m.Observe(probe)
	return m
}

func TestOptimizeEndToEnd(t *testing.T) {
	m := buildFeedforwardModel()
	plan, err := Optimize(m, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 6, plan.NumOps(), "nothing to simplify in this model")
	assert.Len(t, plan.Signals, len(m.Signals()))
	assert.Greater(t, plan.NumStages(), 2)

	// Every operator appears exactly once in the plan.
	seen := make(map[int]bool)
	for _, stage := range plan.Stages {
		for _, group := range stage.Groups {
			for _, op := range group.Ops {
				assert.False(t, seen[op.ID()])
				seen[op.ID()] = true
			}
		}
	}
	assert.Len(t, seen, 6)
}

// Two optimizer runs over the same model produce identical plans.
func TestOptimizeDeterministic(t *testing.T) {
	m := buildFeedforwardModel()
	first, err := Optimize(m, DefaultConfig())
	require.NoError(t, err)
	second, err := Optimize(m, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, first.Stages, second.Stages)
	assert.Equal(t, first.Signals, second.Signals)
	assert.Equal(t, first.Summary(), second.Summary())
}

// A cyclic model aborts before planning, with the taxonomy error reachable
// through errors.As.
func TestOptimizeCycleFailsFast(t *testing.T) {
	m := model.New()
	s1 := m.Signal("s1", shapes.Make(shapes.Float32, 2))
	s2 := m.Signal("s2", shapes.Make(shapes.Float32, 2))
	m.Copy(s2, s1, false)
	m.Copy(s1, s2, false)

	plan, err := Optimize(m, DefaultConfig())
	assert.Nil(t, plan, "no partial plans")
	var cycleErr *GraphCycleError
	require.True(t, errors.As(err, &cycleErr))
}

// The zero-increment scenario: the operator disappears from the plan and the
// target signal's remaining relation is untouched.
func TestOptimizeRemovesZeroIncrement(t *testing.T) {
	m := model.New()
	zero := m.Constant("zero", shapes.Make(shapes.Float32, 4), 0)
	s := m.Signal("s", shapes.Make(shapes.Float32, 4))
	out := m.Signal("out", shapes.Make(shapes.Float32, 4))
	m.Reset(s, 3)
	m.Copy(zero, s, true) // Increments s by constant zero.
	m.Copy(s, out, false)
	m.Observe(out)

	plan, err := Optimize(m, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, plan.NumOps())
	for _, stage := range plan.Stages {
		for _, group := range stage.Groups {
			for _, op := range group.Ops {
				assert.NotEqual(t, 1, op.ID(), "zero increment must be gone")
			}
		}
	}
}

func TestOptimizeStrategySubstitution(t *testing.T) {
	m := buildFeedforwardModel()
	cfg := Config{
		Planner: SequentialPlanner{},
		Sorter:  DeclarationSorter{},
		Rules:   []Rule{}, // Simplification disabled.
	}
	plan, err := Optimize(m, cfg)
	require.NoError(t, err)
	assert.Equal(t, len(m.Operators()), plan.NumStages(), "one op per stage")
	assert.Equal(t, m.Signals(), plan.Signals)
}

type badPlanner struct{}

func (badPlanner) Plan(g *DepGraph) ([][]*model.Operator, error) {
	// Everything in one stage, dependencies ignored.
	return [][]*model.Operator{g.Ops()}, nil
}

type badSorter struct{}

func (badSorter) Sort(signals []*model.Signal, ops []*model.Operator) ([]*model.Signal, error) {
	return signals[1:], nil // Drops a signal.
}

// Broken strategies are caught by the contract validators, never silently
// producing an invalid plan.
func TestOptimizeValidatesStrategyContracts(t *testing.T) {
	m := buildFeedforwardModel()

	_, err := Optimize(m, Config{Planner: badPlanner{}})
	assert.Error(t, err)

	_, err = Optimize(m, Config{Sorter: badSorter{}})
	assert.Error(t, err)
}

func TestPlanSummary(t *testing.T) {
	m := buildFeedforwardModel()
	plan, err := Optimize(m, DefaultConfig())
	require.NoError(t, err)
	summary := plan.Summary()
	assert.Contains(t, summary, "6 operators")
	assert.Contains(t, summary, "stages")
	// 4 + 32 + 32 + 8 + 8 + 8 + 8 float32s = 400 bytes of state.
	assert.Contains(t, summary, "400 B")
	assert.Equal(t, uintptr(400), plan.StateMemory())
}

func TestOptimizeEmptyModel(t *testing.T) {
	plan, err := Optimize(model.New(), DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, plan.NumStages())
	assert.Zero(t, plan.NumOps())
}
