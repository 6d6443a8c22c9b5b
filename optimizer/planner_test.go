package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/shapes"
)

// buildChainedModel returns a model whose dependency graph is a chain of
// depth 3 with parallel branches at the middle rank.
func buildChainedModel(t *testing.T) (*model.Model, *DepGraph) {
	m := model.New()
	s1, s2, s3, s4 := vec(m, "s1", 4), vec(m, "s2", 4), vec(m, "s3", 4), vec(m, "s4", 4)
	m.Reset(s1, 0)        // 0: rank 0
	m.Copy(s1, s2, false) // 1: rank 1
	m.Copy(s1, s3, false) // 2: rank 1
	m.Copy(s2, s4, false) // 3: rank 2
	g, err := BuildDependencyGraph(m.Operators())
	require.NoError(t, err)
	return m, g
}

func stageNumbers(stages [][]*model.Operator) map[int]int {
	stageOf := make(map[int]int)
	for idx, stage := range stages {
		for _, op := range stage {
			stageOf[op.ID()] = idx
		}
	}
	return stageOf
}

func TestGreedyPlanner(t *testing.T) {
	_, g := buildChainedModel(t)
	stages, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)
	require.NoError(t, validateStages(g, stages))

	require.Len(t, stages, 3)
	stageOf := stageNumbers(stages)
	assert.Equal(t, 0, stageOf[0])
	assert.Equal(t, 1, stageOf[1])
	assert.Equal(t, 1, stageOf[2])
	assert.Equal(t, 2, stageOf[3])

	// Within a stage: kind groups, then declaration order.
	assert.Equal(t, []int{1, 2},
		[]int{stages[1][0].ID(), stages[1][1].ID()})
}

// The diamond scenario: O1 alone in stage 0, O2 and O3 together in stage 1.
func TestGreedyPlannerDiamond(t *testing.T) {
	m := model.New()
	s1, s2, s3 := vec(m, "s1", 4), vec(m, "s2", 4), vec(m, "s3", 4)
	m.Reset(s1, 0)
	m.Copy(s1, s2, false)
	m.Copy(s1, s3, false)
	g, err := BuildDependencyGraph(m.Operators())
	require.NoError(t, err)

	stages, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Len(t, stages[0], 1)
	assert.Len(t, stages[1], 2)
	assert.Equal(t, 0, stages[0][0].ID())
}

func TestPlannersAgreeOnLayering(t *testing.T) {
	_, g := buildChainedModel(t)

	greedy, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)
	transitive, err := TransitivePlanner{}.Plan(g)
	require.NoError(t, err)
	require.NoError(t, validateStages(g, transitive))

	// Greedy earliest-placement and longest-path depth coincide on this graph.
	assert.Equal(t, stageNumbers(greedy), stageNumbers(transitive))
}

func TestSequentialPlanner(t *testing.T) {
	_, g := buildChainedModel(t)
	stages, err := SequentialPlanner{}.Plan(g)
	require.NoError(t, err)
	require.NoError(t, validateStages(g, stages))
	require.Len(t, stages, g.NumOps())
	for _, stage := range stages {
		assert.Len(t, stage, 1)
	}
}

// Planning is idempotent: replanning a graph staged by its own output
// reproduces the same stage numbers.
func TestPlannerIdempotent(t *testing.T) {
	_, g := buildChainedModel(t)
	first, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)
	second, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)
	assert.Equal(t, stageNumbers(first), stageNumbers(second))
	assert.Equal(t, first, second)
}

func TestPlanEmptyGraph(t *testing.T) {
	g, err := BuildDependencyGraph(nil)
	require.NoError(t, err)
	stages, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)
	assert.Empty(t, stages)
	stages, err = TransitivePlanner{}.Plan(g)
	require.NoError(t, err)
	assert.Empty(t, stages)
}

func TestValidateStagesRejectsBadPlans(t *testing.T) {
	_, g := buildChainedModel(t)
	stages, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)

	// Reversed stage order breaks the invariant.
	reversed := [][]*model.Operator{stages[2], stages[1], stages[0]}
	assert.Error(t, validateStages(g, reversed))

	// Dropping an operator is rejected.
	truncated := [][]*model.Operator{stages[0], stages[1]}
	assert.Error(t, validateStages(g, truncated))

	// Scheduling one twice is rejected.
	doubled := [][]*model.Operator{stages[0], stages[1], stages[2], stages[0]}
	assert.Error(t, validateStages(g, doubled))
}

func TestStageSortGroupsByKind(t *testing.T) {
	m := model.New()
	a := m.Constant("a", shapes.Scalar(shapes.Float32), 2)
	x, y := vec(m, "x", 4), vec(m, "y", 4)
	t1, t2 := vec(m, "t1", 4), vec(m, "t2", 4)
	// Interleave kinds at the same rank; the planner groups them.
	m.ElementwiseInc(a, x, t1) // 0
	m.Reset(t2, 0)             // 1
	m.ElementwiseInc(a, y, t2) // 2: must follow 1 (set before inc).
	g, err := BuildDependencyGraph(m.Operators())
	require.NoError(t, err)

	stages, err := GreedyPlanner{}.Plan(g)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	// Stage 0 holds the reset (KindReset < KindElementwiseInc) then the inc.
	assert.Equal(t, model.KindReset, stages[0][0].Kind())
	assert.Equal(t, model.KindElementwiseInc, stages[0][1].Kind())
	assert.Equal(t, 0, stages[0][1].ID())
	assert.Equal(t, 2, stages[1][0].ID())
}
