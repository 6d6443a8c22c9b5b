package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/nengo/model"
	"github.com/gomlx/nengo/types/shapes"
)

func TestGroupedSorterGroupsByKind(t *testing.T) {
	m := model.New()
	// Two signals touched only by dot products, two only by copies, one
	// untouched. Copies move less data than the dots.
	matA := m.Signal("A", shapes.Make(shapes.Float32, 8, 8))
	x := m.Signal("x", shapes.Make(shapes.Float32, 8))
	y := m.Signal("y", shapes.Make(shapes.Float32, 8))
	c1, c2 := vec(m, "c1", 2), vec(m, "c2", 2)
	unused := vec(m, "unused", 2)

	m.DotInc(matA, x, y)
	m.Copy(c1, c2, false)

	order, err := GroupedSorter{}.Sort(m.Signals(), m.Operators())
	require.NoError(t, err)
	require.NoError(t, validateOrder(m.Signals(), order))

	names := make([]string, 0, len(order))
	for _, sig := range order {
		names = append(names, sig.Name())
	}
	// DotInc group carries the most bytes, so it comes first; within it, first
	// use then declaration order. The untouched signal sorts last.
	assert.Equal(t, []string{"A", "x", "y", "c1", "c2", "unused"}, names)
	_ = unused
}

func TestGroupedSorterDeterministic(t *testing.T) {
	m := model.New()
	for i := 0; i < 20; i++ {
		vec(m, "s", 3)
	}
	sigs := m.Signals()
	m.Copy(sigs[3], sigs[7], false)
	m.ElementwiseInc(sigs[0], sigs[1], sigs[2])

	first, err := GroupedSorter{}.Sort(m.Signals(), m.Operators())
	require.NoError(t, err)
	second, err := GroupedSorter{}.Sort(m.Signals(), m.Operators())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.NoError(t, validateOrder(m.Signals(), first))
}

func TestDeclarationSorter(t *testing.T) {
	m := model.New()
	a, b := vec(m, "a", 2), vec(m, "b", 2)
	m.Copy(a, b, false)
	order, err := DeclarationSorter{}.Sort(m.Signals(), m.Operators())
	require.NoError(t, err)
	assert.Equal(t, m.Signals(), order)
	require.NoError(t, validateOrder(m.Signals(), order))
}

func TestValidateOrder(t *testing.T) {
	m := model.New()
	a, b := vec(m, "a", 2), vec(m, "b", 2)
	in := []*model.Signal{a, b}
	assert.NoError(t, validateOrder(in, []*model.Signal{b, a}))
	assert.Error(t, validateOrder(in, []*model.Signal{a}), "omission")
	assert.Error(t, validateOrder(in, []*model.Signal{a, a}), "duplication")
}
