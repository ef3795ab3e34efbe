package graph

import (
	"testing"

	"github.com/loomworks/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string) *models.Node {
	return &models.Node{ID: id, Type: models.NodeTypeTransform}
}

func edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

func TestNewRejectsDanglingEdge(t *testing.T) {
	_, err := New([]*models.Node{node("a")}, []*models.Edge{edge("a", "ghost")})

	require.Error(t, err)

	var validationErr *ValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "ghost")
}

func TestNewRejectsUnknownNodeType(t *testing.T) {
	_, err := New([]*models.Node{{ID: "a", Type: "webhook"}}, nil)

	var validationErr *ValidationError

	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "webhook")
}

func TestNewRejectsDuplicateNodeID(t *testing.T) {
	_, err := New([]*models.Node{node("a"), node("a")}, nil)

	var validationErr *ValidationError

	require.ErrorAs(t, err, &validationErr)
}

func TestTopologicalOrderLinearChain(t *testing.T) {
	g, err := New(
		[]*models.Node{node("a"), node("b"), node("c")},
		[]*models.Edge{edge("a", "b"), edge("b", "c")},
	)
	require.NoError(t, err)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopologicalOrderDeterministicTieBreak(t *testing.T) {
	// Diamond: a feeds b and c, both feed d. b and c are both ready after a;
	// creation order decides.
	g, err := New(
		[]*models.Node{node("a"), node("c"), node("b"), node("d")},
		[]*models.Edge{edge("a", "b"), edge("a", "c"), edge("b", "d"), edge("c", "d")},
	)
	require.NoError(t, err)

	for range 10 {
		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c", "b", "d"}, order)
	}
}

func TestTopologicalOrderEveryNodeAfterPredecessors(t *testing.T) {
	g, err := New(
		[]*models.Node{node("e"), node("d"), node("c"), node("b"), node("a")},
		[]*models.Edge{
			edge("a", "b"), edge("a", "c"),
			edge("b", "d"), edge("c", "d"), edge("d", "e"),
		},
	)
	require.NoError(t, err)

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Len(t, order, 5)

	position := make(map[string]int)
	for i, id := range order {
		position[id] = i
	}

	for _, id := range order {
		for _, pred := range g.Predecessors(id) {
			assert.Less(t, position[pred], position[id],
				"%s must appear after predecessor %s", id, pred)
		}
	}
}

func TestTopologicalOrderCycleFails(t *testing.T) {
	g, err := New(
		[]*models.Node{node("x"), node("y")},
		[]*models.Edge{edge("x", "y"), edge("y", "x")},
	)
	require.NoError(t, err)

	_, err = g.TopologicalOrder()
	require.Error(t, err)

	var cycleErr *CycleError

	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Cycle, "x")
	assert.Contains(t, cycleErr.Cycle, "y")
}

func TestTopologicalOrderSelfLoopFails(t *testing.T) {
	g, err := New([]*models.Node{node("a")}, []*models.Edge{edge("a", "a")})
	require.NoError(t, err)

	_, err = g.TopologicalOrder()

	var cycleErr *CycleError

	require.ErrorAs(t, err, &cycleErr)
}

func TestHasPath(t *testing.T) {
	g, err := New(
		[]*models.Node{node("a"), node("b"), node("c"), node("d")},
		[]*models.Edge{edge("a", "b"), edge("b", "c")},
	)
	require.NoError(t, err)

	assert.True(t, g.HasPath("a", "b"))
	assert.True(t, g.HasPath("a", "c"), "transitive reachability")
	assert.False(t, g.HasPath("c", "a"), "edges are directed")
	assert.False(t, g.HasPath("a", "d"), "disconnected node is unreachable")
	assert.False(t, g.HasPath("a", "a"))
}

func TestPredecessorsAndSuccessors(t *testing.T) {
	g, err := New(
		[]*models.Node{node("a"), node("b"), node("c")},
		[]*models.Edge{edge("a", "c"), edge("b", "c")},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, g.Predecessors("c"))
	assert.Equal(t, []string{"c"}, g.Successors("a"))
	assert.Empty(t, g.Predecessors("a"))
	assert.Empty(t, g.Successors("c"))
}

func TestParallelEdgesCollapse(t *testing.T) {
	g, err := New(
		[]*models.Node{node("a"), node("b")},
		[]*models.Edge{
			{ID: "e1", Source: "a", Target: "b", SourceHandle: "text"},
			{ID: "e2", Source: "a", Target: "b", SourceHandle: "score"},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, g.Predecessors("b"))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}
