package list

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arena is a minimal node table used by the tests.
type arena []Node

func newArena(n int) arena {
	a := make(arena, n)
	for i := range a {
		a[i].Init(Index(i))
	}
	return a
}

func (a arena) nodes() Nodes {
	return func(i Index) *Node { return &a[i] }
}

// assertWellFormed verifies the prev/next links agree in both directions.
func assertWellFormed(t *testing.T, l *List, nodes Nodes) {
	t.Helper()

	if l.Empty() {
		assert.Equal(t, Nil, l.Front())
		return
	}

	i := l.Front()
	for k := 0; k < l.Len(); k++ {
		n := nodes(i)
		require.Equal(t, i, nodes(n.Next()).Prev(), "next(%d).prev must point back", i)
		require.Equal(t, i, nodes(n.Prev()).Next(), "prev(%d).next must point back", i)
		i = n.Next()
	}
	assert.Equal(t, l.Front(), i, "walking Len() steps must wrap to the head")
}

func TestInitSelfLinked(t *testing.T) {
	var n Node
	n.Init(7)
	assert.Equal(t, Index(7), n.Next())
	assert.Equal(t, Index(7), n.Prev())
}

func TestPushFrontBack(t *testing.T) {
	a := newArena(4)
	nodes := a.nodes()
	var l List

	l.PushBack(nodes, 1)
	l.PushBack(nodes, 2)
	l.PushFront(nodes, 0)
	l.PushBack(nodes, 3)

	assert.Equal(t, []Index{0, 1, 2, 3}, l.Slice(nodes))
	assert.Equal(t, Index(0), l.Front())
	assert.Equal(t, Index(3), l.Back(nodes))
	assert.Equal(t, 4, l.Len())
	assertWellFormed(t, &l, nodes)
}

func TestInsertBefore(t *testing.T) {
	a := newArena(5)
	nodes := a.nodes()
	var l List

	l.PushBack(nodes, 1)
	l.PushBack(nodes, 3)
	l.InsertBefore(nodes, 2, 3)
	l.InsertBefore(nodes, 0, 1)
	l.PushBack(nodes, 4)

	assert.Equal(t, []Index{0, 1, 2, 3, 4}, l.Slice(nodes))
	assert.Equal(t, Index(0), l.Front())
	assert.Equal(t, 5, l.Len())
	assertWellFormed(t, &l, nodes)
}

func TestRemove(t *testing.T) {
	a := newArena(3)
	nodes := a.nodes()
	var l List
	for i := range 3 {
		l.PushBack(nodes, Index(i))
	}

	require.True(t, l.Remove(nodes, 1))
	assert.Equal(t, []Index{0, 2}, l.Slice(nodes))
	assertWellFormed(t, &l, nodes)

	require.True(t, l.Remove(nodes, 0))
	assert.Equal(t, Index(2), l.Front())

	require.True(t, l.Remove(nodes, 2))
	assert.True(t, l.Empty())
	assert.Equal(t, Nil, l.Front())
	assert.Equal(t, Nil, l.Back(nodes))
}

func TestRemoveIsIdempotent(t *testing.T) {
	a := newArena(3)
	nodes := a.nodes()
	var l List
	for i := range 3 {
		l.PushBack(nodes, Index(i))
	}

	require.True(t, l.Remove(nodes, 1))
	before := append(arena(nil), a...)

	assert.False(t, l.Remove(nodes, 1), "second removal must report not linked")
	assert.Equal(t, before, a, "second removal must not touch any node")
	assert.Equal(t, 2, l.Len())
	assertWellFormed(t, &l, nodes)
}

func TestRemoveNeverLinked(t *testing.T) {
	a := newArena(2)
	nodes := a.nodes()
	var l List
	l.PushBack(nodes, 0)

	assert.False(t, l.Remove(nodes, 1))
	assert.Equal(t, 1, l.Len())
}

func TestPopFront(t *testing.T) {
	a := newArena(2)
	nodes := a.nodes()
	var l List
	assert.Equal(t, Nil, l.PopFront(nodes))

	l.PushBack(nodes, 0)
	l.PushBack(nodes, 1)
	assert.Equal(t, Index(0), l.PopFront(nodes))
	assert.Equal(t, Index(1), l.PopFront(nodes))
	assert.True(t, l.Empty())
}

func TestLinkedAndContains(t *testing.T) {
	a := newArena(3)
	nodes := a.nodes()
	var l List

	assert.False(t, l.Linked(nodes, 0))
	l.PushBack(nodes, 0)
	assert.True(t, l.Linked(nodes, 0), "singleton head is linked")
	assert.False(t, l.Linked(nodes, 1))

	l.PushBack(nodes, 1)
	assert.True(t, l.Linked(nodes, 1))
	assert.True(t, l.Contains(nodes, 1))
	assert.False(t, l.Contains(nodes, 2))
}

func TestDoStopsEarly(t *testing.T) {
	a := newArena(5)
	nodes := a.nodes()
	var l List
	for i := range 5 {
		l.PushBack(nodes, Index(i))
	}

	var seen []Index
	l.Do(nodes, func(i Index) bool {
		seen = append(seen, i)
		return i < 2
	})
	assert.Equal(t, []Index{0, 1, 2}, seen)
}

func TestTwoListsShareArena(t *testing.T) {
	a := newArena(6)
	nodes := a.nodes()
	var even, odd List
	for i := range 6 {
		if i%2 == 0 {
			even.PushBack(nodes, Index(i))
		} else {
			odd.PushBack(nodes, Index(i))
		}
	}

	even.Remove(nodes, 2)
	assert.Equal(t, []Index{0, 4}, even.Slice(nodes))
	assert.Equal(t, []Index{1, 3, 5}, odd.Slice(nodes))
	assertWellFormed(t, &even, nodes)
	assertWellFormed(t, &odd, nodes)
}

func TestRandomOperationsKeepListWellFormed(t *testing.T) {
	const size = 64
	rng := rand.New(rand.NewPCG(1, 2))
	a := newArena(size)
	nodes := a.nodes()
	var l List
	in := make(map[Index]bool)

	for range 5000 {
		i := Index(rng.IntN(size))
		if in[i] {
			require.True(t, l.Remove(nodes, i))
			delete(in, i)
		} else if rng.IntN(2) == 0 {
			l.PushFront(nodes, i)
			in[i] = true
		} else {
			l.PushBack(nodes, i)
			in[i] = true
		}
		require.Equal(t, len(in), l.Len())
	}

	assertWellFormed(t, &l, nodes)
	for i := range Index(size) {
		assert.Equal(t, in[i], l.Contains(nodes, i), "node %d", i)
		assert.Equal(t, in[i], l.Linked(nodes, i), "node %d", i)
	}
}
