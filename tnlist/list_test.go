package tnlist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riuson/tneo/tnlist"
)

func TestEmptyHead(t *testing.T) {
	h := tnlist.NewHead[int]()
	assert.True(t, h.Empty())
	assert.Nil(t, h.Front())
	assert.Equal(t, 0, h.Len())
}

func TestPushBackIsFIFO(t *testing.T) {
	h := tnlist.NewHead[string]()
	a := tnlist.NewNode("a")
	b := tnlist.NewNode("b")
	c := tnlist.NewNode("c")

	h.PushBack(a)
	h.PushBack(b)
	h.PushBack(c)

	require.False(t, h.Empty())
	require.Equal(t, 3, h.Len())

	var order []string
	h.ForEachSafe(func(n *tnlist.Node[string]) bool {
		order = append(order, n.Value())
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPushFrontIsLIFO(t *testing.T) {
	h := tnlist.NewHead[int]()
	h.PushBack(tnlist.NewNode(1))
	h.PushFront(tnlist.NewNode(0))

	assert.Equal(t, 0, h.Front().Value())
}

func TestRemoveUnlinksAndShrinksList(t *testing.T) {
	h := tnlist.NewHead[int]()
	a, b, c := tnlist.NewNode(1), tnlist.NewNode(2), tnlist.NewNode(3)
	h.PushBack(a)
	h.PushBack(b)
	h.PushBack(c)

	b.Remove()

	assert.Equal(t, 2, h.Len())
	assert.True(t, b.Empty(), "a removed node is reset to self-referential")

	var order []int
	h.ForEachSafe(func(n *tnlist.Node[int]) bool {
		order = append(order, n.Value())
		return true
	})
	assert.Equal(t, []int{1, 3}, order)
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := tnlist.NewHead[int]()
	a := tnlist.NewNode(1)
	h.PushBack(a)
	a.Remove()
	assert.NotPanics(t, func() { a.Remove() })
	assert.True(t, h.Empty())
}

func TestForEachSafeToleratesRemovalDuringIteration(t *testing.T) {
	h := tnlist.NewHead[int]()
	nodes := make([]*tnlist.Node[int], 0, 5)
	for i := 0; i < 5; i++ {
		n := tnlist.NewNode(i)
		nodes = append(nodes, n)
		h.PushBack(n)
	}

	var seen []int
	h.ForEachSafe(func(n *tnlist.Node[int]) bool {
		seen = append(seen, n.Value())
		if n.Value()%2 == 0 {
			n.Remove()
		}
		return true
	})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
	assert.Equal(t, 2, h.Len()) // 1 and 3 remain
}

func TestForEachSafeStopsEarly(t *testing.T) {
	h := tnlist.NewHead[int]()
	for i := 0; i < 5; i++ {
		h.PushBack(tnlist.NewNode(i))
	}

	var seen []int
	h.ForEachSafe(func(n *tnlist.Node[int]) bool {
		seen = append(seen, n.Value())
		return n.Value() < 2
	})

	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestSetValue(t *testing.T) {
	n := tnlist.NewNode(1)
	n.SetValue(2)
	assert.Equal(t, 2, n.Value())
}
