package tnlist

// Node is one link of an intrusive circular doubly linked list, plus the
// value it carries. Embed a Node in the type that participates in a list
// (or keep a Node per linkage field, the way [github.com/riuson/tneo/tneo]'s
// Task carries one for its ready/wait-queue membership and one for the
// all-tasks list) rather than allocating a separate element.
//
// The zero value is not ready for use as a list member; call [NewHead] for
// a sentinel, or [Node.Reset] before first use of an entry node.
type Node[T any] struct {
	next, prev *Node[T]
	value      T
}

// NewHead returns a new empty list, represented by its sentinel node.
func NewHead[T any]() *Node[T] {
	h := &Node[T]{}
	h.Reset()
	return h
}

// NewNode returns a detached node carrying value v, not linked into any
// list.
func NewNode[T any](v T) *Node[T] {
	n := &Node[T]{value: v}
	n.Reset()
	return n
}

// Reset unlinks n from whatever list it was part of (without fixing up that
// list's other members — callers must [Node.Remove] first if that matters)
// and makes it an empty, self-referential node, suitable both as a fresh
// sentinel and as a freshly detached entry.
func (n *Node[T]) Reset() {
	n.next, n.prev = n, n
}

// Empty reports whether a sentinel node's list has no entries. It is
// equally valid, and equivalent, to call this on an entry node to ask
// "is this node currently unlinked".
func (n *Node[T]) Empty() bool {
	return n.next == n
}

// Value returns the value carried by n.
func (n *Node[T]) Value() T {
	return n.value
}

// SetValue replaces the value carried by n.
func (n *Node[T]) SetValue(v T) {
	n.value = v
}

// Next returns the node's successor, or nil if n links only to itself (an
// empty sentinel or an unlinked node). A node cannot tell which member of
// its list is the sentinel, so for the last entry Next returns the sentinel
// itself, not nil.
func (n *Node[T]) Next() *Node[T] {
	if n.next == n {
		return nil
	}
	return n.next
}

// Front returns the first entry linked into the list headed by n (the
// sentinel), or nil if the list is empty.
func (n *Node[T]) Front() *Node[T] {
	if n.Empty() {
		return nil
	}
	return n.next
}

// insertAfter splices m in immediately after n. m must not already be
// linked into any list.
func (n *Node[T]) insertAfter(m *Node[T]) {
	m.prev = n
	m.next = n.next
	n.next.prev = m
	n.next = m
}

// PushFront links n (the sentinel) with m as the new first entry.
func (n *Node[T]) PushFront(m *Node[T]) {
	n.insertAfter(m)
}

// PushBack links n (the sentinel) with m as the new last entry — the FIFO
// enqueue-tail operation every wait-queue and ready-queue slot uses.
func (n *Node[T]) PushBack(m *Node[T]) {
	n.prev.insertAfter(m)
}

// Remove unlinks n from whatever list it is currently a member of and
// resets it to an empty, self-referential node. Removing a node that is
// already unlinked (or a sentinel whose list is empty) is a safe no-op.
func (n *Node[T]) Remove() {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.Reset()
}

// Len walks the list headed by n (the sentinel) and counts its entries.
// O(n); intended for tests and diagnostics, never for scheduler hot paths.
func (n *Node[T]) Len() int {
	count := 0
	for cur := n.next; cur != n; cur = cur.next {
		count++
	}
	return count
}

// ForEachSafe calls fn once for every entry linked into the list headed by
// n (the sentinel), in order, tolerating fn removing the current entry (or
// relinking it elsewhere) from within the callback. Iteration stops early
// if fn returns false.
func (n *Node[T]) ForEachSafe(fn func(entry *Node[T]) bool) {
	cur := n.next
	for cur != n {
		next := cur.next
		if !fn(cur) {
			return
		}
		cur = next
	}
}
